// Package exec provides a unified facade for compiling and running Go source
// inside the host process.
//
// An [Exec] wires the reference resolver, the compiler and a host (in-process
// or one worker process per module) behind a single API:
//
//   - One-shot sessions: [Exec.Run] compiles, loads, invokes and unloads
//   - Batches: [Exec.RunAll] runs independent submissions concurrently
//   - Resident sessions: [Exec.Open] keeps a module loaded and exposes its
//     entry points as searchable, documented tools
//
// # Basic Usage
//
//	e, err := exec.New(exec.Options{})
//	if err != nil {
//	    return err
//	}
//	defer e.Close()
//
//	rep := e.RunSource(ctx, "calc", `package calc
//
//	func Add(a, b int) int { return a + b }`, nil, "", "Add", 2, 3)
//	fmt.Println(rep.State, rep.Result.Value) // completed 5
//
// # Sessions
//
//	s, err := e.Open(ctx, exec.OpenRequest{Unit: unit, Capabilities: []string{"strings"}})
//	defer s.Close()
//
//	hits, _ := s.Search(ctx, "reverse", 5)
//	res, _ := s.Call(ctx, hits[0].ID, map[string]any{"s": "abc"})
//
// # Integration
//
// The exec package integrates with:
//
//   - [github.com/jonwraymond/tooldiscovery/index] for tool search
//   - [github.com/jonwraymond/tooldiscovery/tooldoc] for tool documentation
//   - [github.com/jonwraymond/toolfoundation/model] for tool types
package exec
