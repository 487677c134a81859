package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolcompile/code"
)

type runFlags struct {
	engine     engineFlags
	name       string
	caps       []string
	kind       string
	typeName   string
	method     string
	args       string
	jsonReport bool
}

func (f *runFlags) opts() []opt {
	return []opt{
		newOpt(&f.name, "name", "", "logical unit name (default: file name)"),
		newOpt(&f.caps, "caps", []string(nil), "capabilities the source requires"),
		newOpt(&f.kind, "kind", string(code.OutputLibrary), "output kind: library or executable"),
		newOpt(&f.typeName, "type", "", "receiver type of the entry point"),
		newOpt(&f.method, "method", "", "function or method to invoke (default: main for executables)"),
		newOpt(&f.args, "args", "[]", "JSON array of positional arguments"),
		newOpt(&f.jsonReport, "json", false, "print the full session report as JSON"),
	}
}

func newRunCommand() *cobra.Command {
	var f runFlags
	v := newViper()
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Compile a source file, invoke one entry point and unload it",
		Long: `Compile FILE (or standard input when FILE is "-") against the requested
capabilities, load it, invoke the named entry point and print its sink output
followed by the result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			if err := loadOptions(v, cmd, f.opts()); err != nil {
				return err
			}
			if err := f.engine.load(v, cmd); err != nil {
				return err
			}
			return runFile(cmd, &f, argv[0])
		},
	}
	bindOptions(v, cmd, f.opts())
	f.engine.bind(v, cmd)
	return cmd
}

func runFile(cmd *cobra.Command, f *runFlags, path string) error {
	src, name, err := readSource(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	if f.name != "" {
		name = f.name
	}

	var args []any
	if err := json.Unmarshal([]byte(f.args), &args); err != nil {
		return fmt.Errorf("--args must be a JSON array: %w", err)
	}
	kind := code.OutputKind(f.kind)
	method := f.method
	if method == "" && kind == code.OutputExecutable {
		method = "main"
	}
	if method == "" {
		return fmt.Errorf("--method is required for library output")
	}

	logger := f.engine.logger()
	defer func() { _ = logger.Sync() }()
	e, err := f.engine.newExec(logger, nil)
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()
	sub := code.Submission{
		Unit:         code.NewSourceUnit(name, src),
		Capabilities: f.caps,
		Kind:         kind,
		Invocation: code.InvocationRequest{
			TypeName:   f.typeName,
			MethodName: method,
			Arguments:  args,
		},
	}
	if !f.jsonReport {
		sub.Invocation.Sink = out
	}
	rep := e.Run(cmd.Context(), sub)

	if f.jsonReport {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	} else {
		printReport(cmd.ErrOrStderr(), out, rep)
	}
	if !rep.OK() {
		return errFailed
	}
	return nil
}

// printReport writes diagnostics to errw and the result value to out. Sink
// output has already been streamed to out.
func printReport(errw, out io.Writer, rep code.Report) {
	for _, d := range rep.Diagnostics {
		fmt.Fprintln(errw, d)
	}
	if rep.OK() {
		if rep.Result != nil && rep.Result.Value != nil {
			fmt.Fprintln(out, formatValue(rep.Result.Value))
		}
		return
	}
	fmt.Fprintf(errw, "%s: %s\n", rep.State, rep.Error)
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func readSource(stdin io.Reader, path string) (src, name string, err error) {
	var b []byte
	if path == "-" {
		b, err = io.ReadAll(stdin)
		name = "stdin"
	} else {
		b, err = os.ReadFile(path)
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err != nil {
		return "", "", fmt.Errorf("reading source: %w", err)
	}
	return string(b), name, nil
}
