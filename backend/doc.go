// Package backend groups loaded modules into named tool sources.
//
// A compiled module exposes entry points; a Backend presents them as
// [model.Tool] values so they can be listed, indexed for search and invoked
// by tool ID ("backend:Type.Method").
//
//   - Backend interface for tool sources
//   - Registry for the backends of open sessions
//   - Aggregator for listing and executing across backends
//
// # Registry
//
//	registry := backend.NewRegistry()
//	_ = registry.Register(moduleBackend)
//
// Unregistering a backend stops it, which unloads its module.
//
// # Aggregator
//
//	agg := backend.NewAggregator(registry)
//	tools, _ := agg.ListAllTools(ctx)
//	result, _ := agg.Execute(ctx, "calc:Calculator.Add", args)
package backend
