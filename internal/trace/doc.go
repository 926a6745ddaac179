// Package trace records what the stub pipeline is doing and how long it takes.
//
// A tracer travels through the pipeline inside a context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeFile, "file:"+path, parent)
//	defer span.End("")
//
// Implementations:
//
//   - Nop: tracing disabled
//   - StreamTracer: writes every event as text or NDJSON
//   - RingTracer: keeps the last N events for a dump after a failure
//   - MultiTracer: fans out to several tracers
//
// Levels select scopes: phase shows the driver and its phases, detail adds
// one span per file, debug adds per-node events.
//
// Enable from the command line:
//
//	stubtree build --trace=- --trace-level=detail ./src
package trace
