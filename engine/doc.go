// Package engine assembles and drives the full pipeline: it compiles
// the pattern configuration into an evaluation tree, wires the
// admission feeder and tree inspector around a bounded transport, and
// fans completed matches out to the configured sinks.
//
// An Engine runs one input to completion. Construction and Run are
// separate so callers can compile and validate a pipeline without
// touching the input or opening sinks.
package engine
