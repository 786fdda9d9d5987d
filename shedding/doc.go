// Package shedding implements pattern-aware load shedding for the
// admission side of the pipeline.
//
// Three collaborators divide the work. The Inspector walks the
// evaluation tree on a fixed interval and rebuilds the set of
// correlation keys currently involved in partial matches. The
// Controller turns batch latency feedback into a sampling rate, moving
// it multiplicatively between a configured floor and 1.0. The Feeder
// applies both per record, in strict priority order: protected keys are
// always admitted, then configured target keys, then a degenerate-trip
// drop, and only then probabilistic sampling under latency pressure.
// Malformed records are dropped before any of that.
//
// The feeder owns every admission counter; the controller and inspector
// expose read-only state to it.
package shedding
