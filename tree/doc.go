// Package tree implements the evaluation tree a compiled pattern runs on.
//
// Leaves accept primitive events and hold them as single-event partial
// matches. A KleeneNode sits above a leaf and builds variable-length
// aggregates from the leaf's buffered matches, newest-first, bounded by
// the pattern's size limits and time window. A SeqNode pairs those
// aggregates with a subsequent qualifying event and hands completed
// matches to a Collector.
//
// Each node owns a Store of partial matches guarded by a read-write
// mutex. Evaluation itself is single-threaded; the locking exists so a
// concurrent observer (the load-shedding inspector) can snapshot node
// state safely while the evaluator runs. Observed state may lag the
// evaluator by a few events, which the observer tolerates.
package tree
