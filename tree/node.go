// Package tree implements the evaluation tree of the matching pipeline:
// an append-ordered partial-match store, leaf nodes admitting primitive
// events, the Kleene-closure node building variable-length sequences, and
// a sequence node pairing those sequences with a qualifying event.
package tree

import "github.com/c360/streamcep/event"

// Node is the narrow, read-only traversal interface every evaluation node
// implements. External observers (the in-flight state inspector) depend on
// it instead of node-kind-specific internals.
type Node interface {
	// Children returns the node's child nodes, left to right. Leaves
	// return an empty slice.
	Children() []Node

	// SnapshotPartialMatches returns a copy of the node's currently held
	// partial matches in arrival order. Nodes without a store return nil.
	SnapshotPartialMatches() []*event.PartialMatch
}

// StoreNode is a node that owns a partial-match store. Parents read their
// child's store when notified of a new partial match.
type StoreNode interface {
	Node
	Store() *Store
}

// Parent receives notifications that exactly one new partial match was
// appended to a child's store. Not safe for concurrent invocation on the
// same node: the evaluator is single-threaded per pattern tree.
type Parent interface {
	HandleNewPartialMatch(child StoreNode) error
}

// Collector receives completed pattern matches from the tree root.
type Collector interface {
	Collect(match *event.PartialMatch)
}

// CollectorFunc adapts a function to the Collector interface.
type CollectorFunc func(match *event.PartialMatch)

// Collect calls the function.
func (f CollectorFunc) Collect(match *event.PartialMatch) { f(match) }

// ConsumptionPolicy governs whether a completed match removes its
// constituent partial matches from further use. The sequence node
// consults it after every emitted match.
type ConsumptionPolicy interface {
	// ConsumeMatched reports whether partial matches that contributed to
	// a completed match must be removed from their stores.
	ConsumeMatched() bool
}

// MatchAny is the default policy: events may participate in any number of
// overlapping matches.
type MatchAny struct{}

// ConsumeMatched reports false: nothing is removed.
func (MatchAny) ConsumeMatched() bool { return false }

// MatchSingle removes contributing partial matches once consumed, so each
// event participates in at most one completed match.
type MatchSingle struct{}

// ConsumeMatched reports true.
func (MatchSingle) ConsumeMatched() bool { return true }
