package tree

import (
	"log/slog"
	"time"

	"github.com/c360/streamcep/condition"
	"github.com/c360/streamcep/event"
)

// LeafNode admits primitive events into the tree. Each accepted event
// becomes a single-event partial match in the leaf's store, after which
// the parent is notified. Events of the wrong type, or failing the leaf's
// filter condition, are ignored.
type LeafNode struct {
	name      string
	eventType string
	filter    condition.Condition
	store     *Store
	parent    Parent
	logger    *slog.Logger
}

// NewLeafNode creates a leaf for the given pattern variable name and
// event type, bound to the pattern's sliding window.
func NewLeafNode(name, eventType string, window time.Duration, logger *slog.Logger) *LeafNode {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeafNode{
		name:      name,
		eventType: eventType,
		store:     NewStore(window),
		logger:    logger,
	}
}

// SetFilter installs a per-event filter condition evaluated on admission.
func (l *LeafNode) SetFilter(filter condition.Condition) {
	l.filter = filter
}

// SetParent wires the node that is notified of new partial matches.
func (l *LeafNode) SetParent(p Parent) {
	l.parent = p
}

// Name returns the pattern variable name this leaf binds.
func (l *LeafNode) Name() string { return l.name }

// EventType returns the primitive event type this leaf accepts.
func (l *LeafNode) EventType() string { return l.eventType }

// Accept admits a primitive event. The event is stored as a single-event
// partial match and the parent notified, unless the type or filter
// rejects it.
func (l *LeafNode) Accept(ev *event.Event) error {
	if ev.Type != l.eventType {
		return nil
	}
	if l.filter != nil && !l.filter.Eval([]event.Payload{ev.Payload}) {
		return nil
	}

	pm := event.NewPartialMatch([]*event.Event{ev}, ev.Probability)
	l.store.Append(pm)

	if l.parent == nil {
		return nil
	}
	return l.parent.HandleNewPartialMatch(l)
}

// Children returns an empty slice: leaves have no children.
func (l *LeafNode) Children() []Node { return nil }

// SnapshotPartialMatches returns a copy of the held partial matches.
func (l *LeafNode) SnapshotPartialMatches() []*event.PartialMatch {
	return l.store.Snapshot()
}

// Store returns the leaf's partial-match store.
func (l *LeafNode) Store() *Store { return l.store }

// StructureSummary describes the leaf for structural equivalence checks.
func (l *LeafNode) StructureSummary() string {
	return "Leaf(" + l.eventType + ":" + l.name + ")"
}
