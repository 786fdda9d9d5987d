package tree

import (
	"log/slog"
	"time"

	"github.com/c360/streamcep/condition"
	"github.com/c360/streamcep/errors"
	"github.com/c360/streamcep/event"
)

// SeqNode pairs the variable-length aggregates produced by a Kleene child
// with a subsequent qualifying event from its right child, in temporal
// order. Validated pairs become completed matches handed to the collector.
type SeqNode struct {
	name      string
	left      StoreNode
	right     StoreNode
	cond      *condition.And
	window    time.Duration
	store     *Store
	collector Collector
	policy    ConsumptionPolicy
	logger    *slog.Logger
}

// NewSeqNode creates a sequence node over a left (repetition) and right
// (qualifying event) child.
func NewSeqNode(name string, left, right StoreNode, window time.Duration, logger *slog.Logger) *SeqNode {
	if logger == nil {
		logger = slog.Default()
	}
	return &SeqNode{
		name:   name,
		left:   left,
		right:  right,
		window: window,
		store:  NewStore(window),
		policy: MatchAny{},
		logger: logger,
	}
}

// SetCollector wires the completed-match sink.
func (s *SeqNode) SetCollector(c Collector) {
	s.collector = c
}

// SetConsumptionPolicy replaces the default MatchAny policy.
func (s *SeqNode) SetConsumptionPolicy(p ConsumptionPolicy) {
	if p != nil {
		s.policy = p
	}
}

// ApplyCondition claims the pair condition scoped to the given names from
// the composite pool.
func (s *SeqNode) ApplyCondition(composite *condition.And, names []string) {
	s.cond = composite.Extract(names, false, true)
}

// HandleNewPartialMatch pairs the child's newest partial match with every
// compatible entry on the opposite side and emits validated matches.
func (s *SeqNode) HandleNewPartialMatch(child StoreNode) error {
	if s.left == nil || s.right == nil {
		return errors.WrapFatal(errors.ErrMissingChild, "SeqNode", "HandleNewPartialMatch", "resolve children")
	}

	trigger, ok := child.Store().Last()
	if !ok {
		return errors.WrapFatal(errors.ErrNoPartialMatch, "SeqNode", "HandleNewPartialMatch", "read triggering match")
	}

	s.left.Store().CleanExpired(trigger.Last)
	s.right.Store().CleanExpired(trigger.Last)

	switch child {
	case s.left:
		for _, r := range s.right.Store().Snapshot() {
			s.tryPair(trigger, r)
		}
	case s.right:
		for _, l := range s.left.Store().Snapshot() {
			s.tryPair(l, trigger)
		}
	default:
		return errors.WrapFatal(errors.ErrMissingChild, "SeqNode", "HandleNewPartialMatch", "identify notifying child")
	}

	return nil
}

// tryPair validates the ordered (left, right) pairing and emits a
// completed match when it holds.
func (s *SeqNode) tryPair(l, r *event.PartialMatch) {
	// Sequence semantics: the qualifying event starts at or after the
	// repetition ends.
	if r.First.Before(l.Last) {
		return
	}
	if r.Last.Sub(l.First) > s.window {
		return
	}

	payloads := make([]event.Payload, 0, len(l.Events)+len(r.Events))
	payloads = append(payloads, l.Payloads()...)
	payloads = append(payloads, r.Payloads()...)
	if s.cond != nil && !s.cond.Eval(payloads) {
		return
	}

	events := make([]*event.Event, 0, len(l.Events)+len(r.Events))
	events = append(events, l.Events...)
	events = append(events, r.Events...)
	match := event.NewPartialMatch(events, event.JointProbability(l.Probability, r.Probability))

	s.store.Append(match)
	if s.collector != nil {
		s.collector.Collect(match)
	}

	if s.policy.ConsumeMatched() {
		s.left.Store().Remove(l)
		s.right.Store().Remove(r)
	}
}

// Children returns the left and right children.
func (s *SeqNode) Children() []Node {
	out := make([]Node, 0, 2)
	if s.left != nil {
		out = append(out, s.left)
	}
	if s.right != nil {
		out = append(out, s.right)
	}
	return out
}

// SnapshotPartialMatches returns a copy of the completed matches held so far.
func (s *SeqNode) SnapshotPartialMatches() []*event.PartialMatch {
	return s.store.Snapshot()
}

// Store returns the node's own store of completed matches.
func (s *SeqNode) Store() *Store { return s.store }

// StructureSummary describes the sequence and its subtrees.
func (s *SeqNode) StructureSummary() string {
	summary := func(n StoreNode) string {
		if v, ok := n.(interface{ StructureSummary() string }); ok {
			return v.StructureSummary()
		}
		return "nil"
	}
	return "Seq(" + summary(s.left) + "," + summary(s.right) + ")"
}
