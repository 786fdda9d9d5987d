package tree

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/streamcep/condition"
	"github.com/c360/streamcep/errors"
	"github.com/c360/streamcep/event"
)

// Mode selects the Kleene-closure match cardinality per trigger.
type Mode int

const (
	// ModeGreedy stops after the longest accepted candidate: at most one
	// match per trigger. Shorter sequences surface naturally on later
	// triggers once older entries expire.
	ModeGreedy Mode = iota

	// ModeExhaustive collects every accepted trailing length: one match
	// per valid contiguous trailing length per trigger.
	ModeExhaustive
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeGreedy:
		return "greedy"
	case ModeExhaustive:
		return "exhaustive"
	default:
		return "unknown"
	}
}

// KleeneConfig bounds the Kleene-closure operator.
type KleeneConfig struct {
	// MinSize is the minimum sequence length. Values below 1 mean 1.
	MinSize int
	// MaxSize is the maximum sequence length; 0 means unbounded
	// ("as many as available").
	MaxSize int
	// Window is the pattern's sliding window: the maximum allowed span
	// between the earliest and latest event of a match.
	Window time.Duration
	// Mode selects greedy or exhaustive candidate collection.
	Mode Mode
}

// KleeneNode is the Kleene-closure evaluation node. On notification that
// exactly one new partial match was appended to its sole child's store,
// it builds valid variable-length trailing sequences containing that
// match, validates each against its claimed condition, and propagates the
// resulting aggregated events upward.
//
// The algorithm assumes single-writer semantics: it must not be triggered
// concurrently on the same node.
type KleeneNode struct {
	name     string
	child    StoreNode
	cfg      KleeneConfig
	cond     *condition.And
	groupKey condition.Accessor
	store    *Store
	parent   Parent
	logger   *slog.Logger
}

// NewKleeneNode creates a Kleene-closure node over the given child.
func NewKleeneNode(name string, child StoreNode, cfg KleeneConfig, logger *slog.Logger) *KleeneNode {
	if cfg.MinSize < 1 {
		cfg.MinSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KleeneNode{
		name:   name,
		child:  child,
		cfg:    cfg,
		store:  NewStore(cfg.Window),
		logger: logger,
	}
}

// SetParent wires the node that is notified of new aggregated matches.
func (k *KleeneNode) SetParent(p Parent) {
	k.parent = p
}

// Name returns the pattern variable name of the closure.
func (k *KleeneNode) Name() string { return k.name }

// Config returns the node's size and window bounds.
func (k *KleeneNode) Config() KleeneConfig { return k.cfg }

// ApplyCondition claims from the composite condition exactly the
// sub-conditions scoped to the given child names and marked as
// Kleene-closure-applicable. Claimed sub-conditions are consumed from the
// pool, preventing duplicate evaluation elsewhere in the tree. If a
// claimed condition is an adjacent-pair equality constraint, its accessor
// becomes the grouping pre-filter key.
func (k *KleeneNode) ApplyCondition(composite *condition.And, childNames []string) {
	k.cond = composite.Extract(childNames, true, true)
	k.groupKey, _ = k.cond.GroupingAccessor()
}

// HandleNewPartialMatch reacts to a new partial match at the child by
// generating, validating, and propagating aggregated matches containing
// it. It strictly assumes the last entry in the child's store is the one
// that caused the notification.
func (k *KleeneNode) HandleNewPartialMatch(child StoreNode) error {
	if k.child == nil {
		// Programming-invariant violation, never a data condition.
		return errors.WrapFatal(errors.ErrMissingChild, "KleeneNode", "HandleNewPartialMatch", "resolve child")
	}

	st := k.child.Store()
	trigger, ok := st.Last()
	if !ok {
		return errors.WrapFatal(errors.ErrNoPartialMatch, "KleeneNode", "HandleNewPartialMatch", "read triggering match")
	}

	// Expire entries that can no longer fit the window, with the
	// trigger's last timestamp as "now". The node's own aggregates age
	// out by the same clock.
	if removed := st.CleanExpired(trigger.Last); removed > 0 {
		k.logger.Debug("expired child partial matches",
			"node", k.name,
			"removed", removed,
			"remaining", st.Len())
	}
	k.store.CleanExpired(trigger.Last)

	for _, seq := range k.candidateSequences(st.Snapshot(), trigger) {
		agg := k.aggregate(seq)
		if !k.validate(agg) {
			continue
		}

		pm := event.FromAggregate(agg)
		k.store.Append(pm)

		if k.parent != nil {
			if err := k.parent.HandleNewPartialMatch(k); err != nil {
				return err
			}
		}
	}

	return nil
}

// candidateSequences builds the accepted trailing sequences, longest
// first. Every candidate must end with the triggering match, satisfy the
// size bounds, and fit the sliding window.
func (k *KleeneNode) candidateSequences(entries []*event.PartialMatch, trigger *event.PartialMatch) [][]*event.PartialMatch {
	if len(entries) == 0 {
		return nil
	}

	filtered := k.groupFilter(entries, trigger)

	maxSize := k.cfg.MaxSize
	if maxSize == 0 || maxSize > len(filtered) {
		maxSize = len(filtered)
	}

	var accepted [][]*event.PartialMatch
	for length := maxSize; length >= 1; length-- {
		seq := filtered[len(filtered)-length:]

		if seq[len(seq)-1] != trigger {
			continue
		}
		if length < k.cfg.MinSize {
			// Shorter candidates cannot satisfy the minimum either.
			break
		}
		if seq[len(seq)-1].Last.Sub(seq[0].First) > k.cfg.Window {
			continue
		}

		accepted = append(accepted, seq)
		if k.cfg.Mode == ModeGreedy {
			break
		}
	}
	return accepted
}

// groupFilter narrows the candidate entries to those sharing the
// trigger's grouping value, when the claimed condition provides one. An
// empty filtering result falls back to the unfiltered sequence: the
// pre-filter is an optimization and never drops all candidates.
func (k *KleeneNode) groupFilter(entries []*event.PartialMatch, trigger *event.PartialMatch) []*event.PartialMatch {
	if k.groupKey == nil {
		return entries
	}

	want := k.groupKey(trigger.Events[len(trigger.Events)-1].Payload)
	filtered := make([]*event.PartialMatch, 0, len(entries))
	for _, pm := range entries {
		if k.groupKey(pm.Events[len(pm.Events)-1].Payload) == want {
			filtered = append(filtered, pm)
		}
	}
	if len(filtered) == 0 {
		return entries
	}
	return filtered
}

// aggregate concatenates the underlying primitive events of the sequence
// members, order preserved, combining per-member probabilities pairwise.
func (k *KleeneNode) aggregate(seq []*event.PartialMatch) *event.AggregatedEvent {
	var primitives []*event.Event
	var probability *float64
	for _, pm := range seq {
		primitives = append(primitives, pm.Events...)
		probability = event.JointProbability(probability, pm.Probability)
	}
	return event.NewAggregatedEvent(primitives, probability)
}

// validate checks the aggregated candidate against the node's claimed
// condition. A candidate must decompose into exactly one non-empty
// aggregated event whose primitive payloads jointly satisfy the condition.
func (k *KleeneNode) validate(agg *event.AggregatedEvent) bool {
	if agg == nil || agg.Len() == 0 {
		return false
	}
	if k.cond == nil {
		return true
	}
	return k.cond.Eval(agg.Payloads())
}

// Children returns the sole child.
func (k *KleeneNode) Children() []Node {
	if k.child == nil {
		return nil
	}
	return []Node{k.child}
}

// SnapshotPartialMatches returns a copy of the node's held matches.
func (k *KleeneNode) SnapshotPartialMatches() []*event.PartialMatch {
	return k.store.Snapshot()
}

// Store returns the node's own partial-match store.
func (k *KleeneNode) Store() *Store { return k.store }

// StructureSummary describes the closure and its subtree.
func (k *KleeneNode) StructureSummary() string {
	child := "nil"
	if s, ok := k.child.(interface{ StructureSummary() string }); ok {
		child = s.StructureSummary()
	}
	return fmt.Sprintf("KC(%s)", child)
}

// Equivalent reports whether two Kleene-closure nodes are interchangeable:
// structurally equivalent subtrees and exactly matching size bounds.
func (k *KleeneNode) Equivalent(other *KleeneNode) bool {
	if other == nil {
		return false
	}
	if k.StructureSummary() != other.StructureSummary() {
		return false
	}
	return k.cfg.MinSize == other.cfg.MinSize && k.cfg.MaxSize == other.cfg.MaxSize
}
