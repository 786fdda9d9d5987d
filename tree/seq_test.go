package tree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/streamcep/condition"
	"github.com/c360/streamcep/errors"
	"github.com/c360/streamcep/event"
)

func journeyEvent(sec, endSec int, entity, origin, dest string) *event.Event {
	ev := event.New("Trip", event.Payload{
		"entity": entity,
		"origin": origin,
		"dest":   dest,
	}, tsAt(sec))
	ev.EndTime = tsAt(endSec)
	return ev
}

// buildPattern assembles SEQ(Trip+ a[], Trip b): chained same-entity trips
// ending with a trip into a hot destination.
func buildPattern(t *testing.T, window time.Duration, policy ConsumptionPolicy) (*LeafNode, *LeafNode, *[]*event.PartialMatch) {
	t.Helper()

	hot := map[string]bool{"3186": true, "3183": true, "3203": true}

	leafA := NewLeafNode("a", "Trip", window, nil)
	leafB := NewLeafNode("b", "Trip", window, nil)

	kc := NewKleeneNode("a", leafA, KleeneConfig{
		MinSize: 1, MaxSize: 10, Window: window, Mode: ModeGreedy,
	}, nil)
	leafA.SetParent(kc)

	seq := NewSeqNode("hot-paths", kc, leafB, window, nil)
	kc.SetParent(seq)
	leafB.SetParent(seq)
	if policy != nil {
		seq.SetConsumptionPolicy(policy)
	}

	entity := condition.FieldAccessor("entity")
	origin := condition.FieldAccessor("origin")
	dest := condition.FieldAccessor("dest")

	composite := condition.NewAnd(
		condition.AdjacentEqual([]string{"a"}, entity),
		condition.NewAdjacent([]string{"a"}, dest, origin,
			func(a, b string) bool { return a == b }),
		&condition.Func{
			Names: []string{"a", "b"},
			Predicate: func(payloads []event.Payload) bool {
				if len(payloads) < 2 {
					return false
				}
				b := payloads[len(payloads)-1]
				aLast := payloads[len(payloads)-2]
				return entity(aLast) != "" &&
					entity(aLast) == entity(b) &&
					dest(aLast) == origin(b) &&
					hot[dest(b)]
			},
		},
	)

	kc.ApplyCondition(composite, []string{"a"})
	seq.ApplyCondition(composite, []string{"a", "b"})
	require.Equal(t, 0, composite.Len(), "all conditions claimed exactly once")

	var matches []*event.PartialMatch
	seq.SetCollector(CollectorFunc(func(m *event.PartialMatch) {
		matches = append(matches, m)
	}))

	return leafA, leafB, &matches
}

func feedBoth(t *testing.T, leafA, leafB *LeafNode, ev *event.Event) {
	t.Helper()
	require.NoError(t, leafA.Accept(ev))
	// Each raw event is offered to both leaves, as the engine does
	clone := *ev
	require.NoError(t, leafB.Accept(&clone))
}

func TestSeq_HotPathMatch(t *testing.T) {
	leafA, leafB, matches := buildPattern(t, time.Hour, nil)

	feedBoth(t, leafA, leafB, journeyEvent(0, 300, "b1", "3001", "3002"))
	feedBoth(t, leafA, leafB, journeyEvent(400, 700, "b1", "3002", "3003"))
	feedBoth(t, leafA, leafB, journeyEvent(800, 1100, "b1", "3003", "3186"))

	require.NotEmpty(t, *matches)
	final := (*matches)[len(*matches)-1]

	// The chain b1: 3001->3002->3003->3186 completes at the hot station
	require.Equal(t, 3, final.Len())
	assert.Equal(t, "3186", final.Events[final.Len()-1].Payload.GetString("dest"))
	assert.LessOrEqual(t, final.Span(), time.Hour)
}

func TestSeq_NoMatchForColdDestination(t *testing.T) {
	leafA, leafB, matches := buildPattern(t, time.Hour, nil)

	feedBoth(t, leafA, leafB, journeyEvent(0, 300, "b1", "3001", "3002"))
	feedBoth(t, leafA, leafB, journeyEvent(400, 700, "b1", "3002", "3099"))

	assert.Empty(t, *matches)
}

func TestSeq_NoMatchAcrossEntities(t *testing.T) {
	leafA, leafB, matches := buildPattern(t, time.Hour, nil)

	feedBoth(t, leafA, leafB, journeyEvent(0, 300, "b1", "3001", "3002"))
	feedBoth(t, leafA, leafB, journeyEvent(400, 700, "b2", "3002", "3186"))

	// b2's hot arrival cannot complete b1's chain; a single-trip chain for
	// b2 itself would need the same trip on both sides, which sequence
	// ordering forbids.
	assert.Empty(t, *matches)
}

func TestSeq_WindowBoundsCompletedMatch(t *testing.T) {
	leafA, leafB, matches := buildPattern(t, 600*time.Second, nil)

	feedBoth(t, leafA, leafB, journeyEvent(0, 100, "b1", "3001", "3002"))
	feedBoth(t, leafA, leafB, journeyEvent(650, 750, "b1", "3002", "3003"))
	feedBoth(t, leafA, leafB, journeyEvent(800, 900, "b1", "3003", "3186"))

	for _, m := range *matches {
		assert.LessOrEqual(t, m.Span(), 600*time.Second)
	}
}

func TestSeq_ConsumptionPolicyRemovesMatched(t *testing.T) {
	leafA, leafB, matches := buildPattern(t, time.Hour, MatchSingle{})

	feedBoth(t, leafA, leafB, journeyEvent(0, 300, "b1", "3001", "3002"))
	feedBoth(t, leafA, leafB, journeyEvent(400, 700, "b1", "3002", "3186"))

	require.Len(t, *matches, 1)
	assert.Equal(t, 2, (*matches)[0].Len())

	// The matched pair was consumed: the single-trip aggregate is gone
	// from the left store and the hot arrival from the right store.
	kc, ok := leafA.parent.(*KleeneNode)
	require.True(t, ok)
	for _, pm := range kc.Store().Snapshot() {
		assert.NotEqual(t, 1, pm.Len())
	}
	for _, pm := range leafB.Store().Snapshot() {
		assert.NotEqual(t, "3186", pm.Events[0].Payload.GetString("dest"))
	}
}

func TestSeq_DefaultPolicyRetainsMatched(t *testing.T) {
	leafA, leafB, matches := buildPattern(t, time.Hour, nil)

	feedBoth(t, leafA, leafB, journeyEvent(0, 300, "b1", "3001", "3002"))
	feedBoth(t, leafA, leafB, journeyEvent(400, 700, "b1", "3002", "3186"))

	require.Len(t, *matches, 1)

	// MatchAny leaves both sides intact for later pairings.
	kc, ok := leafA.parent.(*KleeneNode)
	require.True(t, ok)
	assert.Equal(t, 2, kc.Store().Len())
	assert.Equal(t, 2, leafB.Store().Len())
}

func TestSeq_MissingChildIsFatal(t *testing.T) {
	seq := &SeqNode{name: "broken", window: time.Minute, store: NewStore(time.Minute), policy: MatchAny{}}

	err := seq.HandleNewPartialMatch(nil)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestSeq_Traversal(t *testing.T) {
	leafA, _, _ := buildPattern(t, time.Hour, nil)

	// Walk up from the leaf's wiring: leafA -> kleene -> seq
	kc, ok := leafA.parent.(*KleeneNode)
	require.True(t, ok)
	seq, ok := kc.parent.(*SeqNode)
	require.True(t, ok)

	children := seq.Children()
	require.Len(t, children, 2)
	assert.Same(t, kc, children[0])
	assert.Equal(t, "Seq(KC(Leaf(Trip:a)),Leaf(Trip:b))", seq.StructureSummary())
}
