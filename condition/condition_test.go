package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/streamcep/event"
)

func payloadSeq(entities ...string) []event.Payload {
	out := make([]event.Payload, len(entities))
	for i, e := range entities {
		out[i] = event.Payload{"entity": e}
	}
	return out
}

func TestFieldAccessor(t *testing.T) {
	acc := FieldAccessor("entity")
	assert.Equal(t, "b1", acc(event.Payload{"entity": "b1"}))
	assert.Equal(t, "", acc(event.Payload{}))
}

func TestAccessorRegistry(t *testing.T) {
	RegisterAccessor("test-entity", FieldAccessor("entity"))

	acc, err := LookupAccessor("test-entity")
	require.NoError(t, err)
	assert.Equal(t, "b1", acc(event.Payload{"entity": "b1"}))

	_, err = LookupAccessor("never-registered")
	assert.Error(t, err)
}

func TestAdjacentEqual(t *testing.T) {
	cond := AdjacentEqual([]string{"a"}, FieldAccessor("entity"))

	assert.True(t, cond.Eval(payloadSeq()))
	assert.True(t, cond.Eval(payloadSeq("b1")))
	assert.True(t, cond.Eval(payloadSeq("b1", "b1", "b1")))
	assert.False(t, cond.Eval(payloadSeq("b1", "b2", "b1")))

	assert.True(t, cond.AppliesToKleene())
	assert.Equal(t, []string{"a"}, cond.Scope())

	acc, ok := cond.GroupingAccessor()
	require.True(t, ok)
	assert.Equal(t, "b1", acc(event.Payload{"entity": "b1"}))
}

func TestAdjacentChain(t *testing.T) {
	cond := NewAdjacent([]string{"a"},
		FieldAccessor("dest"), FieldAccessor("origin"),
		func(a, b string) bool { return a == b })

	chained := []event.Payload{
		{"origin": "s1", "dest": "s2"},
		{"origin": "s2", "dest": "s3"},
		{"origin": "s3", "dest": "s4"},
	}
	broken := []event.Payload{
		{"origin": "s1", "dest": "s2"},
		{"origin": "s9", "dest": "s3"},
	}

	assert.True(t, cond.Eval(chained))
	assert.False(t, cond.Eval(broken))

	// Chaining over two accessors is not a grouping constraint
	_, ok := cond.GroupingAccessor()
	assert.False(t, ok)
}

func TestAnd_Extract_ConsumesClaimed(t *testing.T) {
	kc := AdjacentEqual([]string{"a"}, FieldAccessor("entity"))
	seq := &Func{
		Names:     []string{"a", "b"},
		Predicate: func([]event.Payload) bool { return true },
	}
	composite := NewAnd(kc, seq)

	claimed := composite.Extract([]string{"a"}, true, true)
	assert.Equal(t, 1, claimed.Len())
	assert.Equal(t, 1, composite.Len())

	// Second extraction finds nothing: the condition was consumed
	again := composite.Extract([]string{"a"}, true, true)
	assert.Equal(t, 0, again.Len())
}

func TestAnd_Extract_KleeneOnlyFilter(t *testing.T) {
	kc := AdjacentEqual([]string{"a"}, FieldAccessor("entity"))
	plain := &Func{
		Names:     []string{"a"},
		Predicate: func([]event.Payload) bool { return false },
	}
	composite := NewAnd(kc, plain)

	claimed := composite.Extract([]string{"a"}, true, true)
	assert.Equal(t, 1, claimed.Len())
	// The non-kleene condition scoped to "a" stays in the pool
	assert.Equal(t, 1, composite.Len())
}

func TestAnd_Extract_ScopeMismatchNotClaimed(t *testing.T) {
	seq := &Func{
		Names:     []string{"a", "b"},
		Predicate: func([]event.Payload) bool { return true },
	}
	composite := NewAnd(seq)

	claimed := composite.Extract([]string{"a"}, false, true)
	assert.Equal(t, 0, claimed.Len())
	assert.Equal(t, 1, composite.Len())
}

func TestAnd_EmptyEvaluatesTrue(t *testing.T) {
	assert.True(t, NewAnd().Eval(payloadSeq("b1")))
}

func TestAnd_GroupingAccessor(t *testing.T) {
	composite := NewAnd(
		NewAdjacent([]string{"a"}, FieldAccessor("dest"), FieldAccessor("origin"),
			func(a, b string) bool { return a == b }),
		AdjacentEqual([]string{"a"}, FieldAccessor("entity")),
	)

	acc, ok := composite.GroupingAccessor()
	require.True(t, ok)
	assert.Equal(t, "b7", acc(event.Payload{"entity": "b7"}))

	noGroup := NewAnd(True{})
	_, ok = noGroup.GroupingAccessor()
	assert.False(t, ok)
}
