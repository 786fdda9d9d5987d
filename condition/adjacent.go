package condition

import "github.com/c360/streamcep/event"

// Adjacent evaluates a relation between every adjacent pair of payloads
// in a Kleene-closure sequence: Relation(left(p[i]), right(p[i+1])) must
// hold for all i. With Left == Right and an equality relation this is the
// "same key throughout" constraint; with distinct accessors it expresses
// chaining (element i's destination equals element i+1's origin).
type Adjacent struct {
	Names    []string
	Left     Accessor
	Right    Accessor
	Relation func(a, b string) bool

	// grouping is set by AdjacentEqual: the condition constrains all
	// members to share one key, which the Kleene node may exploit as a
	// grouping pre-filter over candidate partial matches.
	grouping bool
}

// NewAdjacent builds an adjacent-pair condition over the given pattern
// variable names.
func NewAdjacent(names []string, left, right Accessor, relation func(a, b string) bool) *Adjacent {
	return &Adjacent{Names: names, Left: left, Right: right, Relation: relation}
}

// AdjacentEqual builds the adjacent-pair equality condition over a single
// accessor: every member of the sequence carries the same key. The
// resulting condition is marked as a grouping constraint.
func AdjacentEqual(names []string, key Accessor) *Adjacent {
	return &Adjacent{
		Names:    names,
		Left:     key,
		Right:    key,
		Relation: func(a, b string) bool { return a == b },
		grouping: true,
	}
}

// Eval reports whether the relation holds for every adjacent pair.
// Sequences of length 0 or 1 have no pairs and are trivially valid.
func (a *Adjacent) Eval(payloads []event.Payload) bool {
	if a.Relation == nil {
		return true
	}
	for i := 0; i+1 < len(payloads); i++ {
		if !a.Relation(a.Left(payloads[i]), a.Right(payloads[i+1])) {
			return false
		}
	}
	return true
}

// Scope returns the pattern variable names this condition is bound to.
func (a *Adjacent) Scope() []string { return a.Names }

// AppliesToKleene marks the condition as evaluating over the members of
// a Kleene sequence.
func (a *Adjacent) AppliesToKleene() bool { return true }

// GroupingAccessor returns the shared-key accessor when this condition is
// an adjacent-pair equality constraint, enabling the Kleene node's
// grouping pre-filter. The second return is false otherwise.
func (a *Adjacent) GroupingAccessor() (Accessor, bool) {
	if !a.grouping {
		return nil, false
	}
	return a.Left, true
}
