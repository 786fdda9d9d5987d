package condition

import "github.com/c360/streamcep/event"

// And is the composite condition a pattern is compiled with. Evaluation
// nodes claim their sub-conditions from it at compile time; claimed
// sub-conditions are removed from the pool so no other node evaluates
// them a second time.
type And struct {
	conds []Condition
}

// NewAnd builds a composite AND condition over the given sub-conditions.
func NewAnd(conds ...Condition) *And {
	return &And{conds: conds}
}

// Eval reports whether every remaining sub-condition holds.
func (a *And) Eval(payloads []event.Payload) bool {
	for _, c := range a.conds {
		if !c.Eval(payloads) {
			return false
		}
	}
	return true
}

// Len returns the number of sub-conditions still in the pool.
func (a *And) Len() int { return len(a.conds) }

// Extract claims the sub-conditions scoped entirely to the given names.
// When kleeneOnly is set, only conditions marked Kleene-closure-applicable
// qualify. When consume is set, claimed conditions are removed from the
// pool, preventing duplicate evaluation elsewhere in the tree.
//
// The claimed conditions are returned as a new And (empty when nothing
// qualified, which evaluates to true).
func (a *And) Extract(names []string, kleeneOnly, consume bool) *And {
	nameSet := make(map[string]bool, len(names))
	for _, n := range names {
		nameSet[n] = true
	}

	var claimed, remaining []Condition
	for _, c := range a.conds {
		if scopedWithin(c, nameSet) && (!kleeneOnly || appliesToKleene(c)) {
			claimed = append(claimed, c)
			continue
		}
		remaining = append(remaining, c)
	}

	if consume {
		a.conds = remaining
	}
	return &And{conds: claimed}
}

func scopedWithin(c Condition, names map[string]bool) bool {
	sc, ok := c.(Scoped)
	if !ok {
		return false
	}
	scope := sc.Scope()
	if len(scope) == 0 {
		return false
	}
	for _, n := range scope {
		if !names[n] {
			return false
		}
	}
	return true
}

func appliesToKleene(c Condition) bool {
	kc, ok := c.(KleeneApplicable)
	return ok && kc.AppliesToKleene()
}

// GroupingAccessor scans the sub-conditions for an adjacent-pair equality
// constraint and returns its key accessor. Used by the Kleene node to
// derive its grouping pre-filter from the compiled condition.
func (a *And) GroupingAccessor() (Accessor, bool) {
	for _, c := range a.conds {
		if adj, ok := c.(*Adjacent); ok {
			if acc, ok := adj.GroupingAccessor(); ok {
				return acc, true
			}
		}
	}
	return nil, false
}
