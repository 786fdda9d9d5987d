// Package condition provides the condition model for pattern matching:
// typed payload accessors resolved at compile time, adjacent-pair Kleene
// conditions, and a composite AND condition that evaluation nodes claim
// their sub-conditions from.
package condition

import "github.com/c360/streamcep/event"

// Condition validates a candidate sequence of event payloads.
type Condition interface {
	// Eval reports whether the ordered payload sequence satisfies the
	// condition. An empty condition is trivially satisfied.
	Eval(payloads []event.Payload) bool
}

// Scoped conditions declare which pattern variable names they reference.
// Evaluation nodes use the scope to claim sub-conditions that apply to
// their own subtree.
type Scoped interface {
	Condition
	// Scope returns the pattern variable names this condition is bound to.
	Scope() []string
}

// KleeneApplicable marks conditions that evaluate over the members of a
// Kleene-closure sequence (as opposed to across pattern variables).
type KleeneApplicable interface {
	Condition
	AppliesToKleene() bool
}

// True is the trivially-satisfied condition.
type True struct{}

// Eval always reports true.
func (True) Eval([]event.Payload) bool { return true }

// Func adapts a plain predicate into a Condition scoped to the given
// names. Used for pattern-final conditions built at compile time.
type Func struct {
	Names     []string
	Predicate func(payloads []event.Payload) bool
}

// Eval applies the predicate.
func (f *Func) Eval(payloads []event.Payload) bool {
	if f.Predicate == nil {
		return true
	}
	return f.Predicate(payloads)
}

// Scope returns the names the predicate is bound to.
func (f *Func) Scope() []string { return f.Names }
