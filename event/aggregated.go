package event

import "time"

// AggregatedEvent is a primitive-event-like wrapper over a fixed, ordered
// sequence of primitive events. It is the match unit the Kleene-closure
// node produces: one aggregated event per accepted variable-length
// sequence, exposing the same timestamp interface as a primitive event.
type AggregatedEvent struct {
	Primitives  []*Event
	Probability *float64
}

// NewAggregatedEvent wraps the given primitive events, order preserved.
// The probability is the pairwise-combined probability across members
// when probabilities are tracked, nil otherwise.
func NewAggregatedEvent(primitives []*Event, probability *float64) *AggregatedEvent {
	return &AggregatedEvent{
		Primitives:  primitives,
		Probability: probability,
	}
}

// Start returns the start timestamp of the first underlying event.
func (a *AggregatedEvent) Start() time.Time {
	if len(a.Primitives) == 0 {
		return time.Time{}
	}
	return a.Primitives[0].Start()
}

// End returns the end timestamp of the last underlying event.
func (a *AggregatedEvent) End() time.Time {
	if len(a.Primitives) == 0 {
		return time.Time{}
	}
	return a.Primitives[len(a.Primitives)-1].End()
}

// Payloads returns the payloads of the underlying primitive events in
// order. Conditions over the aggregate evaluate against this slice.
func (a *AggregatedEvent) Payloads() []Payload {
	out := make([]Payload, len(a.Primitives))
	for i, e := range a.Primitives {
		out[i] = e.Payload
	}
	return out
}

// Len returns the number of underlying primitive events.
func (a *AggregatedEvent) Len() int {
	return len(a.Primitives)
}
