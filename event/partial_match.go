package event

import "time"

// PartialMatch is an ordered, non-empty sequence of primitive events
// representing progress toward a pattern match. It is immutable once
// created: First and Last are computed at construction and never change.
type PartialMatch struct {
	Events      []*Event
	Probability *float64
	First       time.Time // earliest event start
	Last        time.Time // latest event end (or start when no end given)
}

// NewPartialMatch creates a partial match over the given events, computing
// the first and last timestamps. Returns nil for an empty sequence --
// partial matches are non-empty by definition.
func NewPartialMatch(events []*Event, probability *float64) *PartialMatch {
	if len(events) == 0 {
		return nil
	}

	first := events[0].Start()
	last := events[0].End()
	for _, e := range events[1:] {
		if e.Start().Before(first) {
			first = e.Start()
		}
		if e.End().After(last) {
			last = e.End()
		}
	}

	return &PartialMatch{
		Events:      events,
		Probability: probability,
		First:       first,
		Last:        last,
	}
}

// FromAggregate creates a single-element partial match holding an
// aggregated event's underlying primitives, preserving its timestamps.
func FromAggregate(agg *AggregatedEvent) *PartialMatch {
	return &PartialMatch{
		Events:      agg.Primitives,
		Probability: agg.Probability,
		First:       agg.Start(),
		Last:        agg.End(),
	}
}

// Span returns the temporal extent of the match: last timestamp minus
// first timestamp. A match is only valid while its span fits inside the
// pattern's sliding window.
func (pm *PartialMatch) Span() time.Duration {
	return pm.Last.Sub(pm.First)
}

// Payloads returns the payload of every contained event, in order.
func (pm *PartialMatch) Payloads() []Payload {
	out := make([]Payload, len(pm.Events))
	for i, e := range pm.Events {
		out[i] = e.Payload
	}
	return out
}

// Len returns the number of contained events.
func (pm *PartialMatch) Len() int {
	return len(pm.Events)
}
