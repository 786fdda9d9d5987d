// Package event defines the data model of the matching pipeline: primitive
// events, aggregated events produced by the Kleene-closure operator, and
// partial matches accumulated by evaluation nodes.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload holds the named fields of a primitive event.
type Payload map[string]any

// GetString returns the named field as a string, or "" when absent or not
// a string. Correlation keys are always strings in this pipeline.
func (p Payload) GetString(key string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Event is an immutable primitive event: a payload of named fields plus a
// derived start timestamp and an optional end timestamp.
type Event struct {
	ID          string
	Type        string
	Payload     Payload
	Timestamp   time.Time
	EndTime     time.Time // zero when the source provides no end timestamp
	Probability *float64  // nil unless probabilistic matching is enabled
}

// New creates a primitive event with a generated ID.
func New(eventType string, payload Payload, ts time.Time) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: ts,
	}
}

// Start returns the event's start timestamp.
func (e *Event) Start() time.Time {
	return e.Timestamp
}

// End returns the event's end timestamp, falling back to the start
// timestamp when no end was provided.
func (e *Event) End() time.Time {
	if e.EndTime.IsZero() {
		return e.Timestamp
	}
	return e.EndTime
}

// JointProbability combines two optional per-event confidences into a joint
// probability. A nil operand acts as identity; two nils stay nil.
func JointProbability(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	p := *a * *b
	return &p
}
