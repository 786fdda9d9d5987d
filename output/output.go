// Package output defines the match sink contract and the text encoding
// shared by the concrete sinks.
//
// A completed match is written as one JSON object per contributing
// event, in order, with a blank line terminating the group. A match
// with no contributing events is written as an explicit empty marker
// rather than silently skipped.
package output

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/c360/streamcep/errors"
	"github.com/c360/streamcep/event"
)

// EmptyMarker is written for a match that carries no contributing events.
const EmptyMarker = "{}"

// Sink consumes completed matches.
type Sink interface {
	// WriteMatch hands one completed match to the sink. Implementations
	// may buffer; Flush forces delivery.
	WriteMatch(match *event.PartialMatch) error
	Flush() error
	Stop(timeout time.Duration) error
}

// EncodeMatch renders a match group as text: one JSON object per
// contributing event, a blank line after the group.
func EncodeMatch(match *event.PartialMatch) ([]byte, error) {
	var buf bytes.Buffer

	if match == nil || len(match.Events) == 0 {
		buf.WriteString(EmptyMarker)
		buf.WriteByte('\n')
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	}

	for _, ev := range match.Events {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, errors.WrapInvalid(err, "output", "EncodeMatch", "marshal event payload")
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
