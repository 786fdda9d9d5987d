// Package formatter turns raw input records into typed events. Records
// are comma-separated trip rows; the pattern-relevant correlation keys
// are the entity (bike) and the origin and destination stations.
package formatter

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/c360/streamcep/errors"
	"github.com/c360/streamcep/event"
)

// EventTypeTrip is the event type produced for every trip record.
const EventTypeTrip = "Trip"

// timeLayout matches the timestamps in the trip data.
const timeLayout = "2006-01-02 15:04:05"

// Positional fields of a trip record. Records carry at least the first
// twelve; the rider columns are optional.
const (
	fieldDuration = iota
	fieldStart
	fieldStop
	fieldOriginID
	fieldOriginName
	fieldOriginLat
	fieldOriginLng
	fieldDestID
	fieldDestName
	fieldDestLat
	fieldDestLng
	fieldEntityID
	fieldUserType

	minFields = fieldEntityID + 1
)

// Formatter parses a raw record into an event.
type Formatter interface {
	Parse(record string) (*event.Event, error)
}

// Keys are the correlation keys of a record, extractable without a full
// parse. The admission side uses them to classify records cheaply.
type Keys struct {
	Entity      string
	Origin      string
	Destination string
}

// ExtractKeys pulls the correlation keys from a raw record. It fails
// with a malformed-record error when the record is too short.
func ExtractKeys(record string) (Keys, error) {
	parts := splitRecord(record)
	if len(parts) < minFields {
		return Keys{}, errors.WrapInvalid(errors.ErrMalformedRecord, "formatter", "ExtractKeys", "split record")
	}
	return Keys{
		Entity:      parts[fieldEntityID],
		Origin:      parts[fieldOriginID],
		Destination: parts[fieldDestID],
	}, nil
}

// TripFormatter parses trip records into Trip events. Malformed records
// produce an invalid-class error and no event.
type TripFormatter struct {
	logger *slog.Logger
}

// NewTripFormatter creates a TripFormatter.
func NewTripFormatter(logger *slog.Logger) *TripFormatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TripFormatter{logger: logger.With("component", "formatter")}
}

// Parse builds a Trip event from a raw record. The event timestamp is
// the trip start and EndTime the trip stop, so window checks span the
// whole trip.
func (f *TripFormatter) Parse(record string) (*event.Event, error) {
	parts := splitRecord(record)
	if len(parts) < minFields {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %d of %d fields", errors.ErrMalformedRecord, len(parts), minFields),
			"formatter", "Parse", "split record")
	}

	started, err := time.Parse(timeLayout, parts[fieldStart])
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: start time %q", errors.ErrMalformedRecord, parts[fieldStart]),
			"formatter", "Parse", "parse start time")
	}
	ended, err := time.Parse(timeLayout, parts[fieldStop])
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: stop time %q", errors.ErrMalformedRecord, parts[fieldStop]),
			"formatter", "Parse", "parse stop time")
	}

	duration, _ := strconv.Atoi(parts[fieldDuration])

	payload := event.Payload{
		"entity":          parts[fieldEntityID],
		"origin":          parts[fieldOriginID],
		"destination":     parts[fieldDestID],
		"originName":      parts[fieldOriginName],
		"destinationName": parts[fieldDestName],
		"durationSeconds": duration,
		"startedAt":       started,
		"endedAt":         ended,
	}
	if lat, err := strconv.ParseFloat(parts[fieldOriginLat], 64); err == nil {
		payload["originLat"] = lat
	}
	if lng, err := strconv.ParseFloat(parts[fieldOriginLng], 64); err == nil {
		payload["originLng"] = lng
	}
	if lat, err := strconv.ParseFloat(parts[fieldDestLat], 64); err == nil {
		payload["destinationLat"] = lat
	}
	if lng, err := strconv.ParseFloat(parts[fieldDestLng], 64); err == nil {
		payload["destinationLng"] = lng
	}
	if len(parts) > fieldUserType {
		payload["userType"] = parts[fieldUserType]
	}

	ev := event.New(EventTypeTrip, payload, started)
	ev.EndTime = ended
	return ev, nil
}

func splitRecord(record string) []string {
	parts := strings.Split(record, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(p), `"`)
	}
	return parts
}
