package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrLogClosed is returned when appending to a log that already holds a
// terminal event.
var ErrLogClosed = errors.New("event log is closed")

// EventKind identifies the kind of a job progress event.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type EventKind string

const (
	// EventKindStart is emitted once when a worker begins executing a job.
	EventKindStart EventKind = "start"
	// EventKindReading is emitted per page fetch and carries the URL being read.
	EventKindReading EventKind = "reading"
	// EventKindUpdate is a generic progress message.
	EventKindUpdate EventKind = "update"
	// EventKindComplete is the terminal success event; it carries the full result.
	EventKindComplete EventKind = "complete"
	// EventKindError is the terminal failure event; it carries the error detail.
	EventKindError EventKind = "error"
)

// Valid returns true if the EventKind is one of the known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventKindStart, EventKindReading, EventKindUpdate, EventKindComplete, EventKindError:
		return true
	}
	return false
}

// Terminal returns true for the two kinds that close a job's event log.
func (k EventKind) Terminal() bool {
	return k == EventKindComplete || k == EventKindError
}

// UnmarshalText implements encoding.TextUnmarshaler for EventKind.
func (k *EventKind) UnmarshalText(text []byte) error {
	v := EventKind(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid EventKind: %q", v)
	}
	*k = v
	return nil
}

// Event is one immutable, ordered progress record belonging to a job.
// Position is the 0-based append index within the job's log; it is assigned
// by the Event Log Store and tagged onto events as they are read, so the
// stored JSON never carries it.
type Event struct {
	Position int       `json:"position"`
	Kind     EventKind `json:"event"`
	Message  string    `json:"message"`

	// URL is set on reading events only.
	URL string `json:"url,omitempty"`
	// Data carries the final ProductSnapshot on complete events.
	Data json.RawMessage `json:"data,omitempty"`
	// Error carries the failure detail on error events.
	Error string `json:"error,omitempty"`
}

// Validate checks the event is well formed for appending.
func (e *Event) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("invalid event kind: %q", e.Kind)
	}
	if e.Message == "" {
		return errors.New("event message is required")
	}
	if e.Kind == EventKindReading && e.URL == "" {
		return errors.New("reading event requires a url")
	}
	if e.Kind == EventKindError && e.Error == "" {
		return errors.New("error event requires an error detail")
	}
	return nil
}

// StartEvent builds the event emitted when a job begins.
func StartEvent() *Event {
	return &Event{Kind: EventKindStart, Message: "Checking out your website"}
}

// ReadingEvent builds the event emitted when a page is being read.
func ReadingEvent(url string) *Event {
	return &Event{Kind: EventKindReading, URL: url, Message: "Reading " + url}
}

// UpdateEvent builds a generic progress event.
func UpdateEvent(message string) *Event {
	return &Event{Kind: EventKindUpdate, Message: message}
}

// CompleteEvent builds the terminal success event carrying the result payload.
func CompleteEvent(data json.RawMessage) *Event {
	return &Event{
		Kind:    EventKindComplete,
		Message: "All done! Your product information is ready",
		Data:    data,
	}
}

// ErrorEvent builds the terminal failure event.
func ErrorEvent(detail string) *Event {
	return &Event{Kind: EventKindError, Message: "Scraping failed", Error: detail}
}
