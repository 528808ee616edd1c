package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKind_Valid(t *testing.T) {
	assert.True(t, EventKindStart.Valid())
	assert.True(t, EventKindReading.Valid())
	assert.True(t, EventKindUpdate.Valid())
	assert.True(t, EventKindComplete.Valid())
	assert.True(t, EventKindError.Valid())
	assert.False(t, EventKind("progress").Valid())
}

func TestEventKind_Terminal(t *testing.T) {
	assert.True(t, EventKindComplete.Terminal())
	assert.True(t, EventKindError.Terminal())
	assert.False(t, EventKindStart.Terminal())
	assert.False(t, EventKindReading.Terminal())
	assert.False(t, EventKindUpdate.Terminal())
}

func TestEventKind_UnmarshalText(t *testing.T) {
	var k EventKind
	require.NoError(t, k.UnmarshalText([]byte(" Complete ")))
	assert.Equal(t, EventKindComplete, k)

	require.Error(t, k.UnmarshalText([]byte("bogus")))
}

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name        string
		event       *Event
		expectError string
	}{
		{
			name:  "valid update",
			event: UpdateEvent("working on it"),
		},
		{
			name:  "valid reading",
			event: ReadingEvent("https://example.com/pricing"),
		},
		{
			name:        "unknown kind",
			event:       &Event{Kind: "progress", Message: "hi"},
			expectError: "invalid event kind",
		},
		{
			name:        "missing message",
			event:       &Event{Kind: EventKindUpdate},
			expectError: "message is required",
		},
		{
			name:        "reading without url",
			event:       &Event{Kind: EventKindReading, Message: "Reading"},
			expectError: "requires a url",
		},
		{
			name:        "error without detail",
			event:       &Event{Kind: EventKindError, Message: "Scraping failed"},
			expectError: "requires an error detail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.expectError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestEventBuilders(t *testing.T) {
	start := StartEvent()
	assert.Equal(t, EventKindStart, start.Kind)
	assert.NotEmpty(t, start.Message)

	reading := ReadingEvent("https://example.com")
	assert.Equal(t, "https://example.com", reading.URL)
	assert.Contains(t, reading.Message, "https://example.com")

	complete := CompleteEvent(json.RawMessage(`{"product_name":"Acme"}`))
	assert.True(t, complete.Kind.Terminal())
	assert.NotEmpty(t, complete.Data)

	failure := ErrorEvent("connection refused")
	assert.True(t, failure.Kind.Terminal())
	assert.Equal(t, "connection refused", failure.Error)
}

func TestEvent_JSONOmitsEmptyOptionalFields(t *testing.T) {
	raw, err := json.Marshal(UpdateEvent("almost there"))
	require.NoError(t, err)

	assert.NotContains(t, string(raw), `"url"`)
	assert.NotContains(t, string(raw), `"data"`)
	assert.NotContains(t, string(raw), `"error"`)
	assert.Contains(t, string(raw), `"position":0`)
}
