package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagescope/scraper-engine/internal/domain/model"
)

func TestEventLogService_EmitSequence(t *testing.T) {
	repo := newMemoryEventLog()
	svc := MustNewEventLogService(EventLogServiceOptions{Repo: repo})
	ctx := context.Background()
	jobID := "job-1"

	require.NoError(t, svc.EmitStart(ctx, jobID))
	require.NoError(t, svc.EmitReading(ctx, jobID, "https://example.com"))
	require.NoError(t, svc.EmitUpdate(ctx, jobID, "Analyzing page content"))
	require.NoError(t, svc.EmitComplete(ctx, jobID, json.RawMessage(`{"product_name":"Acme"}`)))

	events, err := svc.ReadFrom(ctx, jobID, 0)
	require.NoError(t, err)
	require.Len(t, events, 4)

	kinds := []model.EventKind{
		model.EventKindStart,
		model.EventKindReading,
		model.EventKindUpdate,
		model.EventKindComplete,
	}
	for i, e := range events {
		assert.Equal(t, i, e.Position)
		assert.Equal(t, kinds[i], e.Kind)
	}
}

func TestEventLogService_AppendAfterTerminalFails(t *testing.T) {
	repo := newMemoryEventLog()
	svc := MustNewEventLogService(EventLogServiceOptions{Repo: repo})
	ctx := context.Background()
	jobID := "job-2"

	require.NoError(t, svc.EmitError(ctx, jobID, "fetch failed"))

	err := svc.EmitUpdate(ctx, jobID, "too late")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrLogClosed)
}

func TestEventLogService_Append_RejectsInvalidEvent(t *testing.T) {
	repo := newMemoryEventLog()
	svc := MustNewEventLogService(EventLogServiceOptions{Repo: repo})

	_, err := svc.Append(context.Background(), "job-3", &model.Event{Kind: model.EventKindUpdate})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message is required")
}
