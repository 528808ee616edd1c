package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pagescope/scraper-engine/internal/core"
	"github.com/pagescope/scraper-engine/internal/domain/model"
)

// EventLogServiceOptions groups dependencies for EventLogService.
type EventLogServiceOptions struct {
	Repo   core.EventLogRepository // Required: event log repository
	Logger *slog.Logger            // Optional: structured logger
}

// EventLogService records job progress events and serves ordered reads.
type EventLogService struct {
	repo   core.EventLogRepository
	logger *slog.Logger
}

// NewEventLogService constructs a new EventLogService.
func NewEventLogService(opts EventLogServiceOptions) (*EventLogService, error) {
	if opts.Repo == nil {
		return nil, errors.New("EventLogRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "event_log_service")
	}

	return &EventLogService{repo: opts.Repo, logger: logger}, nil
}

// MustNewEventLogService constructs a new EventLogService and panics on error.
func MustNewEventLogService(opts EventLogServiceOptions) *EventLogService {
	svc, err := NewEventLogService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create EventLogService: %v", err))
	}
	return svc
}

// Append appends an event to a job's log and returns its position.
func (s *EventLogService) Append(ctx context.Context, jobID string, event *model.Event) (int, error) {
	position, err := s.repo.Append(ctx, jobID, event)
	if err != nil {
		return 0, fmt.Errorf("append %s event for job %s: %w", event.Kind, jobID, err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "event appended",
			"job_id", jobID,
			"kind", event.Kind,
			"position", position,
		)
	}
	return position, nil
}

// EmitStart records the start of job execution.
func (s *EventLogService) EmitStart(ctx context.Context, jobID string) error {
	_, err := s.Append(ctx, jobID, model.StartEvent())
	return err
}

// EmitReading records a page fetch in progress.
func (s *EventLogService) EmitReading(ctx context.Context, jobID, url string) error {
	_, err := s.Append(ctx, jobID, model.ReadingEvent(url))
	return err
}

// EmitUpdate records a generic progress message.
func (s *EventLogService) EmitUpdate(ctx context.Context, jobID, message string) error {
	_, err := s.Append(ctx, jobID, model.UpdateEvent(message))
	return err
}

// EmitComplete records the terminal success event carrying the result data.
func (s *EventLogService) EmitComplete(ctx context.Context, jobID string, data json.RawMessage) error {
	_, err := s.Append(ctx, jobID, model.CompleteEvent(data))
	return err
}

// EmitError records the terminal failure event.
func (s *EventLogService) EmitError(ctx context.Context, jobID, detail string) error {
	_, err := s.Append(ctx, jobID, model.ErrorEvent(detail))
	return err
}

// ReadFrom returns the job's events from the given position to the end of the
// log. An unknown job yields an empty slice, never an error.
func (s *EventLogService) ReadFrom(ctx context.Context, jobID string, from int) ([]*model.Event, error) {
	events, err := s.repo.ReadRange(ctx, jobID, from)
	if err != nil {
		return nil, fmt.Errorf("read events for job %s: %w", jobID, err)
	}
	return events, nil
}
