package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagescope/scraper-engine/internal/core"
	"github.com/pagescope/scraper-engine/internal/domain/model"
)

// StreamServiceOptions groups dependencies for StreamService.
type StreamServiceOptions struct {
	Repo         core.EventLogRepository // Required: event log repository
	PollInterval time.Duration           // Optional: live-tail poll cadence, default 100ms
	MaxWait      time.Duration           // Optional: live-tail patience, default 60s
	Logger       *slog.Logger            // Optional: structured logger
}

// StreamService serves a job's event log as a resumable ordered stream:
// replay everything already logged from the requested position, then tail the
// log until a terminal event arrives or the patience window expires.
type StreamService struct {
	repo         core.EventLogRepository
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *slog.Logger
}

// NewStreamService constructs a new StreamService.
func NewStreamService(opts StreamServiceOptions) (*StreamService, error) {
	if opts.Repo == nil {
		return nil, errors.New("EventLogRepository is required")
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	maxWait := opts.MaxWait
	if maxWait <= 0 {
		maxWait = time.Minute
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "stream_service")
	}

	return &StreamService{
		repo:         opts.Repo,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		logger:       logger,
	}, nil
}

// MustNewStreamService constructs a new StreamService and panics on error.
func MustNewStreamService(opts StreamServiceOptions) *StreamService {
	svc, err := NewStreamService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create StreamService: %v", err))
	}
	return svc
}

// Stream delivers the job's events in position order to send, starting at
// from. Events already logged are replayed immediately; after that the log is
// polled until a terminal event, the patience window elapsing with no
// terminal event, a send failure, or context cancellation. Returning nil
// means the stream ended cleanly; the client can resume from the next
// position. An unknown job is not an error: the stream waits for the log to
// appear until patience runs out.
func (s *StreamService) Stream(ctx context.Context, jobID string, from int, send func(*model.Event) error) error {
	if from < 0 {
		from = 0
	}

	next, terminal, err := s.deliverFrom(ctx, jobID, from, send)
	if err != nil {
		return err
	}
	if terminal {
		return nil
	}

	deadline := time.Now().Add(s.maxWait)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.DebugContext(ctx, "stream ended by client", "job_id", jobID, "next", next)
			}
			return nil
		case <-ticker.C:
			next, terminal, err = s.deliverFrom(ctx, jobID, next, send)
			if err != nil {
				return err
			}
			if terminal {
				return nil
			}
			if time.Now().After(deadline) {
				if s.logger != nil {
					s.logger.DebugContext(ctx, "stream idle timeout", "job_id", jobID, "next", next)
				}
				return nil
			}
		}
	}
}

// deliverFrom reads the log from the given position and sends every event.
// It returns the next unread position and whether a terminal event was sent.
func (s *StreamService) deliverFrom(ctx context.Context, jobID string, from int, send func(*model.Event) error) (int, bool, error) {
	events, err := s.repo.ReadRange(ctx, jobID, from)
	if err != nil {
		return from, false, fmt.Errorf("read events for job %s: %w", jobID, err)
	}

	next := from
	for _, e := range events {
		if sendErr := send(e); sendErr != nil {
			return next, false, fmt.Errorf("send event at position %d: %w", e.Position, sendErr)
		}
		next = e.Position + 1
		if e.Kind.Terminal() {
			return next, true, nil
		}
	}
	return next, false, nil
}
