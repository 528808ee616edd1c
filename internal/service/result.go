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

// ResultServiceOptions groups dependencies for ResultService.
type ResultServiceOptions struct {
	Repo   core.ResultRepository // Required: result repository
	Logger *slog.Logger          // Optional: structured logger
}

// ResultService stores and serves the write-once extraction results.
type ResultService struct {
	repo   core.ResultRepository
	logger *slog.Logger
}

// NewResultService constructs a new ResultService.
func NewResultService(opts ResultServiceOptions) (*ResultService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ResultRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "result_service")
	}

	return &ResultService{repo: opts.Repo, logger: logger}, nil
}

// MustNewResultService constructs a new ResultService and panics on error.
func MustNewResultService(opts ResultServiceOptions) *ResultService {
	svc, err := NewResultService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ResultService: %v", err))
	}
	return svc
}

// Store persists a job's product snapshot. Storing a second result for the
// same job returns model.ErrResultExists.
func (s *ResultService) Store(ctx context.Context, jobID string, snapshot *model.ProductSnapshot) (json.RawMessage, error) {
	if snapshot == nil {
		return nil, errors.New("snapshot is required")
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot for job %s: %w", jobID, err)
	}

	if err := s.repo.Put(ctx, jobID, raw); err != nil {
		return nil, fmt.Errorf("store result for job %s: %w", jobID, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "result stored", "job_id", jobID, "bytes", len(raw))
	}
	return raw, nil
}

// Discard removes a stored result. The runner calls it when a job fails
// after its snapshot was written, so a failed job never leaves a fetchable
// result behind.
func (s *ResultService) Discard(ctx context.Context, jobID string) error {
	if err := s.repo.Delete(ctx, jobID); err != nil {
		return fmt.Errorf("discard result for job %s: %w", jobID, err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "result discarded", "job_id", jobID)
	}
	return nil
}

// Get returns the stored result, or model.ErrResultNotReady when the job has
// not produced one yet.
func (s *ResultService) Get(ctx context.Context, jobID string) (json.RawMessage, error) {
	raw, err := s.repo.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, model.ErrResultNotReady) {
			return nil, model.ErrResultNotReady
		}
		return nil, fmt.Errorf("get result for job %s: %w", jobID, err)
	}
	return raw, nil
}
