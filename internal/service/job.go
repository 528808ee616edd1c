// Package service contains the business logic layered over the core ports.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagescope/scraper-engine/internal/core"
	domainjob "github.com/pagescope/scraper-engine/internal/domain/job"
	"github.com/pagescope/scraper-engine/internal/domain/model"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo            core.JobRepository        // Required: job repository
	DefaultLease    time.Duration             // Required: default lease duration for jobs
	Logger          *slog.Logger              // Optional: structured logger
	LeasePolicy     *domainjob.LeasePolicy    // Optional: override default lease policy
	Notifier        domainjob.Notifier        // Optional: custom job availability notifier
	NotifierOptions domainjob.NotifierOptions // Optional: configure default notifier behaviour
}

// JobService provides business logic for job queue operations: submission,
// reservation with lease management, terminal transitions, and the pub/sub
// wakeup channel workers block on.
type JobService struct {
	repo        core.JobRepository
	leasePolicy *domainjob.LeasePolicy
	notifier    domainjob.Notifier
	logger      *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	var leasePolicy *domainjob.LeasePolicy
	switch {
	case opts.LeasePolicy != nil:
		leasePolicy = opts.LeasePolicy
	case opts.DefaultLease > 0:
		var err error
		leasePolicy, err = domainjob.NewLeasePolicy(opts.DefaultLease)
		if err != nil {
			return nil, fmt.Errorf("create lease policy: %w", err)
		}
	default:
		return nil, errors.New("DefaultLease must be positive")
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Repo
		}
		var err error
		notifier, err = domainjob.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create job notifier: %w", err)
		}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}

	return &JobService{
		repo:        opts.Repo,
		leasePolicy: leasePolicy,
		notifier:    notifier,
		logger:      logger,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Create validates and enqueues a new job.
func (s *JobService) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	job, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job created",
			"id", job.ID,
			"type", job.Type,
			"source_url", req.SourceURL,
		)
	}
	return job, nil
}

// ReserveNext claims the next queued job for processing.
func (s *JobService) ReserveNext(ctx context.Context, lease time.Duration) (*model.Job, error) {
	seconds := s.leasePolicy.ResolveSeconds(lease)

	job, err := s.repo.ReserveNext(ctx, seconds)
	if err != nil {
		return nil, fmt.Errorf("reserve next job: %w", err)
	}

	if s.logger != nil && job != nil {
		s.logger.DebugContext(ctx, "job reserved", "id", job.ID, "lease_seconds", seconds)
	}
	return job, nil
}

// Subscribe creates a subscription for new-job notifications.
// Returns an unsubscribe function and a channel that receives wakeups.
func (s *JobService) Subscribe() (func(), <-chan struct{}) {
	if s.notifier == nil {
		ch := make(chan struct{})
		close(ch)
		return func() {}, ch
	}
	return s.notifier.Subscribe()
}

// Heartbeat extends the lease on a job to indicate it's still being processed.
func (s *JobService) Heartbeat(ctx context.Context, id string, extend time.Duration) (bool, error) {
	seconds := s.leasePolicy.ResolveSeconds(extend)

	updated, err := s.repo.Heartbeat(ctx, id, seconds)
	if err != nil {
		return false, fmt.Errorf("heartbeat job %s: %w", id, err)
	}

	if s.logger != nil && updated {
		s.logger.DebugContext(ctx, "job heartbeat updated", "id", id, "extend_seconds", seconds)
	}
	return updated, nil
}

// Complete marks a job as finished. A false return means the job was no
// longer in started state and nothing changed.
func (s *JobService) Complete(ctx context.Context, id string) (bool, error) {
	completed, err := s.repo.Complete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", id, err)
	}

	if s.logger != nil {
		if completed {
			s.logger.InfoContext(ctx, "job finished", "id", id)
		} else {
			s.logger.WarnContext(ctx, "complete skipped, job not in started state", "id", id)
		}
	}
	return completed, nil
}

// Fail marks a job as failed with the given error message.
func (s *JobService) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	if errMsg == "" {
		return false, errors.New("error message required")
	}

	failed, err := s.repo.Fail(ctx, id, errMsg)
	if err != nil {
		return false, fmt.Errorf("fail job %s: %w", id, err)
	}

	if s.logger != nil {
		if failed {
			s.logger.InfoContext(ctx, "job failed", "id", id, "error", errMsg)
		} else {
			s.logger.WarnContext(ctx, "fail skipped, job not in started state", "id", id)
		}
	}
	return failed, nil
}

// RequeueExpired returns lease-expired started jobs to the queue.
func (s *JobService) RequeueExpired(ctx context.Context, limit int) (int, error) {
	moved, err := s.repo.RequeueExpired(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("requeue expired jobs: %w", err)
	}

	if s.logger != nil && moved > 0 {
		s.logger.InfoContext(ctx, "requeued expired jobs", "count", moved)
	}
	return moved, nil
}

// Stats returns counts of jobs in each state.
func (s *JobService) Stats(ctx context.Context) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return stats, nil
}

// GetStatus returns the status information for a specific job.
func (s *JobService) GetStatus(ctx context.Context, id string) (*model.JobStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job.StatusResponse(), nil
}

// GetByID returns a job by its ID.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job by id %s: %w", id, err)
	}
	return job, nil
}

// StopListeners stops the job notification listener.
// This should be called during graceful shutdown to clean up goroutines.
func (s *JobService) StopListeners() {
	if s.logger != nil {
		s.logger.Info("stopping job listeners")
	}
	if s.notifier != nil {
		s.notifier.Stop()
	}
}
