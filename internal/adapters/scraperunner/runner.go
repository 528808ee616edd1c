// Package scraperunner pulls scrape jobs off the queue and executes the
// extraction pipeline: fetch the target site, analyze its content, store the
// resulting snapshot, and narrate progress into the per-job event log.
package scraperunner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pagescope/scraper-engine/config"
	"github.com/pagescope/scraper-engine/internal/core"
	"github.com/pagescope/scraper-engine/internal/data"
	"github.com/pagescope/scraper-engine/internal/domain/model"
	"github.com/pagescope/scraper-engine/internal/scrape"
	"github.com/pagescope/scraper-engine/internal/service"
)

// RunnerOptions configures the scrape runner adapter.
type RunnerOptions struct {
	DB     *sql.DB
	Logger *slog.Logger
	Config config.WorkerConfig

	// HTTPClient is used by the default fetcher. Ignored when Fetcher is set.
	HTTPClient *http.Client

	// Optional dependency injections (useful for tests/decoupling)
	JobsRepo core.JobRepository
	Events   *service.EventLogService
	Results  *service.ResultService
	Fetcher  core.Fetcher
	Analyzer core.Analyzer
}

// Runner pulls scrape jobs and executes them on a pool of workers.
type Runner struct {
	jobs     *service.JobService
	events   *service.EventLogService
	results  *service.ResultService
	fetcher  core.Fetcher
	analyzer core.Analyzer
	logger   *slog.Logger
	cfg      config.WorkerConfig
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// NewRunner wires repositories/services and constructs a scrape runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.JobsRepo == nil {
		return nil, errors.New("either DB or JobsRepo must be provided")
	}
	if opts.Events == nil {
		return nil, errors.New("event log service is required")
	}
	if opts.Results == nil {
		return nil, errors.New("result service is required")
	}

	logger := resolveLogger(opts.Logger)

	cfg := opts.Config
	cfg.Sanitize()

	jobsRepo := opts.JobsRepo
	if jobsRepo == nil {
		jobsRepo = data.NewJobRepo(opts.DB, data.RepoConfig{Logger: logger})
	}
	jobSvc, err := service.NewJobService(service.JobServiceOptions{
		Repo:         jobsRepo,
		DefaultLease: cfg.JobLease,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("job service: %w", err)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = scrape.NewSiteFetcher(scrape.SiteFetcherOptions{HTTPClient: opts.HTTPClient})
	}
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = scrape.NewJSONLDAnalyzer(scrape.JSONLDAnalyzerOptions{})
	}

	return &Runner{
		jobs:     jobSvc,
		events:   opts.Events,
		results:  opts.Results,
		fetcher:  fetcher,
		analyzer: analyzer,
		logger:   logger.With("component", "scrape_runner"),
		cfg:      cfg,
	}, nil
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting scrape runner",
		"workers", r.cfg.Concurrency, "lease", r.cfg.JobLease, "exec_timeout", r.cfg.ExecTimeout)

	// Derive a cancellable context that we can signal on first fatal error
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer r.jobs.StopListeners()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.requeueLoop(ctx)
	}()

	for range r.cfg.Concurrency {
		unsub, ch := r.jobs.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer unsub()
			if err := r.workerLoop(ctx, ch); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

// requeueLoop periodically returns jobs with expired leases to the queue so a
// worker crash does not strand them in the started state.
func (r *Runner) requeueLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.RequeueInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.jobs.RequeueExpired(ctx, r.cfg.RequeueBatchSize)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.ErrorContext(ctx, "requeue expired leases", "error", err)
				}
				continue
			}
			if n > 0 {
				r.logger.InfoContext(ctx, "requeued expired leases", "count", n)
			}
		}
	}
}

func (r *Runner) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	for ctx.Err() == nil {
		job, err := r.jobs.ReserveNext(ctx, r.cfg.JobLease)
		switch {
		case err == nil:
			if job != nil {
				r.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForNotify(ctx, notify) {
				return nil
			}
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("reserve next: %w", err)
		}
	}
	return ctx.Err()
}

func (r *Runner) waitForNotify(ctx context.Context, notify <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-notify:
		return true
	}
}

// processJob executes one job end to end. The job either reaches finished
// with a stored snapshot and a complete event, or failed with an error event.
func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()
	logger := r.logger.With("job_id", job.ID)

	jobCtx, cancel := context.WithTimeout(ctx, r.cfg.ExecTimeout)
	defer cancel()

	stopHeartbeat := r.startHeartbeat(jobCtx, job.ID)
	defer stopHeartbeat()

	if err := r.execute(jobCtx, job, logger); err != nil {
		r.failJob(ctx, job.ID, err, logger)
		logger.InfoContext(ctx, "job failed", "duration", time.Since(start), "error", err)
		return
	}

	if completed, err := r.jobs.Complete(ctx, job.ID); err != nil {
		logger.ErrorContext(ctx, "complete job error", "error", err)
	} else if completed {
		logger.InfoContext(ctx, "job finished", "duration", time.Since(start))
	}
}

// startHeartbeat extends the job lease on a fixed cadence until the returned
// stop function is called or the context ends.
func (r *Runner) startHeartbeat(ctx context.Context, jobID string) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				ok, err := r.jobs.Heartbeat(hbCtx, jobID, r.cfg.JobLease)
				if err != nil {
					if hbCtx.Err() == nil {
						r.logger.ErrorContext(hbCtx, "heartbeat error", "job_id", jobID, "error", err)
					}
					continue
				}
				if !ok {
					r.logger.WarnContext(hbCtx, "heartbeat on job no longer started", "job_id", jobID)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// execute runs the extraction pipeline. Progress events are best effort; the
// snapshot write and the complete event are not.
func (r *Runner) execute(ctx context.Context, job *model.Job, logger *slog.Logger) error {
	sourceURL, err := job.SourceURL()
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	r.emit(ctx, logger, job.ID, func() error {
		return r.events.EmitStart(ctx, job.ID)
	})

	pages, err := r.fetcher.Fetch(ctx, sourceURL, func(url string) {
		r.emit(ctx, logger, job.ID, func() error {
			return r.events.EmitReading(ctx, job.ID, url)
		})
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", sourceURL, err)
	}

	r.emit(ctx, logger, job.ID, func() error {
		return r.events.EmitUpdate(ctx, job.ID, "Analyzing page content")
	})

	snapshot, err := r.analyzer.Analyze(ctx, pages)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", sourceURL, err)
	}

	raw, err := r.results.Store(ctx, job.ID, snapshot)
	if err != nil {
		return fmt.Errorf("store result: %w", err)
	}

	if err := r.events.EmitComplete(ctx, job.ID, raw); err != nil {
		return fmt.Errorf("emit complete: %w", err)
	}
	return nil
}

// emit appends a progress event and swallows failures so a flaky event store
// does not kill an otherwise healthy job.
func (r *Runner) emit(ctx context.Context, logger *slog.Logger, jobID string, fn func() error) {
	if err := fn(); err != nil && ctx.Err() == nil {
		logger.WarnContext(ctx, "progress event dropped", "error", err)
	}
}

// failJob records the failure in both the job row and the event log. It runs
// on the worker context rather than the job context, which may already have
// timed out.
func (r *Runner) failJob(ctx context.Context, jobID string, cause error, logger *slog.Logger) {
	if err := r.events.EmitError(ctx, jobID, cause.Error()); err != nil {
		logger.ErrorContext(ctx, "emit error event", "error", err)
	}
	failed, err := r.jobs.Fail(ctx, jobID, cause.Error())
	if err != nil {
		logger.ErrorContext(ctx, "fail job error", "error", err, "original_error", cause)
		return
	}
	if !failed {
		return
	}
	// A snapshot written before the failure (the complete event append did not
	// go through) must not outlive its job.
	if err := r.results.Discard(ctx, jobID); err != nil {
		logger.ErrorContext(ctx, "discard result of failed job", "error", err)
	}
}
