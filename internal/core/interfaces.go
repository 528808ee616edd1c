package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pagescope/scraper-engine/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// JobRepository defines the interface for the durable job queue.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// ReserveNext atomically claims the oldest queued job: it flips the row to
	// started, stamps started_at, and takes a lease. Returns
	// model.ErrNoJobsAvailable when nothing is queued.
	ReserveNext(ctx context.Context, leaseSeconds int) (*model.Job, error)
	WaitForNotification(ctx context.Context) error
	Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	// Complete and Fail transition a started job to its terminal state. They
	// return false without error when the row is no longer in started state.
	Complete(ctx context.Context, id string) (bool, error)
	Fail(ctx context.Context, id, errMsg string) (bool, error)
	Stats(ctx context.Context) (*model.JobStats, error)
	// RequeueExpired returns lease-expired started jobs to the queue.
	RequeueExpired(ctx context.Context, limit int) (int, error)
}

// ReaperRepository defines the retention sweep over aged job rows.
type ReaperRepository interface {
	DeleteJobsOlderThan(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// EventLogRepository defines the per-job append-only event log.
type EventLogRepository interface {
	// Append adds an event to the job's log and returns its 0-based position.
	// Appending after a terminal event returns model.ErrLogClosed. Every
	// append resets the log's retention TTL.
	Append(ctx context.Context, jobID string, event *model.Event) (int, error)
	// ReadRange returns events from position `from` (inclusive) to the end of
	// the log in position order. An unknown job yields an empty slice.
	ReadRange(ctx context.Context, jobID string, from int) ([]*model.Event, error)
	Length(ctx context.Context, jobID string) (int, error)
}

// ResultRepository defines the write-once result record keyed by job ID.
type ResultRepository interface {
	// Put stores the result snapshot. A second write for the same job returns
	// model.ErrResultExists.
	Put(ctx context.Context, jobID string, snapshot json.RawMessage) error
	// Get returns the stored snapshot, or model.ErrResultNotReady when no
	// result has been written yet.
	Get(ctx context.Context, jobID string) (json.RawMessage, error)
	// Delete removes a stored snapshot. Deleting a missing result is a no-op.
	Delete(ctx context.Context, jobID string) error
}

// Page is one fetched document handed to the analyzer.
type Page struct {
	URL  string
	HTML string
}

// Fetcher retrieves a site's pages. The onPageRead hook fires before each
// page fetch so callers can surface progress.
type Fetcher interface {
	Fetch(ctx context.Context, url string, onPageRead func(url string)) ([]Page, error)
}

// Analyzer turns fetched pages into a structured product snapshot.
type Analyzer interface {
	Analyze(ctx context.Context, pages []Page) (*model.ProductSnapshot, error)
}
