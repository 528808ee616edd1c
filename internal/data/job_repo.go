// Package data contains the repository implementations backing the core
// ports: the Postgres job queue and the Redis event log and result stores.
package data

import (
	"database/sql"
	"errors"
	"log/slog"
)

// ErrJobNotFound is returned when a job is not found.
var ErrJobNotFound = errors.New("job not found")

// notifyChannel is the pg_notify channel signalling new queued jobs.
const notifyChannel = "scrape_job_added"

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for the job queue.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  id,
  type,
  status,
  payload,
  created_at,
  started_at,
  completed_at,
  last_error,
  lease_expires_at,
  updated_at
`
