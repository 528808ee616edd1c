package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the scrape job worker.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeReaper runs the job reaper for retention cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeWorker, ServiceModeReaper}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeWorker, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, worker, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// WorkerConfig contains scrape worker configuration.
type WorkerConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"2"`

	// JobLease is the duration to lease a scrape job.
	JobLease time.Duration `env:"WORKER_JOB_LEASE" envDefault:"60s"`

	// HeartbeatInterval is the cadence at which a running job extends its lease.
	HeartbeatInterval time.Duration `env:"WORKER_HEARTBEAT_INTERVAL" envDefault:"20s"`

	// ExecTimeout bounds a single job's total execution. Exceeding it fails
	// the job the same way an extraction error does.
	ExecTimeout time.Duration `env:"WORKER_EXEC_TIMEOUT" envDefault:"5m"`

	// RequeueInterval is the cadence of the expired-lease sweep.
	RequeueInterval time.Duration `env:"WORKER_REQUEUE_INTERVAL" envDefault:"30s"`

	// RequeueBatchSize bounds how many expired jobs a single sweep moves.
	RequeueBatchSize int `env:"WORKER_REQUEUE_BATCH_SIZE" envDefault:"100"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.JobLease < 5*time.Second {
		w.JobLease = 5 * time.Second
	}
	if w.HeartbeatInterval <= 0 || w.HeartbeatInterval >= w.JobLease {
		w.HeartbeatInterval = w.JobLease / 3
	}
	if w.ExecTimeout < time.Second {
		w.ExecTimeout = 5 * time.Minute
	}
	if w.RequeueInterval < time.Second {
		w.RequeueInterval = 30 * time.Second
	}
	if w.RequeueBatchSize < 1 {
		w.RequeueBatchSize = 100
	}
}

// StreamConfig contains event stream server configuration.
type StreamConfig struct {
	// PollInterval is the live-tail poll cadence.
	PollInterval time.Duration `env:"STREAM_POLL_INTERVAL" envDefault:"100ms"`

	// MaxWait bounds how long a live tail waits for a terminal event before
	// ending cleanly. Distinct from the worker's execution timeout: this is
	// the stream's patience, not the job's.
	MaxWait time.Duration `env:"STREAM_MAX_WAIT" envDefault:"60s"`
}

// Sanitize applies guardrails to stream configuration values.
func (s *StreamConfig) Sanitize() {
	if s.PollInterval < 10*time.Millisecond {
		s.PollInterval = 100 * time.Millisecond
	}
	if s.MaxWait < time.Second {
		s.MaxWait = time.Minute
	}
}

// ReaperConfig contains reaper service configuration.
type ReaperConfig struct {
	// Interval is the sweep cadence.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"10m"`

	// Retention is how long job rows are kept after creation.
	Retention time.Duration `env:"REAPER_RETENTION" envDefault:"24h"`

	// BatchSize bounds how many rows a single sweep deletes.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"500"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < time.Minute {
		r.Interval = 10 * time.Minute
	}
	if r.Retention < time.Hour {
		r.Retention = 24 * time.Hour
	}
	if r.BatchSize < 1 {
		r.BatchSize = 500
	}
}

// RetentionConfig contains the TTL applied to the Redis-backed event log and
// result records. Every event append re-arms the log's TTL.
type RetentionConfig struct {
	TTL time.Duration `env:"RECORD_TTL" envDefault:"24h"`
}

// Sanitize applies guardrails to retention configuration values.
func (r *RetentionConfig) Sanitize() {
	if r.TTL < time.Minute {
		r.TTL = 24 * time.Hour
	}
}
