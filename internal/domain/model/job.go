// Package model defines the core data types and structures used throughout the scraper job system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// JobType represents the type of job to be executed.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current lifecycle state of a job.
type JobStatus string

const (
	// JobTypeScrape represents a product-page extraction job type.
	JobTypeScrape JobType = "scrape"

	// JobStatusQueued indicates a job is waiting to be picked up by a worker.
	JobStatusQueued JobStatus = "queued"
	// JobStatusStarted indicates a worker is currently executing the job.
	JobStatusStarted JobStatus = "started"
	// JobStatusFinished indicates the job completed and its result is stored.
	JobStatusFinished JobStatus = "finished"
	// JobStatusFailed indicates the job reached a terminal failure.
	JobStatusFailed JobStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// ErrNoJobsAvailable is returned when no jobs are available for reservation.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeScrape
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusStarted || s == JobStatusFinished ||
		s == JobStatusFailed
}

// Terminal returns true once the status can never change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusFinished || s == JobStatusFailed
}

// Job represents one submitted extraction request and its lifecycle.
type Job struct {
	ID             string          `json:"id"                         db:"id"`
	Type           JobType         `json:"type"                       db:"type"`
	Status         JobStatus       `json:"status"                     db:"status"`
	Payload        json.RawMessage `json:"payload"                    db:"payload"`
	CreatedAt      time.Time       `json:"created_at"                 db:"created_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"       db:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"     db:"completed_at"`
	LastError      *string         `json:"last_error,omitempty"       db:"last_error"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	UpdatedAt      time.Time       `json:"updated_at"                 db:"updated_at"`
}

// ScrapeJobPayload is the payload carried by a scrape job.
type ScrapeJobPayload struct {
	SourceURL string `json:"source_url"`
}

// SourceURL decodes the job payload and returns the URL to scrape.
func (j *Job) SourceURL() (string, error) {
	var p ScrapeJobPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return "", fmt.Errorf("decode job payload: %w", err)
	}
	if p.SourceURL == "" {
		return "", errors.New("job payload has no source_url")
	}
	return p.SourceURL, nil
}

// CreateJobRequest represents a request to create a new job.
type CreateJobRequest struct {
	Type      JobType `json:"type"`
	SourceURL string  `json:"source_url"`
}

// Validate validates the CreateJobRequest fields. The URL check rejects input
// that could never produce a startable job: missing scheme, empty host, and
// loopback/private hosts.
func (r *CreateJobRequest) Validate() error {
	if !r.Type.Valid() {
		return errors.New("invalid job type")
	}
	return ValidateScrapeURL(r.SourceURL)
}

// ErrInvalidScrapeURL marks a scrape target rejected by validation.
var ErrInvalidScrapeURL = errors.New("invalid scrape url")

// ValidateScrapeURL rejects malformed or unsafe scrape targets.
func ValidateScrapeURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: source_url is required", ErrInvalidScrapeURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScrapeURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q rejected, only http and https are allowed", ErrInvalidScrapeURL, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: source_url must have a host", ErrInvalidScrapeURL)
	}
	if isBlockedHost(host) {
		return fmt.Errorf("%w: host %q is not allowed", ErrInvalidScrapeURL, host)
	}
	return nil
}

// isBlockedHost rejects targets that resolve trivially to the local machine
// or internal networks: localhost names and literal loopback, private
// (RFC 1918 / fc00::/7), link-local, and unspecified addresses.
func isBlockedHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsUnspecified() || ip.IsLoopback() || ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// JobStats represents counts of jobs in each lifecycle state.
type JobStats struct {
	Queued   int `json:"queued"`
	Started  int `json:"started"`
	Finished int `json:"finished"`
	Failed   int `json:"failed"`
}

// JobStatusResponse is the wire shape of a job status query.
type JobStatusResponse struct {
	JobID      string     `json:"job_id"`
	Status     JobStatus  `json:"status"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

// StatusResponse converts a job record into its status wire shape.
func (j *Job) StatusResponse() *JobStatusResponse {
	return &JobStatusResponse{
		JobID:      j.ID,
		Status:     j.Status,
		EnqueuedAt: j.CreatedAt,
		StartedAt:  j.StartedAt,
		EndedAt:    j.CompletedAt,
		Error:      j.LastError,
	}
}
