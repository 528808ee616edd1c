package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobType_Valid(t *testing.T) {
	assert.True(t, JobTypeScrape.Valid())
	assert.False(t, JobType("unknown").Valid())
}

func TestJobType_UnmarshalText(t *testing.T) {
	var jt JobType
	require.NoError(t, jt.UnmarshalText([]byte(" Scrape ")))
	assert.Equal(t, JobTypeScrape, jt)

	require.Error(t, jt.UnmarshalText([]byte("browser")))
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusStarted.Terminal())
	assert.True(t, JobStatusFinished.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestJob_SourceURL(t *testing.T) {
	job := &Job{Payload: json.RawMessage(`{"source_url":"https://example.com"}`)}
	u, err := job.SourceURL()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", u)

	job = &Job{Payload: json.RawMessage(`{}`)}
	_, err = job.SourceURL()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source_url")

	job = &Job{Payload: json.RawMessage(`not-json`)}
	_, err = job.SourceURL()
	require.Error(t, err)
}

func TestCreateJobRequest_Validate(t *testing.T) {
	req := &CreateJobRequest{Type: JobTypeScrape, SourceURL: "https://example.com/pricing"}
	assert.NoError(t, req.Validate())

	req = &CreateJobRequest{Type: JobType("browser"), SourceURL: "https://example.com"}
	assert.ErrorContains(t, req.Validate(), "invalid job type")
}

func TestValidateScrapeURL(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		expectError string
	}{
		{name: "valid http", url: "http://example.com"},
		{name: "valid https with path", url: "https://example.com/about"},
		{name: "empty", url: "", expectError: "source_url is required"},
		{name: "whitespace only", url: "   ", expectError: "source_url is required"},
		{name: "ftp scheme", url: "ftp://example.com", expectError: "only http and https"},
		{name: "no host", url: "https://", expectError: "must have a host"},
		{name: "localhost", url: "http://localhost:8080/admin", expectError: "not allowed"},
		{name: "loopback", url: "http://127.0.0.1/", expectError: "not allowed"},
		{name: "ipv6 loopback", url: "http://[::1]/", expectError: "not allowed"},
		{name: "rfc1918 ten", url: "http://10.0.0.5/", expectError: "not allowed"},
		{name: "rfc1918 one-seven-two", url: "http://172.20.1.9/", expectError: "not allowed"},
		{name: "rfc1918 one-nine-two", url: "http://192.168.1.1/", expectError: "not allowed"},
		{name: "unspecified", url: "http://0.0.0.0/", expectError: "not allowed"},
		{name: "localhost subdomain", url: "http://admin.localhost/", expectError: "not allowed"},
		{name: "link local", url: "http://169.254.169.254/latest/meta-data/", expectError: "not allowed"},
		{name: "ipv6 link local", url: "http://[fe80::1]/", expectError: "not allowed"},
		{name: "ipv6 unique local", url: "http://[fd00::1]/", expectError: "not allowed"},
		{name: "one-seven-two public", url: "http://172.15.0.1/"},
		{name: "ten-prefixed hostname", url: "http://10.example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScrapeURL(tt.url)
			if tt.expectError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestJob_StatusResponse(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	started := created.Add(time.Second)
	completed := created.Add(time.Minute)
	lastError := "timeout fetching page"

	job := &Job{
		ID:          "b7a1e6a5-5f45-4e1e-9ed2-46f2cd2a84a8",
		Type:        JobTypeScrape,
		Status:      JobStatusFailed,
		CreatedAt:   created,
		StartedAt:   &started,
		CompletedAt: &completed,
		LastError:   &lastError,
	}

	resp := job.StatusResponse()
	assert.Equal(t, job.ID, resp.JobID)
	assert.Equal(t, JobStatusFailed, resp.Status)
	assert.Equal(t, created, resp.EnqueuedAt)
	assert.Equal(t, &started, resp.StartedAt)
	assert.Equal(t, &completed, resp.EndedAt)
	require.NotNil(t, resp.Error)
	assert.Equal(t, lastError, *resp.Error)
}
