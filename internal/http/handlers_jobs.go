package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/pagescope/scraper-engine/internal/domain/model"
	"github.com/pagescope/scraper-engine/internal/service"
)

// JobHandlers provides HTTP handlers for job status, results, and stats.
type JobHandlers struct {
	Jobs    *service.JobService
	Results *service.ResultService
}

// jobIDFromPath validates the {id} path segment. Rejecting malformed ids here
// keeps them from reaching the uuid-typed primary key in SQL.
func jobIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_job_id", Err: err})
		return "", false
	}
	return id, true
}

// GetStatus handles HTTP requests for a job's lifecycle status.
func (h *JobHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(w, r)
	if !ok {
		return
	}

	status, err := h.Jobs.GetStatus(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// failedResult is returned when a result is requested for a failed job.
type failedResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// GetResult handles HTTP requests for a job's stored snapshot. The job row is
// consulted first: a snapshot is served only once the job is finished, so a
// stored-but-not-yet-terminal result is never visible. A failed job yields its
// failure reason; a job still in flight yields 202.
func (h *JobHandlers) GetResult(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(w, r)
	if !ok {
		return
	}

	job, err := h.Jobs.GetByID(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	switch job.Status {
	case model.JobStatusFinished:
		raw, err := h.Results.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, model.ErrResultNotReady) {
				WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "result_not_found", Err: err})
				return
			}
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, json.RawMessage(raw))
	case model.JobStatusFailed:
		reason := ""
		if job.LastError != nil {
			reason = *job.LastError
		}
		WriteJSON(w, http.StatusOK, failedResult{Status: string(job.Status), Error: reason})
	default:
		WriteJSON(w, http.StatusAccepted, map[string]string{
			"status": string(job.Status),
			"detail": "result_not_ready",
		})
	}
}

// Stats handles HTTP requests for queue-wide job counts.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Jobs.Stats(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}
