// Package httpx provides the HTTP surface of the scraper engine: job
// submission, status and result lookup, and the live event stream.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pagescope/scraper-engine/internal/domain/model"
	apperrors "github.com/pagescope/scraper-engine/internal/errors"
	"github.com/pagescope/scraper-engine/internal/service"
)

// ScrapeHandlers provides HTTP handlers for submitting scrape jobs.
type ScrapeHandlers struct {
	Svc     *service.JobService
	BaseURL string
}

// scrapeRequest is the submission body.
type scrapeRequest struct {
	URL string `json:"url"`
}

// scrapeAccepted is the submission response. StreamURL is where the caller
// follows extraction progress.
type scrapeAccepted struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	StreamURL string `json:"stream_url"`
}

// CreateScrape accepts a scrape job and returns immediately with the job id
// and the URL of its event stream.
func (h *ScrapeHandlers) CreateScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Create(r.Context(), &model.CreateJobRequest{
		Type:      model.JobTypeScrape,
		SourceURL: req.URL,
	})
	if err != nil {
		if errors.Is(err, model.ErrInvalidScrapeURL) || apperrors.IsValidation(err) {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_url", Err: err})
			return
		}
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, scrapeAccepted{
		JobID:     job.ID,
		Status:    string(job.Status),
		StreamURL: h.streamURL(job.ID),
	})
}

func (h *ScrapeHandlers) streamURL(jobID string) string {
	base := strings.TrimSuffix(h.BaseURL, "/")
	return fmt.Sprintf("%s/jobs/%s/stream", base, jobID)
}
