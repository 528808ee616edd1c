package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pagescope/scraper-engine/internal/domain/model"
	"github.com/pagescope/scraper-engine/internal/service"
)

// StreamHandlers serves a job's event log over server-sent events.
type StreamHandlers struct {
	Svc    *service.StreamService
	Logger *slog.Logger
}

// StreamEvents replays a job's event log from the requested position and then
// tails it live. Clients that drop mid-stream reconnect with ?from set to the
// next position they have not seen.
func (h *StreamHandlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(w, r)
	if !ok {
		return
	}
	from := parseIntQuery(r, "from", 0)

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "streaming_unsupported",
			Err:     errors.New("response writer does not support streaming"),
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(e *model.Event) error {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
		flusher.Flush()
		return nil
	}

	if err := h.Svc.Stream(r.Context(), id, from, send); err != nil && h.Logger != nil {
		// Headers are long gone; all we can do is note the broken stream.
		h.Logger.WarnContext(r.Context(), "event stream aborted", "job_id", id, "error", err)
	}
}

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
