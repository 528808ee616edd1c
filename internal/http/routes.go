package httpx

import (
	"log/slog"
	"net/http"

	"github.com/pagescope/scraper-engine/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs    *service.JobService
	Results *service.ResultService
	Stream  *service.StreamService

	// BaseURL is the externally visible origin used to build stream URLs.
	BaseURL string
	Logger  *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	scrapeHandlers := &ScrapeHandlers{Svc: services.Jobs, BaseURL: services.BaseURL}
	jobHandlers := &JobHandlers{Jobs: services.Jobs, Results: services.Results}
	streamHandlers := &StreamHandlers{Svc: services.Stream, Logger: logger}

	mux.HandleFunc("POST /scrape/async", scrapeHandlers.CreateScrape)
	mux.HandleFunc("GET /jobs/{id}/stream", streamHandlers.StreamEvents)
	mux.HandleFunc("GET /jobs/{id}/status", jobHandlers.GetStatus)
	mux.HandleFunc("GET /jobs/{id}/result", jobHandlers.GetResult)
	mux.HandleFunc("GET /jobs/stats", jobHandlers.Stats)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	var handler http.Handler = mux
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
