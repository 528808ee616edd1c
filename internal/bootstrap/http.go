package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pagescope/scraper-engine/config"
	httpx "github.com/pagescope/scraper-engine/internal/http"
)

const shutdownTimeout = 10 * time.Second

// NewHTTPServer builds the API server. Write timeouts must outlast the event
// stream's patience window or live tails get cut off mid-stream.
func NewHTTPServer(cfg *config.AppConfig, services ServiceContainer, logger *slog.Logger) *http.Server {
	handler := httpx.NewRouter(httpx.RouterServices{
		Jobs:    services.Jobs,
		Results: services.Results,
		Stream:  services.Stream,
		BaseURL: cfg.HTTP.BaseURL,
		Logger:  logger,
	})

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Stream.MaxWait + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// ServeHTTP runs the server until the context is cancelled, then drains it.
func ServeHTTP(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP server stopped")
	return <-errCh
}
