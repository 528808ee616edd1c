package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/pagescope/scraper-engine/config"
	"github.com/pagescope/scraper-engine/internal/adapters/scraperunner"
	"github.com/pagescope/scraper-engine/internal/data"
	"github.com/pagescope/scraper-engine/internal/service"
)

// RunDeps groups everything the service runtime needs.
type RunDeps struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// Run starts every enabled service and blocks until a shutdown signal arrives
// or one of them fails. All services share one context, so the first failure
// stops the rest.
func Run(deps *RunDeps) error {
	if deps == nil || deps.Config == nil {
		return errors.New("run dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer deps.Services.Jobs.StopListeners()

	g, gctx := errgroup.WithContext(ctx)

	if deps.Config.IsHTTPServerEnabled() {
		server := NewHTTPServer(deps.Config, deps.Services, logger)
		g.Go(func() error {
			if err := ServeHTTP(gctx, server, logger); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	if deps.Config.IsWorkerEnabled() {
		runner, err := scraperunner.NewRunner(scraperunner.RunnerOptions{
			DB:      deps.DB,
			Logger:  logger,
			Config:  deps.Config.Worker,
			Events:  deps.Services.Events,
			Results: deps.Services.Results,
		})
		if err != nil {
			return fmt.Errorf("create scrape runner: %w", err)
		}
		g.Go(func() error {
			if err := runner.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("scrape runner: %w", err)
			}
			return nil
		})
	}

	if deps.Config.IsReaperEnabled() {
		reaper := service.MustNewReaperService(service.ReaperServiceOptions{
			Repo:   data.NewJobRepo(deps.DB, data.RepoConfig{Logger: logger}),
			Config: deps.Config.Reaper,
			Logger: logger,
		})
		g.Go(func() error {
			if err := reaper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("reaper: %w", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		logger.Error("service error", "error", err)
		return err
	}
	logger.Info("all services stopped")
	return nil
}
