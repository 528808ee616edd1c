package bootstrap

import (
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/pagescope/scraper-engine/config"
	"github.com/pagescope/scraper-engine/internal/data"
	"github.com/pagescope/scraper-engine/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs    *service.JobService
	Events  *service.EventLogService
	Results *service.ResultService
	Stream  *service.StreamService
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	JobRepo      *data.JobRepo
	EventLogRepo *data.RedisEventLogRepo
	ResultRepo   *data.RedisResultRepo
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(deps *ServiceDeps) *serviceRepositories {
	ttl := deps.Config.Retention.TTL
	return &serviceRepositories{
		JobRepo:      data.NewJobRepo(deps.DB, data.RepoConfig{Logger: deps.Logger}),
		EventLogRepo: data.NewRedisEventLogRepo(deps.RedisClient, ttl),
		ResultRepo:   data.NewRedisResultRepo(deps.RedisClient, ttl),
	}
}

// NewServices constructs the application services from shared infrastructure.
func NewServices(deps *ServiceDeps) ServiceContainer {
	repos := buildRepositories(deps)

	jobs := service.MustNewJobService(service.JobServiceOptions{
		Repo:         repos.JobRepo,
		DefaultLease: deps.Config.Worker.JobLease,
		Logger:       deps.Logger,
	})
	events := service.MustNewEventLogService(service.EventLogServiceOptions{
		Repo:   repos.EventLogRepo,
		Logger: deps.Logger,
	})
	results := service.MustNewResultService(service.ResultServiceOptions{
		Repo:   repos.ResultRepo,
		Logger: deps.Logger,
	})
	stream := service.MustNewStreamService(service.StreamServiceOptions{
		Repo:         repos.EventLogRepo,
		PollInterval: deps.Config.Stream.PollInterval,
		MaxWait:      deps.Config.Stream.MaxWait,
		Logger:       deps.Logger,
	})

	return ServiceContainer{
		Jobs:    jobs,
		Events:  events,
		Results: results,
		Stream:  stream,
	}
}
