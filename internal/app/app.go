package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/negotiator-backend/internal/data/db"
	httpserver "github.com/yungbote/negotiator-backend/internal/http"
	"github.com/yungbote/negotiator-backend/internal/observability"
	"github.com/yungbote/negotiator-backend/internal/platform/config"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
	"github.com/yungbote/negotiator-backend/internal/services"
)

const serviceName = "negotiator"

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      config.Config
	Clients  Clients
	Repos    Repos
	Services Services
	Jobs     Jobs
	Metrics  *observability.Metrics
	Server   *httpserver.Server

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New wires the whole service. Only Postgres is mandatory; every other backend degrades.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, serviceName, cfg.Otel)

	pg, err := db.NewPostgresService(log, cfg.Postgres)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrate(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	metrics := observability.NewMetrics()
	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, clients, reposet, metrics)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}
	jobset, err := wireJobs(ctx, log, cfg, reposet, serviceset.Orchestrator, metrics)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}
	serviceset.Assessments = services.NewAssessmentService(log, reposet.Assessment, reposet.JobRun, jobset.Dispatcher, clients.Cache,
		services.AssessmentServiceOptions{
			RetryPriority: cfg.Queue.RetryPriority,
			CacheTTL:      cfg.Redis.CacheTTL,
		})
	if err := serviceset.Achievements.SeedDefinitions(ctx); err != nil {
		log.Warn("Achievement catalog seed failed", "error", err)
	}

	server := httpserver.NewServer(wireRouter(log, cfg, theDB, clients, serviceset, metrics))

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Jobs:         jobset,
		Metrics:      metrics,
		Server:       server,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background workers and collectors.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.Jobs.Start(ctx, a.Log)
	a.Metrics.StartQueueCollector(ctx, a.Log, a.Services.Assessments, 15*time.Second)
	if a.Clients.Redis != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis, 15*time.Second)
	}
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(ctx, net.JoinHostPort("", a.Cfg.Port), 15*time.Second)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Jobs.Close()
	a.Clients.Close()
	if a.otelShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(shutdownCtx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
