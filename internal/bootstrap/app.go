// Package bootstrap wires repositories, the engine components and the HTTP
// router from configuration. cmd/* binaries share it.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"assessment-backend/internal/agents"
	openai "assessment-backend/internal/agents/openai"
	"assessment-backend/internal/assessments"
	"assessment-backend/internal/catalog"
	"assessment-backend/internal/catalog/seed"
	"assessment-backend/internal/deliverables"
	"assessment-backend/internal/documents"
	"assessment-backend/internal/jobs"
	"assessment-backend/internal/lifecycle"
	"assessment-backend/internal/queue"
	"assessment-backend/internal/responses"
	"assessment-backend/internal/services/health"
	"assessment-backend/internal/shared/config"
	"assessment-backend/internal/shared/server"
	"assessment-backend/internal/shared/server/middleware"
	"assessment-backend/internal/shared/storage/db"
	"assessment-backend/internal/shared/storage/object"
	localstore "assessment-backend/internal/shared/storage/object/local"
	s3store "assessment-backend/internal/shared/storage/object/s3"
	"assessment-backend/internal/shared/telemetry"
)

const (
	QueueModeSQS       = "sqs"
	QueueModeInProcess = "inprocess"
)

// App holds shared dependencies.
type App struct {
	Config    config.Config
	Policy    config.Policy
	Router    *gin.Engine
	DB        *sql.DB
	Store     object.ObjectStore
	QueueMode string
	Queue     queue.Client
	// Async is set when jobs run in-process.
	Async *jobs.AsyncQueue

	AssessmentsRepo  assessments.Repo
	ResponsesRepo    responses.Repo
	QuestionsRepo    catalog.Repo
	AgentsRepo       agents.Repo
	JobsRepo         jobs.Repo
	DocumentsRepo    documents.Repo
	DeliverablesRepo deliverables.Repo

	Bank       *catalog.Bank
	Capability agents.Capability
	Scheduler  *jobs.Scheduler
	Aggregator *deliverables.Aggregator
	Controller *lifecycle.Controller
	Runner     *jobs.Runner
	Sweeper    *lifecycle.Sweeper
	Health     *health.Service
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	return BuildContext(context.Background(), cfg)
}

// BuildContext is Build with a caller-supplied context for the startup I/O.
func BuildContext(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	if policy, err = assessments.ResolvePolicy(policy); err != nil {
		return nil, err
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Policy: policy,
		DB:     sqlDB,
		Store:  store,
	}
	if err := buildRepos(ctx, app); err != nil {
		return nil, err
	}
	if err := buildEngine(ctx, app); err != nil {
		return nil, err
	}

	app.Health = health.NewService(app.DB, app.QueueMode)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:      app.Config,
		Assessments: lifecycle.NewHandler(app.Controller),
		Health:      app.Health,
		Limiter:     middleware.NewRateLimiter(nil),
	})
	return app, nil
}

// Close waits for in-process jobs and releases the database pool.
func (a *App) Close() error {
	if a.Async != nil {
		a.Async.Wait()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.Shared(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "database connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildRepos(ctx context.Context, app *App) error {
	if app.DB != nil {
		app.AssessmentsRepo = &assessments.PGRepo{DB: app.DB}
		app.ResponsesRepo = &responses.PGRepo{DB: app.DB}
		app.QuestionsRepo = &catalog.PGRepo{DB: app.DB}
		app.AgentsRepo = &agents.PGRepo{DB: app.DB}
		app.JobsRepo = &jobs.PGRepo{DB: app.DB}
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.DeliverablesRepo = &deliverables.PGRepo{DB: app.DB}
		return nil
	}

	// In-memory runs have nothing seeded by cmd/migrate.
	data, err := CatalogData(app.Config.CatalogFile)
	if err != nil {
		return err
	}
	questions, err := catalog.Parse(data)
	if err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	pool, err := agents.Parse(data)
	if err != nil {
		return fmt.Errorf("parse agents: %w", err)
	}
	app.AssessmentsRepo = assessments.NewMemoryRepo()
	app.ResponsesRepo = responses.NewMemoryRepo()
	app.QuestionsRepo = catalog.NewMemoryRepo()
	app.AgentsRepo = agents.NewMemoryRepo()
	app.JobsRepo = jobs.NewMemoryRepo()
	app.DocumentsRepo = documents.NewMemoryRepo()
	app.DeliverablesRepo = deliverables.NewMemoryRepo()
	if err := catalog.Seed(ctx, app.QuestionsRepo, questions); err != nil {
		return err
	}
	return agents.Seed(ctx, app.AgentsRepo, pool)
}

// CatalogData returns the catalogue YAML at path, or the embedded default.
func CatalogData(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return seed.Default, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return data, nil
}

func buildCapability(cfg config.Config) (agents.Capability, error) {
	var capability agents.Capability = agents.Placeholder{}
	if cfg.AgentProvider == "openai" {
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.AgentModel)
		if err != nil {
			return nil, err
		}
		capability = client
	}
	return agents.NewRateLimited(capability, cfg.AgentRPM, cfg.AgentBurst), nil
}

func buildEngine(ctx context.Context, app *App) error {
	capability, err := buildCapability(app.Config)
	if err != nil {
		return err
	}
	app.Capability = capability
	app.Bank = catalog.NewBank(app.QuestionsRepo)

	app.Scheduler = jobs.NewScheduler(app.JobsRepo, app.AgentsRepo, app.AssessmentsRepo, app.Policy, nil)
	app.Aggregator = deliverables.NewAggregator(app.AssessmentsRepo, app.DeliverablesRepo, app.Scheduler, app.Store, app.Policy)
	app.Controller = lifecycle.NewController(app.AssessmentsRepo, app.ResponsesRepo, app.Bank, app.Scheduler, app.Aggregator, app.Policy)
	app.Runner = &jobs.Runner{
		Scheduler: app.Scheduler,
		Context: &jobs.ContextBuilder{
			Responses:    app.ResponsesRepo,
			Bank:         app.Bank,
			Documents:    app.DocumentsRepo,
			Store:        app.Store,
			ExcerptChars: app.Policy.ExcerptChars,
		},
		Capability: capability,
	}

	// The scheduler needs the runner for in-process delivery, so the queue is
	// attached last.
	if strings.TrimSpace(app.Config.QueueURL) != "" {
		client, err := queue.NewSQSClient(ctx, app.Config.QueueURL, app.Config.AWSRegion)
		if err != nil {
			return err
		}
		app.Queue = client
		app.QueueMode = QueueModeSQS
		app.Scheduler.Queue = &queue.Publisher{Client: client}
	} else {
		app.Async = jobs.NewAsyncQueue(app.Runner.Run, app.Config.WorkerConcurrent)
		app.QueueMode = QueueModeInProcess
		app.Scheduler.Queue = app.Async
	}

	app.Sweeper = &lifecycle.Sweeper{
		Controller:  app.Controller,
		Scheduler:   app.Scheduler,
		Interval:    time.Duration(app.Config.SweepIntervalSec) * time.Second,
		Concurrency: app.Config.WorkerConcurrent,
	}
	return nil
}
