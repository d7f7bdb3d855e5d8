// Package bootstrap assembles the application from configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/RohitLad/resume-markup/internal/callbacks"
	"github.com/RohitLad/resume-markup/internal/events"
	"github.com/RohitLad/resume-markup/internal/processing"
	"github.com/RohitLad/resume-markup/internal/profiles"
	"github.com/RohitLad/resume-markup/internal/queue"
	"github.com/RohitLad/resume-markup/internal/resumes"
	"github.com/RohitLad/resume-markup/internal/services/health"
	"github.com/RohitLad/resume-markup/internal/shared/auth"
	"github.com/RohitLad/resume-markup/internal/shared/config"
	"github.com/RohitLad/resume-markup/internal/shared/server"
	"github.com/RohitLad/resume-markup/internal/shared/storage/db"
	"github.com/RohitLad/resume-markup/internal/shared/storage/object"
	localstore "github.com/RohitLad/resume-markup/internal/shared/storage/object/local"
	s3store "github.com/RohitLad/resume-markup/internal/shared/storage/object/s3"
	"github.com/RohitLad/resume-markup/internal/shared/telemetry"
	"github.com/RohitLad/resume-markup/internal/status"
	"github.com/RohitLad/resume-markup/internal/workerproc"
	"github.com/RohitLad/resume-markup/internal/workflow"
)

const dbPingTimeout = 2 * time.Second

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore

	Profiles profiles.Repo
	Resumes  resumes.Repo

	Status       *status.Tracker
	MemoryStatus *status.MemoryStore
	Deferred     status.DeferredStore
	Redis        *redis.Client

	Workflow    *workflow.Client
	Events      events.Publisher
	Queue       queue.Client
	MemoryQueue *queue.MemoryQueue
	Webhook     *callbacks.WebhookHandler

	Processing *processing.Service
	Callbacks  *callbacks.Handler
	Health     *health.Service

	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Build prepares every dependency and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := context.Background()

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
		DB:     sqlDB,
		Store:  store,
	}

	if err := app.buildStatus(ctx); err != nil {
		return nil, err
	}
	if err := app.buildEvents(); err != nil {
		return nil, err
	}
	app.buildRepos()

	app.Workflow = workflow.NewClient(workflow.Options{
		BaseURL:           cfg.WorkflowBaseURL,
		APIKey:            cfg.WorkflowAPIKey,
		CallbackURL:       cfg.WorkflowCallbackURL,
		AppURL:            cfg.AppURL,
		TunnelURL:         cfg.TunnelURL,
		Env:               cfg.Env,
		Timeout:           cfg.WorkflowTimeout,
		ParsePath:         cfg.WorkflowParsePath,
		GeneratePath:      cfg.WorkflowGeneratePath,
		KnowledgeBasePath: cfg.WorkflowKnowledgeBasePath,
	})

	app.Processing = &processing.Service{
		Profiles: app.Profiles,
		Resumes:  app.Resumes,
		Store:    app.Store,
		Workflow: app.Workflow,
		Status:   app.Status,
		Events:   app.Events,
		Deferred: app.Deferred,
		DeferTTL: cfg.StatusTTL,
	}
	app.Callbacks = callbacks.NewHandler(callbacks.Deps{
		Profiles:       app.Profiles,
		Resumes:        app.Resumes,
		Status:         app.Status,
		Deferred:       app.Processing,
		Events:         app.Events,
		ClearOnFailure: cfg.CallbackFailureClearsStatus,
	})

	if err := app.buildQueue(ctx); err != nil {
		return nil, err
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.Env)
	if err != nil {
		return nil, err
	}

	app.Webhook = callbacks.NewWebhookHandler(cfg.WorkflowAPIKey, app.Queue)
	if app.MemoryQueue == nil {
		app.Webhook.MaxBytes = queue.MaxSQSPayloadBytes
	}

	app.buildHealth()

	app.Router = server.NewRouter(server.RouterDeps{
		Config:            cfg,
		Verifier:          verifier,
		ProcessingHandler: processing.NewHandler(app.Processing),
		StatusHandler:     status.NewHandler(app.Status, app.Processing),
		WebhookHandler:    app.Webhook,
		HealthService:     app.Health,
	})

	return app, nil
}

// Start launches background work: the in-process callback queue and the
// status sweeper. It is a no-op for backends that need neither.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	if a.MemoryQueue != nil {
		a.MemoryQueue.Start(ctx)
	}
	if a.MemoryStatus != nil {
		go a.MemoryStatus.Run(ctx, a.Config.StatusSweepInterval)
	}
}

// Close drains the callback queue and releases external connections.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.MemoryQueue != nil {
			a.MemoryQueue.Stop()
		}
		if a.cancel != nil {
			a.cancel()
		}
		if a.Events != nil {
			errs = append(errs, a.Events.Close())
		}
		if a.Redis != nil {
			errs = append(errs, a.Redis.Close())
		}
		if a.DB != nil && !db.IsLambdaRuntime() {
			errs = append(errs, a.DB.Close())
		}
	})
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	opts := db.RuntimeOptions()
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func (a *App) buildRepos() {
	if a.DB != nil {
		a.Profiles = &profiles.PGRepo{DB: a.DB}
		a.Resumes = &resumes.PGRepo{DB: a.DB}
		return
	}
	a.Profiles = profiles.NewMemoryRepo()
	a.Resumes = resumes.NewMemoryRepo()
}

func (a *App) buildStatus(ctx context.Context) error {
	if a.Config.StatusBackend == "redis" {
		client, err := status.NewRedisClient(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB)
		if err != nil {
			return fmt.Errorf("status redis: %w", err)
		}
		a.Redis = client
		a.Status = status.NewTracker(status.NewRedisStore(client, a.Config.StatusTTL))
		a.Deferred = status.NewRedisDeferred(client, a.Config.StatusTTL)
		return nil
	}
	a.MemoryStatus = status.NewMemoryStore(a.Config.StatusTTL)
	a.Status = status.NewTracker(a.MemoryStatus)
	a.Deferred = status.NewMemoryDeferred(a.Config.StatusTTL)
	return nil
}

func (a *App) buildEvents() error {
	if len(a.Config.KafkaBrokers) == 0 {
		a.Events = events.Noop{}
		return nil
	}
	pub, err := events.NewKafkaPublisher(a.Config.KafkaBrokers, a.Config.KafkaTopic)
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}
	a.Events = pub
	return nil
}

func (a *App) buildQueue(ctx context.Context) error {
	if url := strings.TrimSpace(a.Config.CallbackQueueURL); url != "" {
		client, err := queue.NewSQSClient(ctx, a.Config.AWSRegion, url)
		if err != nil {
			return fmt.Errorf("callback queue: %w", err)
		}
		a.Queue = client
		return nil
	}
	a.MemoryQueue = queue.NewMemoryQueue(a.Config.CallbackQueueSize, a.Config.CallbackWorkers, func(ctx context.Context, msg queue.Message) error {
		return workerproc.HandleMessage(ctx, a.Callbacks, msg)
	})
	a.Queue = a.MemoryQueue
	return nil
}

func (a *App) buildHealth() {
	a.Health = health.NewService(a.Workflow)
	if a.DB != nil {
		a.Health.AddCheck("database", func(ctx context.Context) error {
			return db.Ping(ctx, a.DB, dbPingTimeout)
		})
	}
	if a.Redis != nil {
		a.Health.AddCheck("status_store", func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		})
	}
}
