package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"

	"PulseWatch/internal/api"
	"PulseWatch/internal/classify"
	"PulseWatch/internal/config"
	"PulseWatch/internal/domain"
	"PulseWatch/internal/infrastructure/cohere"
	"PulseWatch/internal/infrastructure/kafka"
	"PulseWatch/internal/infrastructure/llm"
	"PulseWatch/internal/infrastructure/ml"
	"PulseWatch/internal/infrastructure/scheduler"
	"PulseWatch/internal/infrastructure/storage"
	"PulseWatch/internal/infrastructure/telegram"
	"PulseWatch/internal/logging"
	"PulseWatch/internal/ports"
	"PulseWatch/internal/progress"
	"PulseWatch/internal/ratelimit"
	"PulseWatch/internal/usecase"
	"PulseWatch/pkg/logger"
)

// progressMaxAge bounds how long a run may go without advancing before its
// progress entry is dropped.
const progressMaxAge = time.Hour

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store    *storage.SQLRepository
	tracker  *progress.Tracker
	registry *classify.Registry

	orchestrator *usecase.Orchestrator
	ingestor     *usecase.Ingestor
	cleaner      *usecase.Cleaner
	health       *usecase.HealthService
	posts        *usecase.PostQuery
	analytics    *usecase.Analytics

	limiter       ratelimit.Checker
	memoryLimiter *ratelimit.Limiter
	redis         *redis.Client
}

// New opens the store and builds every use case.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &Application{cfg: cfg, logger: baseLogger, store: store}
	if err := a.build(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) build() error {
	cfg := a.cfg

	a.registry = classify.NewRegistry()
	a.registry.Register(llm.NewChatGPTClient(cfg.ChatGPT))
	a.registry.Register(ml.NewClient(cfg.ML))
	a.registry.Register(cohere.NewClassifier(cfg.Cohere, nil))

	provider, err := a.registry.Resolve(cfg.Classifier.Provider)
	if err != nil {
		return err
	}
	client := classify.NewRetryingClient(provider,
		classify.WithMaxRetries(cfg.Classifier.MaxRetries),
		classify.WithBaseDelay(cfg.Classifier.BaseDelay),
		classify.WithLogger(a.logger.With("component", "classifier", "provider", provider.Name())),
	)

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram)
	}

	a.tracker = progress.NewTracker(nil)
	a.orchestrator = usecase.NewOrchestrator(usecase.AnalysisDeps{
		Store:      a.store,
		Classifier: client,
		Tracker:    a.tracker,
		Notifier:   notifier,
		Logger:     a.logger.With("component", "analysis"),
		BatchSize:  cfg.Analysis.BatchSize,
		ItemDelay:  cfg.Analysis.ItemDelay,
		Retention:  cfg.Analysis.ProgressRetention,
	})
	a.ingestor = usecase.NewIngestor(usecase.IngestDeps{
		Store:            a.store,
		Logger:           a.logger.With("component", "ingest"),
		MinContentLength: cfg.Ingestion.MinContentLength,
		BatchSize:        cfg.Ingestion.BatchSize,
	})
	a.cleaner = usecase.NewCleaner(usecase.CleanupDeps{
		Store:    a.store,
		Notifier: notifier,
		Logger:   a.logger.With("component", "cleanup"),
	})
	a.health = usecase.NewHealthService(a.store, a.logger.With("component", "health"), nil)
	a.posts = usecase.NewPostQuery(a.store)
	a.analytics = usecase.NewAnalytics(a.store, nil)

	return a.buildLimiter()
}

func (a *Application) buildLimiter() error {
	policies := ratelimit.DefaultPolicies()
	if a.cfg.RateLimit.Backend == "redis" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		limiter, err := ratelimit.NewRedisLimiter(a.redis, a.cfg.Redis.KeyPrefix, policies)
		if err != nil {
			return fmt.Errorf("build redis limiter: %w", err)
		}
		a.limiter = limiter
		return nil
	}

	limiter, err := ratelimit.New(policies, ratelimit.WithLogger(a.logger.With("component", "ratelimit")))
	if err != nil {
		return fmt.Errorf("build limiter: %w", err)
	}
	a.limiter = limiter
	a.memoryLimiter = limiter
	return nil
}

// Analyze runs one analysis pass in the foreground.
func (a *Application) Analyze(ctx context.Context, limit int) (usecase.RunResult, error) {
	return a.orchestrator.Run(ctx, usecase.RunRequest{Limit: limit})
}

// Ingest stores a batch of candidates.
func (a *Application) Ingest(ctx context.Context, candidates []domain.Candidate) (usecase.IngestResult, error) {
	return a.ingestor.Ingest(ctx, candidates)
}

// Cleanup removes duplicate posts.
func (a *Application) Cleanup(ctx context.Context) (usecase.CleanupResult, error) {
	return a.cleaner.RemoveDuplicates(ctx)
}

// Health builds a health report.
func (a *Application) Health(ctx context.Context) usecase.HealthReport {
	return a.health.Check(ctx)
}

// Analytics builds the aggregate dashboard report.
func (a *Application) Analytics(ctx context.Context) (usecase.AnalyticsReport, error) {
	return a.analytics.Report(ctx)
}

// HTTPDeps binds the use cases to the HTTP surface.
func (a *Application) HTTPDeps() api.Deps {
	return api.Deps{
		Analysis:  a.orchestrator,
		Ingestor:  a.ingestor,
		Cleaner:   a.cleaner,
		Health:    a.health,
		Posts:     a.posts,
		Analytics: a.analytics,
		Limiter:   a.limiter,
		Logger:    a.logger.With("component", "api"),
	}
}

// Serve runs the HTTP server and background jobs until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.logger.Warn("redis unreachable, rate limiting will fail open", "addr", a.cfg.Redis.Addr, "error", err)
		}
	}

	server := api.NewServer(a.cfg.HTTP.Addr, api.NewRouter(a.HTTPDeps()), a.cfg.HTTP.ReadHeaderTimeout, a.logger.With("component", "http"))
	serveErr, err := server.Start()
	if err != nil {
		return err
	}

	sched := usecase.NewScheduler(a.logger.With("component", "scheduler"), a.jobs()...)
	if err := sched.Start(ctx); err != nil {
		_ = server.Shutdown(context.Background())
		return err
	}

	if a.memoryLimiter != nil {
		go a.memoryLimiter.RunSweeper(ctx, a.cfg.RateLimit.SweepInterval)
	}
	go a.sweepProgress(ctx)

	consumer, err := a.startConsumer(ctx)
	if err != nil {
		a.logger.Error("kafka consumer disabled", "error", err)
	}

	a.logger.Info("pulsewatch started", "config", a.cfg.String(), "classifiers", a.registry.Names())

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
	defer stop()

	var errs []error
	errs = append(errs, runErr, server.Shutdown(shutdownCtx), sched.Stop(shutdownCtx))
	if consumer != nil {
		errs = append(errs, consumer.Close())
	}
	a.orchestrator.Shutdown()
	a.logger.Info("pulsewatch stopped")
	return errors.Join(errs...)
}

func (a *Application) jobs() []usecase.Job {
	loc := a.cfg.Scheduler.Location()
	log := a.logger.With("component", "cron")

	var jobs []usecase.Job
	if spec := a.cfg.Scheduler.AnalysisCron; spec != "" {
		jobs = append(jobs, usecase.AnalysisJob(scheduler.NewCronScheduler(spec, loc, log), a.orchestrator))
	}
	if spec := a.cfg.Scheduler.CleanupCron; spec != "" {
		jobs = append(jobs, usecase.CleanupJob(scheduler.NewCronScheduler(spec, loc, log), a.cleaner))
	}
	return jobs
}

func (a *Application) sweepProgress(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := a.tracker.Sweep(progressMaxAge); removed > 0 {
				a.logger.Warn("dropped stale analysis progress", "removed", removed)
			}
		}
	}
}

func (a *Application) startConsumer(ctx context.Context) (*kafka.Consumer, error) {
	if !a.cfg.Kafka.Enabled() {
		return nil, nil
	}
	sarama.Logger = logger.New(a.logger, "sarama", slog.LevelDebug)

	log := a.logger.With("component", "kafka")
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: a.cfg.Kafka.Brokers,
		Topic:   a.cfg.Kafka.Topic,
		GroupID: a.cfg.Kafka.GroupID,
		Logger:  log,
		Handler: kafka.CandidateHandler{
			Ingest: func(ctx context.Context, candidates []domain.Candidate) error {
				result, err := a.ingestor.Ingest(ctx, candidates)
				if err != nil {
					return err
				}
				log.Info("ingested candidate batch", "received", result.Received, "stored", result.Stored)
				return nil
			},
			Logger: log,
		},
	})
	if err != nil {
		return nil, err
	}
	consumer.Start(ctx)
	return consumer, nil
}

// Close releases the store and the Redis client.
func (a *Application) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
