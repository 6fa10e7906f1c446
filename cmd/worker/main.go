package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/covenant-cm/covenant/internal/app"
	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/contracts"
	"github.com/covenant-cm/covenant/internal/identity"
	jobmetrics "github.com/covenant-cm/covenant/internal/jobs"
	"github.com/covenant-cm/covenant/internal/platform/cache"
	"github.com/covenant-cm/covenant/internal/platform/db"
	"github.com/covenant-cm/covenant/internal/reports"
	"github.com/covenant-cm/covenant/internal/settings"
	"github.com/covenant-cm/covenant/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	resolver := authz.NewResolver()
	metrics := jobmetrics.NewMetrics(nil)

	identityService := identity.NewService(
		identity.NewRepository(pool),
		identity.NewSubjectCache(redisClient, cfg.SubjectCacheTTL),
		logger,
	)
	contractsService := contracts.NewService(contracts.NewRepository(pool), resolver, nil)
	settingsService := settings.NewService(settings.NewRepository(pool), resolver, nil)

	reportWindow := time.Duration(cfg.ReportExpiryDays) * 24 * time.Hour
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsService := reports.NewService(reports.NewRepository(pool), resolver, reportCache, logger, reportWindow)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	mailer, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := mailer.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	expiryJob := jobs.NewExpiryScanJob(contractsService, settingsService, reportsService, mailer, logger, metrics)
	warmupJob := jobs.NewIdentityWarmupJob(identityService, logger, metrics)

	expiryTask, err := jobs.NewExpiryScanTask(jobs.ExpiryScanPayload{NotifyAddress: cfg.ExpiryNotifyAddr})
	if err != nil {
		logger.Error("build expiry task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewIdentityWarmupTask(jobs.IdentityWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskContractsExpiryScan, Handler: expiryJob.Handle},
			{Type: jobs.TaskIdentityWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ExpiryScanCron, Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.IdentityWarmCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
