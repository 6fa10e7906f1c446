package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/covenant-cm/covenant/internal/app"
	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/contracts"
	"github.com/covenant-cm/covenant/internal/identity"
	"github.com/covenant-cm/covenant/internal/observability"
	"github.com/covenant-cm/covenant/internal/orgs"
	"github.com/covenant-cm/covenant/internal/platform/cache"
	"github.com/covenant-cm/covenant/internal/platform/db"
	"github.com/covenant-cm/covenant/internal/projects"
	"github.com/covenant-cm/covenant/internal/reports"
	"github.com/covenant-cm/covenant/internal/settings"
	"github.com/covenant-cm/covenant/internal/shared"
	"github.com/covenant-cm/covenant/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		// Caches degrade to pass-through without Redis; the API stays up.
		logger.Warn("redis unavailable, caching disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	resolver := authz.NewResolver()
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	var subjectCache *identity.SubjectCache
	var reportCache *reports.Cache
	if redisClient != nil {
		subjectCache = identity.NewSubjectCache(redisClient, cfg.SubjectCacheTTL)
		reportCache = reports.NewCache(redisClient, cfg.ReportCacheTTL)
		if err := reportCache.ListenForInvalidation(ctx); err != nil {
			logger.Warn("report cache invalidation listener", slog.Any("error", err))
		}
	}

	identityRepo := identity.NewRepository(pool)
	identityService := identity.NewService(identityRepo, subjectCache, logger)
	authenticator := identity.Authenticator{Service: identityService, Logger: logger}

	authzMw := authz.Middleware{
		Resolver: resolver,
		Subject: func(r *http.Request) *authz.Subject {
			return shared.SubjectFromContext(r.Context())
		},
		Logger: logger,
		OnDenied: func(kind authz.ResourceKind) {
			metrics.CountDenied(string(kind))
		},
	}

	orgsService := orgs.NewService(orgs.NewRepository(pool), resolver, auditLogger)
	projectsService := projects.NewService(projects.NewRepository(pool), resolver, auditLogger)
	contractsService := contracts.NewService(contracts.NewRepository(pool), resolver, auditLogger)
	settingsService := settings.NewService(settings.NewRepository(pool), resolver, auditLogger)

	reportWindow := time.Duration(cfg.ReportExpiryDays) * 24 * time.Hour
	reportsService := reports.NewService(reports.NewRepository(pool), resolver, reportCache, logger, reportWindow)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	queueClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Warn("queue client unavailable", slog.Any("error", err))
	}
	defer func() {
		if queueClient != nil {
			if err := queueClient.Close(); err != nil {
				logger.Warn("queue client close", slog.Any("error", err))
			}
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Authenticator:   authenticator,
		IdentityHandler: identity.NewHandler(logger, identityService, resolver, authzMw, cfg.TokenDefaultTTL),
		OrgsHandler:     orgs.NewHandler(logger, orgsService),
		ProjectsHandler: projects.NewHandler(logger, projectsService),
		ContractHandler: contracts.NewHandler(logger, contractsService),
		ReportsHandler:  reports.NewHandler(logger, reportsService),
		SettingsHandler: settings.NewHandler(logger, settingsService),
		JobHandler:      jobs.NewHandler(inspector, queueClient, authzMw, logger),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
