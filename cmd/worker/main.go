package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/vesta-hotels/vesta/internal/app"
	"github.com/vesta-hotels/vesta/internal/auth"
	"github.com/vesta-hotels/vesta/internal/authz"
	"github.com/vesta-hotels/vesta/internal/platform/cache"
	"github.com/vesta-hotels/vesta/internal/platform/db"
	"github.com/vesta-hotels/vesta/internal/roles"
	"github.com/vesta-hotels/vesta/internal/shared"
	"github.com/vesta-hotels/vesta/internal/users"
	"github.com/vesta-hotels/vesta/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	catalog := authz.NewCatalog()
	catalog.MustRegisterKeys(shared.CoreScopes()...)
	catalog.MustRegisterKeys(shared.FrontDeskScopes()...)
	catalog.MustRegisterKeys(shared.HRScopes()...)
	catalog.MustRegisterKeys(shared.TrainingScopes()...)
	catalog.MustRegisterKeys(shared.PayrollScopes()...)
	catalog.MustRegisterKeys(shared.VendorScopes()...)

	rolesRepo := roles.NewRepository(pool)
	legacyMap, err := rolesRepo.LegacyRoleMap(ctx)
	if err != nil {
		logger.Error("load legacy role map", slog.Any("error", err))
		os.Exit(1)
	}

	tie := authz.TieEarliestRoleWins
	if cfg.AuthzTiePolicy == "latest" {
		tie = authz.TieLatestRoleWins
	}
	resolver := authz.NewResolver(catalog, legacyMap, tie, logger)

	usersRepo := users.NewRepository(pool)
	permCache := authz.NewCache(usersRepo, resolver, authz.CacheConfig{
		TTL:         cfg.AuthzCacheTTL,
		LoadTimeout: cfg.AuthzLoadTimeout,
	}, logger)

	warmupJob := jobs.NewAuthzWarmupJob(permCache, pool, logger)
	retentionJob := jobs.NewAuditRetentionJob(pool, cfg.AuditRetention, logger)
	sweepJob := jobs.NewSessionSweepJob(auth.NewRepository(pool), logger)

	warmupTask, err := jobs.NewAuthzWarmupTask(jobs.AuthzWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	retentionTask, err := jobs.NewAuditRetentionTask(jobs.AuditRetentionPayload{})
	if err != nil {
		logger.Error("build retention task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuthzWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskAuditRetention, Handler: retentionJob.Handle},
			{Type: jobs.TaskSessionSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: retentionTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "@every " + cfg.SessionSweepEvery.String(), Task: jobs.NewSessionSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
