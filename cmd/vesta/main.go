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

	"github.com/vesta-hotels/vesta/internal/app"
	"github.com/vesta-hotels/vesta/internal/audit"
	audithttp "github.com/vesta-hotels/vesta/internal/audit/http"
	"github.com/vesta-hotels/vesta/internal/auth"
	"github.com/vesta-hotels/vesta/internal/authz"
	"github.com/vesta-hotels/vesta/internal/frontdesk"
	"github.com/vesta-hotels/vesta/internal/hr"
	"github.com/vesta-hotels/vesta/internal/platform/cache"
	"github.com/vesta-hotels/vesta/internal/platform/db"
	"github.com/vesta-hotels/vesta/internal/roles"
	"github.com/vesta-hotels/vesta/internal/shared"
	"github.com/vesta-hotels/vesta/internal/users"
	"github.com/vesta-hotels/vesta/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "vesta_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	catalog := authz.NewCatalog()
	catalog.MustRegisterKeys(shared.CoreScopes()...)
	catalog.MustRegisterKeys(shared.FrontDeskScopes()...)
	catalog.MustRegisterKeys(shared.HRScopes()...)
	catalog.MustRegisterKeys(shared.TrainingScopes()...)
	catalog.MustRegisterKeys(shared.PayrollScopes()...)
	catalog.MustRegisterKeys(shared.VendorScopes()...)

	rolesRepo := roles.NewRepository(dbpool)
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

	usersRepo := users.NewRepository(dbpool)
	permCache := authz.NewCache(usersRepo, resolver, authz.CacheConfig{
		TTL:         cfg.AuthzCacheTTL,
		LoadTimeout: cfg.AuthzLoadTimeout,
	}, logger)

	auditLogger := shared.NewAuditLogger(dbpool)
	idemStore := shared.NewIdempotencyStore(dbpool)

	rolesService := roles.NewService(rolesRepo, catalog, permCache, auditLogger, logger)
	if err := rolesService.SeedCatalogRefs(ctx); err != nil {
		logger.Error("seed catalog refs", slog.Any("error", err))
		os.Exit(1)
	}
	holders, err := rolesService.HolderIndex(ctx)
	if err != nil {
		logger.Error("build holder index", slog.Any("error", err))
		os.Exit(1)
	}
	permCache.RebuildIndex(holders)

	guard := authz.NewGuard(catalog, permCache, logger)
	versions := authz.NewVersionStore(redisClient)
	tokens := authz.NewTokenIssuer(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenTTL, versions, permCache)

	authzMiddleware := authz.Middleware{Guard: guard, Source: usersRepo, Logger: logger}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(usersRepo, authRepo, permCache, tokens)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	rolesHandler := roles.NewHandler(logger, rolesService, authzMiddleware)

	usersService := users.NewService(usersRepo, catalog, permCache, tokens, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, authzMiddleware)

	frontdeskRepo := frontdesk.NewRepository(dbpool)
	frontdeskService := frontdesk.NewService(frontdeskRepo, guard, auditLogger, idemStore, logger)
	frontdeskHandler := frontdesk.NewHandler(logger, frontdeskService, authzMiddleware)

	hrRepo := hr.NewRepository(dbpool)
	hrService := hr.NewService(hrRepo, guard, auditLogger, logger)
	hrHandler := hr.NewHandler(logger, hrService, authzMiddleware)

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audithttp.NewHandler(logger, auditService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		RolesHandler:     rolesHandler,
		UsersHandler:     usersHandler,
		FrontDeskHandler: frontdeskHandler,
		HRHandler:        hrHandler,
		AuditHandler:     auditHandler,
		JobsHandler:      jobHandler,
		AuthzMiddleware:  authzMiddleware,
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
