package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/session-service/internal/api/http"
	"github.com/spec-kit/session-service/internal/api/http/handlers"
	"github.com/spec-kit/session-service/internal/auth"
	"github.com/spec-kit/session-service/internal/config"
	"github.com/spec-kit/session-service/internal/events"
	"github.com/spec-kit/session-service/internal/observability"
	"github.com/spec-kit/session-service/internal/persistence"
	"github.com/spec-kit/session-service/internal/repository"
	"github.com/spec-kit/session-service/internal/service"
	"github.com/spec-kit/session-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, cfg.Auth.StoreTimeout, logger)
	defer redis.Close()

	codec, err := auth.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal("invalid signing key", zap.Error(err))
	}
	hasher, err := auth.NewPasswordHasher(cfg.Auth.PasswordHasher, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("invalid password hasher", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	userRepo := repository.NewUserRepository(pg.PoolHandle())
	refreshStore := repository.NewRefreshTokenRepository(redis.Client, cfg.Auth.StoreTimeout, logger)

	verifier, err := auth.NewCredentialVerifier(userRepo, hasher, cfg.Auth.StoreTimeout, logger)
	if err != nil {
		logger.Fatal("failed to init credential verifier", zap.Error(err))
	}

	sessionService := service.NewSessionService(cfg.Auth, service.SessionDependencies{
		Verifier:     verifier,
		Codec:        codec,
		RefreshStore: refreshStore,
		UserRepo:     userRepo,
		Dispatcher:   dispatcher,
	}, logger)
	userService := service.NewUserService(userRepo, refreshStore, hasher, logger)
	gate := auth.NewGate(codec, refreshStore, cfg.Auth, dispatcher, metrics, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Users:  handlers.NewUsersHandler(sessionService, userService),
		Gate:   gate,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
