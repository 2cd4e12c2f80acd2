package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/presence-service/internal/api/http"
	"github.com/spec-kit/presence-service/internal/api/http/handlers"
	"github.com/spec-kit/presence-service/internal/api/ws"
	"github.com/spec-kit/presence-service/internal/auth"
	"github.com/spec-kit/presence-service/internal/config"
	"github.com/spec-kit/presence-service/internal/events"
	"github.com/spec-kit/presence-service/internal/limiter"
	"github.com/spec-kit/presence-service/internal/observability"
	"github.com/spec-kit/presence-service/internal/persistence"
	"github.com/spec-kit/presence-service/internal/presence"
	"github.com/spec-kit/presence-service/internal/repository"
	"github.com/spec-kit/presence-service/internal/service"
	"github.com/spec-kit/presence-service/internal/uploads"
	"github.com/spec-kit/presence-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// A missing signing secret means no token could ever be issued or
		// verified; refusing to start beats running in a broken state.
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var userRepo repository.UserRepository
	if pool := pg.PoolHandle(); pool != nil {
		userRepo = repository.NewUserRepository(pool)
	} else {
		userRepo = repository.NewMemoryUserRepository()
	}

	uploader, err := uploads.NewLocalUploader(cfg.Upload.Dir, cfg.Upload.BaseURL)
	if err != nil {
		logger.Fatal("failed to init upload dir", zap.Error(err))
	}

	loginLimiter := limiter.NewRedisLimiter(redis.Client, cfg.Login.MaxAttempts, cfg.Login.Window())

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo: userRepo,
		Uploader: uploader,
		Limiter:  loginLimiter,
		Logger:   logger,
	})
	sessionGuard := auth.NewSessionGuard(authService.TokenManager(), userRepo, logger)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	registry := presence.NewRegistry(logger, dispatcher)
	worker.StartPresenceObserver(dispatcher, metrics, logger)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics)

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, registry)
	authHandler := handlers.NewAuthHandler(authService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:       healthHandler,
		Auth:         authHandler,
		SessionGuard: sessionGuard,
		UploadDir:    cfg.Upload.Dir,
	})

	wsHandler := ws.NewHandler(registry, logger)
	wsHandler.Register(app, sessionGuard)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	registry.Shutdown()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
