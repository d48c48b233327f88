package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/profile-service/internal/api/http"
	"github.com/spec-kit/profile-service/internal/api/http/handlers"
	"github.com/spec-kit/profile-service/internal/auth"
	"github.com/spec-kit/profile-service/internal/config"
	"github.com/spec-kit/profile-service/internal/events"
	"github.com/spec-kit/profile-service/internal/observability"
	"github.com/spec-kit/profile-service/internal/persistence"
	"github.com/spec-kit/profile-service/internal/ratelimit"
	"github.com/spec-kit/profile-service/internal/repository"
	"github.com/spec-kit/profile-service/internal/service"
	"github.com/spec-kit/profile-service/internal/worker"
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

	deps := map[string]handlers.Pinger{}

	userRepo, closeStore, err := openStore(ctx, cfg, logger, deps)
	if err != nil {
		logger.Fatal("failed to open credential store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	var throttle, ipThrottle service.LoginThrottle
	if cfg.Redis.Addr != "" {
		redis := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		deps["redis"] = redis
		if cfg.Throttle.Enabled {
			throttle = ratelimit.NewLoginLimiter(redis.Client, cfg.Throttle.MaxAttempts, cfg.Throttle.Cooldown())
			ipThrottle = ratelimit.NewLoginLimiter(redis.Client, cfg.Throttle.MaxAttemptsPerIP, cfg.Throttle.Cooldown())
		}
	} else if cfg.Throttle.Enabled {
		logger.Warn("login throttle disabled: REDIS_ADDR not set")
	}

	notifier := worker.NewNotificationWorker(events.NewInMemoryDispatcher(), logger, 256)
	notificationService := service.NewNotificationService(notifier, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService, notifier)

	authService, err := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:   userRepo,
		Throttle:   throttle,
		IPThrottle: ipThrottle,
		Dispatcher: notifier,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to init auth service", zap.Error(err))
	}
	userService := service.NewUserService(cfg.Auth, service.UserDependencies{
		UserRepo:   userRepo,
		Hasher:     authService.Hasher(),
		Dispatcher: notifier,
		Logger:     logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.IsProduction(),
		ErrorHandler:          httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps, metrics),
		Users:          handlers.NewUsersHandler(authService, userService),
		Auth:           handlers.NewAuthHandler(authService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := notifier.Stop(shutdownCtx); err != nil {
		logger.Warn("notification worker shutdown", zap.Error(err))
	}
}

// openStore builds the credential store selected by STORE_DRIVER and registers its readiness probe.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, deps map[string]handlers.Pinger) (repository.UserRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		logger.Warn("using in-memory credential store; data is lost on restart")
		return repository.NewMemoryUserRepository(), func() {}, nil

	case config.StorePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.RunMigrations {
			db := pg.SQLDB()
			err := persistence.RunMigrations(ctx, db, goose.DialectPostgres, logger)
			_ = db.Close()
			if err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		deps["postgres"] = pg
		return repository.NewUserRepository(pg.PoolHandle()), pg.Close, nil

	case config.StoreSQLite:
		lite, err := persistence.NewSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.SQLite.RunMigrations {
			if err := persistence.RunMigrations(ctx, lite.DB, goose.DialectSQLite3, logger); err != nil {
				lite.Close()
				return nil, nil, err
			}
		}
		deps["sqlite"] = lite
		return repository.NewSQLiteUserRepository(lite.DB), lite.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
