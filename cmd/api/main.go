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
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/account-service/internal/api/http"
	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/persistence"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/service"
	"github.com/spec-kit/account-service/internal/worker"
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

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()

	store, closeStore, err := openStore(ctx, *cfg, logger)
	if err != nil {
		logger.Fatal("failed to open account store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer closeStore()

	if cfg.Store.DegradeOnError {
		logger.Warn("store errors will be logged and suppressed")
		store = repository.NewDegradingStore(store, logger)
	}

	passwords, err := auth.NewPasswordPolicy(cfg.Accounts.PasswordMode, cfg.Accounts.BcryptCost)
	if err != nil {
		logger.Fatal("failed to init password policy", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification, nil)
	workerDone := worker.StartNotificationWorker(workerCtx, notificationService, logger)

	accountService := service.NewAccountService(*cfg, service.AccountDependencies{
		Store:      store,
		Passwords:  passwords,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:          cfg.App.RequestTimeout(),
		CORSAllowOrigins: cfg.App.CORSAllowOrigins,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.Store.Backend, accountService, metrics),
		Auth:     handlers.NewAuthHandler(accountService),
		Accounts: handlers.NewAccountsHandler(accountService),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("backend", cfg.Store.Backend))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}

	stopWorker()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		logger.Warn("notification worker did not flush in time")
	}
}

// openStore builds the configured backend and returns a cleanup func for its connections.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository.AccountStore, func(), error) {
	noop := func() {}

	switch cfg.Store.Backend {
	case config.BackendFile:
		store := repository.NewFileStore(cfg.Store.FilePath)
		if err := store.Ping(ctx); err != nil {
			return nil, noop, err
		}
		logger.Info("using file store", zap.String("path", store.Path()))
		return store, noop, nil

	case config.BackendGitHub:
		client, err := persistence.NewGitHub(cfg.GitHub, nil, logger)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("using github store",
			zap.String("repo", cfg.GitHub.Owner+"/"+cfg.GitHub.Repo),
			zap.String("path", cfg.GitHub.Path))
		return repository.NewGitHubStore(client, cfg.GitHub.Path, cfg.GitHub.CommitMessage, logger), noop, nil

	case config.BackendPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
		if err != nil {
			return nil, noop, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, noop, err
			}
		}
		return repository.NewPostgresStore(pg.PoolHandle(), cfg.Postgres.DocumentName), pg.Close, nil

	case config.BackendRedis:
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, noop, err
		}
		return repository.NewRedisStore(rdb.Client, cfg.Redis.Key), rdb.Close, nil

	case config.BackendMemory:
		logger.Warn("using in-memory store, accounts are lost on restart")
		return repository.NewMemoryStore(), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
