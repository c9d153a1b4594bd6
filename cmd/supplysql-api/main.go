package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/supplysql/supplysql/internal/api"
	"github.com/supplysql/supplysql/internal/assistant"
	"github.com/supplysql/supplysql/internal/auth"
	"github.com/supplysql/supplysql/internal/config"
	"github.com/supplysql/supplysql/internal/observability"
	"github.com/supplysql/supplysql/internal/storage"
	s3store "github.com/supplysql/supplysql/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("supplysql-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.Error("api server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

// run owns every resource it opens, so each return path closes the database
// before main exits.
func run(cfg config.Config, logger *slog.Logger) error {
	var objectStore storage.ObjectStore
	if cfg.Asset.Key != "" {
		store, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			return fmt.Errorf("initialize asset store: %w", err)
		}
		objectStore = store
	}

	provider := assistant.NewProvider(cfg, logger, objectStore)
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Warn("failed to close database", slog.Any("error", err))
		}
	}()
	if _, err := provider.Service(context.Background()); err != nil {
		return fmt.Errorf("initialize assistant: %w", err)
	}

	deps := api.Dependencies{
		Logger: logger,
		Assistant: func(ctx context.Context) (api.Assistant, error) {
			service, err := provider.Service(ctx)
			if err != nil {
				return nil, err
			}
			return service, nil
		},
		Readiness: api.CombineReadinessChecks(
			api.CheckAssistant(provider.Ready),
			api.CheckModelConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			return fmt.Errorf("parse static auth keys: %w", err)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("strategy", cfg.Agent.Strategy()),
			slog.String("db_driver", cfg.Database.Driver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	default:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
