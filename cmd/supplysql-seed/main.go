package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/supplysql/supplysql/internal/config"
	"github.com/supplysql/supplysql/internal/demo/seed"
	"github.com/supplysql/supplysql/internal/storage"
	s3store "github.com/supplysql/supplysql/internal/storage/s3"
)

func main() {
	cfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load seed config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var objectStore storage.ObjectStore
	if cfg.Upload {
		serviceCfg, err := config.LoadFromEnv("supplysql-seed")
		if err != nil {
			logger.Error("failed to load object store config", slog.Any("error", err))
			os.Exit(1)
		}
		objectStore, err = s3store.New(ctx, s3store.Config{
			Endpoint:         serviceCfg.ObjectStore.Endpoint,
			Region:           serviceCfg.ObjectStore.Region,
			Bucket:           serviceCfg.ObjectStore.Bucket,
			AccessKeyID:      serviceCfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  serviceCfg.ObjectStore.SecretAccessKey,
			UseSSL:           serviceCfg.ObjectStore.UseSSL,
			Prefix:           serviceCfg.ObjectStore.Prefix,
			AutoCreateBucket: serviceCfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
	}

	service, err := seed.NewService(cfg, logger, objectStore)
	if err != nil {
		logger.Error("failed to initialize seeder", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("seeding demo dataset",
		slog.String("out_dir", cfg.OutDir),
		slog.String("format", cfg.Format),
		slog.Int64("seed", cfg.Seed),
		slog.Int("orders", cfg.Orders),
		slog.Float64("on_time_ratio", cfg.OnTimeRatio),
		slog.Bool("upload", cfg.Upload),
	)
	summary, err := service.Run(ctx)
	if err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("demo dataset written",
		slog.String("sqlite", summary.SQLitePath),
		slog.Int("parquet_files", len(summary.ParquetPaths)),
		slog.Int("uploaded", len(summary.UploadedKeys)),
		slog.Int("orders", summary.Orders),
		slog.Int("on_time", summary.OnTime),
	)
}
