package seed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/supplysql/supplysql/internal/observability"
	"github.com/supplysql/supplysql/internal/storage"
)

type Service struct {
	cfg   Config
	log   *slog.Logger
	store storage.ObjectStore
}

type Summary struct {
	SQLitePath   string
	ParquetPaths []string
	UploadedKeys []string
	Orders       int
	OnTime       int
}

// NewService builds the seeding job. store is only required when cfg.Upload
// is set.
func NewService(cfg Config, logger *slog.Logger, store storage.ObjectStore) (*Service, error) {
	if cfg.Upload && store == nil {
		return nil, fmt.Errorf("object store is required when uploading")
	}
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Service{cfg: cfg, log: logger, store: store}, nil
}

func (s *Service) Run(ctx context.Context) (Summary, error) {
	sizes := s.cfg.Sizes()
	dataset := NewGenerator(s.cfg.Seed, sizes).Generate()
	summary := Summary{Orders: len(dataset.Ordini), OnTime: sizes.OnTimeCount()}

	if err := os.MkdirAll(s.cfg.OutDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output dir: %w", err)
	}

	if s.cfg.Format == FormatSQLite || s.cfg.Format == FormatAll {
		path := filepath.Join(s.cfg.OutDir, storage.SQLiteFileName)
		if err := WriteSQLite(ctx, path, dataset); err != nil {
			return Summary{}, err
		}
		summary.SQLitePath = path
		s.log.Info("wrote sqlite dataset", slog.String("path", path), slog.Int("orders", summary.Orders))
	}
	if s.cfg.Format == FormatParquet || s.cfg.Format == FormatAll {
		paths, err := WriteParquet(filepath.Join(s.cfg.OutDir, "parquet"), dataset)
		if err != nil {
			return Summary{}, err
		}
		summary.ParquetPaths = paths
		s.log.Info("wrote parquet dataset", slog.Int("files", len(paths)))
	}

	if s.cfg.Upload {
		keys, err := s.publish(ctx, summary)
		if err != nil {
			return Summary{}, err
		}
		summary.UploadedKeys = keys
	}
	return summary, nil
}

func (s *Service) publish(ctx context.Context, summary Summary) ([]string, error) {
	keys := make([]string, 0, len(summary.ParquetPaths)+1)
	if summary.SQLitePath != "" {
		key, err := storage.BuildSQLiteAssetKey(s.cfg.UploadPrefix)
		if err != nil {
			return nil, err
		}
		if err := s.upload(ctx, key, summary.SQLitePath, "application/vnd.sqlite3"); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	for _, path := range summary.ParquetPaths {
		tableName, ok := storage.TableNameFromKey(filepath.ToSlash(path))
		if !ok {
			return nil, fmt.Errorf("unexpected parquet file name %q", path)
		}
		key, err := storage.BuildTableFileKey(s.cfg.UploadPrefix, tableName)
		if err != nil {
			return nil, err
		}
		if err := s.upload(ctx, key, path, "application/octet-stream"); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Service) upload(ctx context.Context, key, path, contentType string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	info, err := s.store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	s.log.Info("uploaded dataset object", slog.String("key", info.Key), slog.Int64("size", info.Size))
	return nil
}
