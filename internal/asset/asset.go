// Package asset makes sure the database files exist locally before any
// query is served, fetching them once from the blob store when absent.
package asset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/supplysql/supplysql/internal/observability"
	"github.com/supplysql/supplysql/internal/storage"
)

var ErrAssetUnavailable = errors.New("database asset unavailable")

type Fetcher struct {
	Store  storage.ObjectStore
	Logger *slog.Logger
}

func NewFetcher(store storage.ObjectStore, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Fetcher{Store: store, Logger: logger}
}

// EnsureFile downloads the object at key into localPath unless a file is
// already there. It reports whether a download happened.
func (f *Fetcher) EnsureFile(ctx context.Context, key, localPath string) (bool, error) {
	info, err := os.Stat(localPath)
	if err == nil {
		if info.IsDir() {
			return false, fmt.Errorf("%w: %s is a directory", ErrAssetUnavailable, localPath)
		}
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("%w: stat %s: %v", ErrAssetUnavailable, localPath, err)
	}
	if err := f.canFetch(key, localPath); err != nil {
		return false, err
	}

	f.Logger.InfoContext(ctx, "fetching database asset",
		slog.String("key", key),
		slog.String("path", localPath),
	)
	if err := f.download(ctx, key, localPath); err != nil {
		return false, err
	}
	return true, nil
}

// EnsureDir downloads every parquet object under prefix into dir unless dir
// already holds at least one parquet file. It returns the number of files
// fetched.
func (f *Fetcher) EnsureDir(ctx context.Context, prefix, dir string) (int, error) {
	existing, err := filepath.Glob(filepath.Join(dir, "*"+storage.ParquetExtension))
	if err != nil {
		return 0, fmt.Errorf("%w: scan %s: %v", ErrAssetUnavailable, dir, err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	if err := f.canFetch(prefix, dir); err != nil {
		return 0, err
	}

	objects, err := f.Store.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("%w: list %q: %v", ErrAssetUnavailable, prefix, err)
	}
	fetched := 0
	for _, object := range objects {
		tableName, ok := storage.TableNameFromKey(object.Key)
		if !ok {
			continue
		}
		localPath := filepath.Join(dir, tableName+storage.ParquetExtension)
		if err := f.download(ctx, object.Key, localPath); err != nil {
			return fetched, err
		}
		fetched++
	}
	if fetched == 0 {
		return 0, fmt.Errorf("%w: no parquet objects under %q", ErrAssetUnavailable, prefix)
	}
	f.Logger.InfoContext(ctx, "fetched parquet dataset",
		slog.String("prefix", prefix),
		slog.String("dir", dir),
		slog.Int("files", fetched),
	)
	return fetched, nil
}

func (f *Fetcher) canFetch(key, localPath string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: %s is missing and no asset key is configured", ErrAssetUnavailable, localPath)
	}
	if f.Store == nil {
		return fmt.Errorf("%w: %s is missing and no object store is configured", ErrAssetUnavailable, localPath)
	}
	return nil
}

func (f *Fetcher) download(ctx context.Context, key, localPath string) error {
	reader, err := f.Store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: get %q: %v", ErrAssetUnavailable, key, err)
	}
	defer func() { _ = reader.Close() }()

	if err := writeFileAtomic(localPath, reader); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrAssetUnavailable, localPath, err)
	}
	return nil
}
