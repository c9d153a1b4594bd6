package asset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/supplysql/supplysql/internal/storage"
)

func TestEnsureFileDownloadsMissingAsset(t *testing.T) {
	store := newMemoryStore(map[string]string{"datasets/demo/supply_chain.db": "sqlite-bytes"})
	fetcher := NewFetcher(store, nil)
	localPath := filepath.Join(t.TempDir(), "data", "supply_chain.db")

	fetched, err := fetcher.EnsureFile(context.Background(), "datasets/demo/supply_chain.db", localPath)
	if err != nil {
		t.Fatalf("EnsureFile() error = %v", err)
	}
	if !fetched {
		t.Fatalf("EnsureFile() fetched = false, want true")
	}
	payload, err := os.ReadFile(localPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(payload) != "sqlite-bytes" {
		t.Fatalf("downloaded payload = %q", payload)
	}
	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(localPath), ".*part-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestEnsureFileKeepsExistingFile(t *testing.T) {
	store := newMemoryStore(nil)
	localPath := filepath.Join(t.TempDir(), "supply_chain.db")
	if err := os.WriteFile(localPath, []byte("local"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	fetched, err := NewFetcher(store, nil).EnsureFile(context.Background(), "any", localPath)
	if err != nil {
		t.Fatalf("EnsureFile() error = %v", err)
	}
	if fetched {
		t.Fatalf("EnsureFile() fetched = true, want false")
	}
	if store.gets != 0 {
		t.Fatalf("store gets = %d, want 0", store.gets)
	}
}

func TestEnsureFileFailsWithoutSource(t *testing.T) {
	localPath := filepath.Join(t.TempDir(), "supply_chain.db")

	_, err := NewFetcher(nil, nil).EnsureFile(context.Background(), "datasets/demo/supply_chain.db", localPath)
	if !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("EnsureFile() without store error = %v, want ErrAssetUnavailable", err)
	}
	_, err = NewFetcher(newMemoryStore(nil), nil).EnsureFile(context.Background(), "", localPath)
	if !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("EnsureFile() without key error = %v, want ErrAssetUnavailable", err)
	}
}

func TestEnsureFileMapsMissingObject(t *testing.T) {
	localPath := filepath.Join(t.TempDir(), "supply_chain.db")

	_, err := NewFetcher(newMemoryStore(nil), nil).EnsureFile(context.Background(), "datasets/missing.db", localPath)
	if !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("EnsureFile() error = %v, want ErrAssetUnavailable", err)
	}
	if _, statErr := os.Stat(localPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected no file after failed fetch, stat err = %v", statErr)
	}
}

func TestEnsureDirDownloadsParquetObjects(t *testing.T) {
	store := newMemoryStore(map[string]string{
		"datasets/demo/Clienti.parquet": "clienti",
		"datasets/demo/Ordini.parquet":  "ordini",
		"datasets/demo/README.txt":      "ignored",
		"datasets/demo/supply_chain.db": "ignored",
	})
	dir := t.TempDir()

	fetched, err := NewFetcher(store, nil).EnsureDir(context.Background(), "datasets/demo", dir)
	if err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	if fetched != 2 {
		t.Fatalf("EnsureDir() fetched = %d, want 2", fetched)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.parquet"))
	sort.Strings(files)
	if len(files) != 2 || filepath.Base(files[0]) != "Clienti.parquet" || filepath.Base(files[1]) != "Ordini.parquet" {
		t.Fatalf("unexpected files: %v", files)
	}

	again, err := NewFetcher(store, nil).EnsureDir(context.Background(), "datasets/demo", dir)
	if err != nil || again != 0 {
		t.Fatalf("second EnsureDir() = %d, %v, want 0, nil", again, err)
	}
}

func TestEnsureDirFailsWhenPrefixHasNoParquet(t *testing.T) {
	store := newMemoryStore(map[string]string{"datasets/demo/README.txt": "x"})

	_, err := NewFetcher(store, nil).EnsureDir(context.Background(), "datasets/demo", t.TempDir())
	if !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("EnsureDir() error = %v, want ErrAssetUnavailable", err)
	}
}

type memoryStore struct {
	objects map[string]string
	gets    int
}

func newMemoryStore(objects map[string]string) *memoryStore {
	if objects == nil {
		objects = map[string]string{}
	}
	return &memoryStore{objects: objects}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	payload, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = string(payload)
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.gets++
	payload, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewBufferString(payload)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	payload, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	out := []storage.ObjectInfo{}
	for key, payload := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(payload))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
