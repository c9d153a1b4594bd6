// Package s3 keeps the database asset and the demo dataset files in an
// S3-compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/supplysql/supplysql/internal/storage"
)

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("asset store endpoint is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("asset store bucket is required")
	}
	return nil
}

// bucket is the part of the minio client the store drives. Keys passed to it
// already carry the store root.
type bucket interface {
	Upload(ctx context.Context, name, key string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error)
	Download(ctx context.Context, name, key string) (io.ReadCloser, error)
	Head(ctx context.Context, name, key string) (storage.ObjectInfo, error)
	Walk(ctx context.Context, name, prefix string) ([]storage.ObjectInfo, error)
	Exists(ctx context.Context, name string) (bool, error)
	Make(ctx context.Context, name, region string) error
}

// Store maps asset keys such as "datasets/supply_chain.db" under an optional
// root inside one bucket.
type Store struct {
	api  bucket
	name string
	root string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	api, err := dialMinio(cfg)
	if err != nil {
		return nil, err
	}
	store := &Store{api: api, name: strings.TrimSpace(cfg.Bucket), root: storeRoot(cfg.Prefix)}
	if cfg.AutoCreateBucket {
		if err := store.prepareBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// NewWithClient builds a Store over an already configured bucket client.
func NewWithClient(name, root string, api bucket) (*Store, error) {
	if api == nil {
		return nil, fmt.Errorf("bucket client is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("asset store bucket is required")
	}
	return &Store{api: api, name: strings.TrimSpace(name), root: storeRoot(root)}, nil
}

// Put uploads a dataset file or database asset.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	fullKey, err := s.assetKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.api.Upload(ctx, s.name, fullKey, body, size, opts.ContentType)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload asset %q: %w", fullKey, err)
	}
	return info, nil
}

// Get opens the asset for download. A missing asset is storage.ErrObjectNotFound.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	fullKey, err := s.assetKey(key)
	if err != nil {
		return nil, err
	}
	body, err := s.api.Download(ctx, s.name, fullKey)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		return nil, storage.ErrObjectNotFound
	case err != nil:
		return nil, fmt.Errorf("download asset %q: %w", fullKey, err)
	}
	return body, nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	fullKey, err := s.assetKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.api.Head(ctx, s.name, fullKey)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	case err != nil:
		return storage.ObjectInfo{}, fmt.Errorf("inspect asset %q: %w", fullKey, err)
	}
	return info, nil
}

// List returns the assets under prefix, such as the parquet files of one
// dataset. Keys come back relative to the store root so they can be passed
// to Get unchanged.
func (s *Store) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	walkPrefix := ""
	switch {
	case strings.Trim(strings.TrimSpace(prefix), "/") != "":
		fullKey, err := s.assetKey(prefix)
		if err != nil {
			return nil, err
		}
		walkPrefix = fullKey + "/"
	case s.root != "":
		walkPrefix = s.root + "/"
	}

	found, err := s.api.Walk(ctx, s.name, walkPrefix)
	if err != nil {
		return nil, fmt.Errorf("list assets under %q: %w", walkPrefix, err)
	}
	assets := make([]storage.ObjectInfo, 0, len(found))
	for _, info := range found {
		if s.root != "" {
			info.Key = strings.TrimPrefix(info.Key, s.root+"/")
		}
		assets = append(assets, info)
	}
	return assets, nil
}

func (s *Store) prepareBucket(ctx context.Context, region string) error {
	exists, err := s.api.Exists(ctx, s.name)
	if err != nil {
		return fmt.Errorf("check asset bucket %q: %w", s.name, err)
	}
	if exists {
		return nil
	}
	if err := s.api.Make(ctx, s.name, region); err != nil {
		return fmt.Errorf("create asset bucket %q: %w", s.name, err)
	}
	return nil
}

// assetKey cleans key and places it under the store root. Keys that climb
// out of the root are refused.
func (s *Store) assetKey(key string) (string, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(key, "/"))
	if trimmed == "" {
		return "", fmt.Errorf("asset key is required")
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("asset key %q escapes the store root", key)
	}
	if s.root == "" {
		return cleaned, nil
	}
	return path.Join(s.root, cleaned), nil
}

func storeRoot(prefix string) string {
	cleaned := path.Clean("/" + strings.TrimSpace(prefix))
	return strings.TrimPrefix(cleaned, "/")
}

// resolveEndpoint accepts "host:port" or a URL; an https URL forces TLS.
func resolveEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("asset store endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse asset store endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("asset store endpoint %q has no host", raw)
	}
	return parsed.Host, useSSL || parsed.Scheme == "https", nil
}

func dialMinio(cfg Config) (*minioBucket, error) {
	host, secure, err := resolveEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create asset store client: %w", err)
	}
	return &minioBucket{client: client}, nil
}

type minioBucket struct {
	client *minio.Client
}

func (m *minioBucket) Upload(ctx context.Context, name, key string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	uploaded, err := m.client.PutObject(ctx, name, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return storage.ObjectInfo{}, notFoundOr(err)
	}
	return storage.ObjectInfo{Key: uploaded.Key, Size: uploaded.Size, ETag: uploaded.ETag}, nil
}

// Download stats the object first so a missing asset fails here rather than
// on the first Read.
func (m *minioBucket) Download(ctx context.Context, name, key string) (io.ReadCloser, error) {
	object, err := m.client.GetObject(ctx, name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFoundOr(err)
	}
	if _, err := object.Stat(); err != nil {
		_ = object.Close()
		return nil, notFoundOr(err)
	}
	return object, nil
}

func (m *minioBucket) Head(ctx context.Context, name, key string) (storage.ObjectInfo, error) {
	info, err := m.client.StatObject(ctx, name, key, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, notFoundOr(err)
	}
	return objectInfo(info), nil
}

func (m *minioBucket) Walk(ctx context.Context, name, prefix string) ([]storage.ObjectInfo, error) {
	var found []storage.ObjectInfo
	for info := range m.client.ListObjects(ctx, name, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, notFoundOr(info.Err)
		}
		found = append(found, objectInfo(info))
	}
	return found, nil
}

func (m *minioBucket) Exists(ctx context.Context, name string) (bool, error) {
	exists, err := m.client.BucketExists(ctx, name)
	if err != nil {
		return false, notFoundOr(err)
	}
	return exists, nil
}

func (m *minioBucket) Make(ctx context.Context, name, region string) error {
	return notFoundOr(m.client.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: region}))
}

func objectInfo(info minio.ObjectInfo) storage.ObjectInfo {
	return storage.ObjectInfo{Key: info.Key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}
}

// notFoundOr turns the S3 "missing" codes into storage.ErrObjectNotFound.
func notFoundOr(err error) error {
	var response minio.ErrorResponse
	if errors.As(err, &response) {
		switch response.Code {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return storage.ErrObjectNotFound
		}
	}
	return err
}
