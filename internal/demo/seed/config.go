package seed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

const (
	FormatSQLite  = "sqlite"
	FormatParquet = "parquet"
	FormatAll     = "all"
)

type Config struct {
	OutDir       string
	Format       string
	Seed         int64
	Clients      int
	Articles     int
	Orders       int
	OnTimeRatio  float64
	StartDate    time.Time
	Upload       bool
	UploadPrefix string
}

func DefaultConfig() Config {
	return Config{
		OutDir:       "data",
		Format:       FormatAll,
		Seed:         42,
		Clients:      50,
		Articles:     40,
		Orders:       500,
		OnTimeRatio:  0.6,
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Upload:       false,
		UploadPrefix: "datasets/demo",
	}
}

func (c Config) Sizes() Sizes {
	return Sizes{
		Clients:     c.Clients,
		Articles:    c.Articles,
		Orders:      c.Orders,
		OnTimeRatio: c.OnTimeRatio,
		StartDate:   c.StartDate,
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "SUPPLYSQL_SEED_OUT_DIR", &cfg.OutDir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SUPPLYSQL_SEED_FORMAT", &cfg.Format); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "SUPPLYSQL_SEED_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SUPPLYSQL_SEED_CLIENTS", &cfg.Clients); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SUPPLYSQL_SEED_ARTICLES", &cfg.Articles); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SUPPLYSQL_SEED_ORDERS", &cfg.Orders); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "SUPPLYSQL_SEED_ON_TIME_RATIO", &cfg.OnTimeRatio); err != nil {
		return Config{}, err
	}
	if err := applyDate(lookup, "SUPPLYSQL_SEED_START_DATE", &cfg.StartDate); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SUPPLYSQL_SEED_UPLOAD", &cfg.Upload); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SUPPLYSQL_SEED_UPLOAD_PREFIX", &cfg.UploadPrefix); err != nil {
		return Config{}, err
	}

	cfg.Format = strings.ToLower(cfg.Format)
	switch cfg.Format {
	case FormatSQLite, FormatParquet, FormatAll:
	default:
		return Config{}, fmt.Errorf("SUPPLYSQL_SEED_FORMAT must be one of sqlite, parquet, all")
	}
	if strings.TrimSpace(cfg.OutDir) == "" {
		return Config{}, fmt.Errorf("SUPPLYSQL_SEED_OUT_DIR is required")
	}
	if cfg.Clients <= 0 {
		return Config{}, fmt.Errorf("SUPPLYSQL_SEED_CLIENTS must be > 0")
	}
	if cfg.Articles <= 0 {
		return Config{}, fmt.Errorf("SUPPLYSQL_SEED_ARTICLES must be > 0")
	}
	if cfg.Orders <= 0 {
		return Config{}, fmt.Errorf("SUPPLYSQL_SEED_ORDERS must be > 0")
	}
	if cfg.OnTimeRatio < 0 || cfg.OnTimeRatio > 1 {
		return Config{}, fmt.Errorf("SUPPLYSQL_SEED_ON_TIME_RATIO must be between 0 and 1")
	}
	if cfg.Upload && strings.TrimSpace(cfg.UploadPrefix) == "" {
		return Config{}, fmt.Errorf("SUPPLYSQL_SEED_UPLOAD_PREFIX is required when uploading")
	}
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyDate(lookup LookupFunc, key string, dst *time.Time) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
