package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	DriverSQLite   = "sqlite"
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

const (
	EmbeddingProviderOpenAI  = "openai"
	EmbeddingProviderLexical = "lexical"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Asset         AssetConfig
	ObjectStore   ObjectStoreConfig
	Agent         AgentConfig
	AI            AIConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver          string
	Path            string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	MaxResultRows   int
	SampleRows      int
}

type AssetConfig struct {
	Key          string
	FetchTimeout time.Duration
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type AgentConfig struct {
	FewShot             bool
	FallbackToStatic    bool
	MaxTurns            int
	MaxMalformedRetries int
	StaticTopK          int
	FewShotTopK         int
	ExamplesFile        string
}

type AIConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	EmbeddingProvider string
	EmbeddingModel    string
	Temperature       float64
	Timeout           time.Duration
	MaxRetries        int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SUPPLYSQL_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SUPPLYSQL_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyLegacy(lookup, &cfg); err != nil {
		return Config{}, err
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "SUPPLYSQL_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "SUPPLYSQL_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "SUPPLYSQL_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "SUPPLYSQL_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "SUPPLYSQL_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "SUPPLYSQL_DB_DRIVER", &cfg.Database.Driver) },
		func() error { return applyString(lookup, "SUPPLYSQL_DB_PATH", &cfg.Database.Path) },
		func() error { return applyString(lookup, "SUPPLYSQL_DB_DSN", &cfg.Database.DSN) },
		func() error { return applyInt(lookup, "SUPPLYSQL_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns) },
		func() error { return applyInt(lookup, "SUPPLYSQL_DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "SUPPLYSQL_DB_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime)
		},
		func() error {
			return applyDuration(lookup, "SUPPLYSQL_DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)
		},
		func() error { return applyInt(lookup, "SUPPLYSQL_DB_MAX_RESULT_ROWS", &cfg.Database.MaxResultRows) },
		func() error { return applyInt(lookup, "SUPPLYSQL_DB_SAMPLE_ROWS", &cfg.Database.SampleRows) },
		func() error { return applyString(lookup, "SUPPLYSQL_ASSET_KEY", &cfg.Asset.Key) },
		func() error { return applyDuration(lookup, "SUPPLYSQL_ASSET_FETCH_TIMEOUT", &cfg.Asset.FetchTimeout) },
		func() error { return applyString(lookup, "SUPPLYSQL_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "SUPPLYSQL_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "SUPPLYSQL_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error {
			return applyString(lookup, "SUPPLYSQL_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
		},
		func() error {
			return applyString(lookup, "SUPPLYSQL_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "SUPPLYSQL_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "SUPPLYSQL_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "SUPPLYSQL_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyBool(lookup, "SUPPLYSQL_AGENT_FEW_SHOT", &cfg.Agent.FewShot) },
		func() error { return applyBool(lookup, "SUPPLYSQL_AGENT_FALLBACK_STATIC", &cfg.Agent.FallbackToStatic) },
		func() error { return applyInt(lookup, "SUPPLYSQL_AGENT_MAX_TURNS", &cfg.Agent.MaxTurns) },
		func() error {
			return applyInt(lookup, "SUPPLYSQL_AGENT_MAX_MALFORMED_RETRIES", &cfg.Agent.MaxMalformedRetries)
		},
		func() error { return applyInt(lookup, "SUPPLYSQL_AGENT_STATIC_TOP_K", &cfg.Agent.StaticTopK) },
		func() error { return applyInt(lookup, "SUPPLYSQL_AGENT_FEW_SHOT_TOP_K", &cfg.Agent.FewShotTopK) },
		func() error { return applyString(lookup, "SUPPLYSQL_AGENT_EXAMPLES_FILE", &cfg.Agent.ExamplesFile) },
		func() error { return applyString(lookup, "SUPPLYSQL_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "SUPPLYSQL_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "SUPPLYSQL_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyString(lookup, "SUPPLYSQL_AI_EMBEDDING_PROVIDER", &cfg.AI.EmbeddingProvider) },
		func() error { return applyString(lookup, "SUPPLYSQL_AI_EMBEDDING_MODEL", &cfg.AI.EmbeddingModel) },
		func() error { return applyFloat(lookup, "SUPPLYSQL_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyDuration(lookup, "SUPPLYSQL_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyInt(lookup, "SUPPLYSQL_AI_MAX_RETRIES", &cfg.AI.MaxRetries) },
		func() error { return applyDuration(lookup, "SUPPLYSQL_AI_RETRY_BASE_DELAY", &cfg.AI.RetryBaseDelay) },
		func() error { return applyDuration(lookup, "SUPPLYSQL_AI_RETRY_MAX_DELAY", &cfg.AI.RetryMaxDelay) },
		func() error { return applyBool(lookup, "SUPPLYSQL_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "SUPPLYSQL_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "SUPPLYSQL_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "SUPPLYSQL_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	cfg.AI.EmbeddingProvider = strings.ToLower(cfg.AI.EmbeddingProvider)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Strategy reports the prompt strategy name selected by the few-shot flag.
func (c AgentConfig) Strategy() string {
	if c.FewShot {
		return "few_shot"
	}
	return "static"
}

func validate(cfg Config) error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	switch cfg.Database.Driver {
	case DriverSQLite, DriverDuckDB:
		if cfg.Database.Path == "" {
			return fmt.Errorf("database path is required for driver %q", cfg.Database.Driver)
		}
	case DriverPostgres:
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for driver %q", cfg.Database.Driver)
		}
	default:
		return fmt.Errorf("invalid SUPPLYSQL_DB_DRIVER: %q", cfg.Database.Driver)
	}
	if cfg.Database.MaxResultRows <= 0 {
		return fmt.Errorf("database max result rows must be > 0")
	}
	if cfg.Agent.MaxTurns <= 0 {
		return fmt.Errorf("agent max turns must be > 0")
	}
	if cfg.Agent.MaxMalformedRetries < 0 {
		return fmt.Errorf("agent max malformed retries must be >= 0")
	}
	if cfg.Agent.StaticTopK <= 0 || cfg.Agent.FewShotTopK <= 0 {
		return fmt.Errorf("agent top k must be > 0")
	}
	switch cfg.AI.EmbeddingProvider {
	case EmbeddingProviderOpenAI, EmbeddingProviderLexical:
	default:
		return fmt.Errorf("invalid SUPPLYSQL_AI_EMBEDDING_PROVIDER: %q", cfg.AI.EmbeddingProvider)
	}
	if cfg.AI.MaxRetries < 0 {
		return fmt.Errorf("ai max retries must be >= 0")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "supplysql-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 180 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            filepath.Join("data", "supply_chain.db"),
			MaxOpenConns:    8,
			MaxIdleConns:    8,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
			MaxResultRows:   200,
			SampleRows:      3,
		},
		Asset: AssetConfig{
			FetchTimeout: 2 * time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "supplysql",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: false,
		},
		Agent: AgentConfig{
			FewShot:             false,
			FallbackToStatic:    true,
			MaxTurns:            15,
			MaxMalformedRetries: 2,
			StaticTopK:          10,
			FewShotTopK:         5,
		},
		AI: AIConfig{
			BaseURL:           "https://api.openai.com",
			Model:             "gpt-4o-mini",
			EmbeddingProvider: EmbeddingProviderOpenAI,
			EmbeddingModel:    "text-embedding-3-small",
			Temperature:       0,
			Timeout:           60 * time.Second,
			MaxRetries:        3,
			RetryBaseDelay:    500 * time.Millisecond,
			RetryMaxDelay:     8 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
		cfg.AI.EmbeddingProvider = EmbeddingProviderLexical
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
	}

	return cfg
}

// applyLegacy honors the variable names of the original single-process
// deployment. Prefixed variables applied afterwards take precedence.
func applyLegacy(lookup LookupFunc, cfg *Config) error {
	if err := applyString(lookup, "OPENAI_API_KEY", &cfg.AI.APIKey); err != nil {
		return err
	}
	if err := applyString(lookup, "LLM_MODEL", &cfg.AI.Model); err != nil {
		return err
	}
	if err := applyString(lookup, "EMBEDDING_MODEL", &cfg.AI.EmbeddingModel); err != nil {
		return err
	}
	if err := applyString(lookup, "FILE_ID", &cfg.Asset.Key); err != nil {
		return err
	}
	if err := applyBool(lookup, "SQL_AGENT_FEW_SHOT", &cfg.Agent.FewShot); err != nil {
		return err
	}
	dir, hasDir := lookup("DB_PATH")
	name, hasName := lookup("DB_NAME")
	if hasDir || hasName {
		if !hasName || strings.TrimSpace(name) == "" {
			return fmt.Errorf("invalid DB_NAME: required when DB_PATH is set")
		}
		cfg.Database.Path = strings.TrimSpace(dir) + strings.TrimSpace(name)
	}
	return nil
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
