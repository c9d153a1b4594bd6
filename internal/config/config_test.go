package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("supplysql-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Fatalf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Database.Path != filepath.Join("data", "supply_chain.db") {
		t.Fatalf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Database.MaxResultRows != 200 {
		t.Fatalf("Database.MaxResultRows = %d", cfg.Database.MaxResultRows)
	}
	if cfg.Agent.FewShot {
		t.Fatal("Agent.FewShot should default to false")
	}
	if cfg.Agent.Strategy() != "static" {
		t.Fatalf("Agent.Strategy() = %q", cfg.Agent.Strategy())
	}
	if !cfg.Agent.FallbackToStatic {
		t.Fatal("Agent.FallbackToStatic should default to true")
	}
	if cfg.Agent.MaxTurns != 15 {
		t.Fatalf("Agent.MaxTurns = %d", cfg.Agent.MaxTurns)
	}
	if cfg.Agent.StaticTopK != 10 || cfg.Agent.FewShotTopK != 5 {
		t.Fatalf("top k = %d/%d", cfg.Agent.StaticTopK, cfg.Agent.FewShotTopK)
	}
	if cfg.AI.Temperature != 0 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.EmbeddingProvider != EmbeddingProviderOpenAI {
		t.Fatalf("AI.EmbeddingProvider = %q", cfg.AI.EmbeddingProvider)
	}
	if cfg.AI.MaxRetries != 3 {
		t.Fatalf("AI.MaxRetries = %d", cfg.AI.MaxRetries)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"SUPPLYSQL_PROFILE": "prod"})
	cfg, err := Load("supplysql-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
}

func TestLoadTestProfileUsesLexicalEmbeddings(t *testing.T) {
	cfg, err := Load("supplysql-api", mapLookup(map[string]string{"SUPPLYSQL_PROFILE": "test"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.EmbeddingProvider != EmbeddingProviderLexical {
		t.Fatalf("AI.EmbeddingProvider = %q", cfg.AI.EmbeddingProvider)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SUPPLYSQL_PROFILE":                     "test",
		"SUPPLYSQL_HTTP_ADDR":                   ":9999",
		"SUPPLYSQL_HTTP_READ_TIMEOUT":           "2s",
		"SUPPLYSQL_HTTP_WRITE_TIMEOUT":          "3s",
		"SUPPLYSQL_LOG_LEVEL":                   "error",
		"SUPPLYSQL_AUTH_REQUIRED":               "true",
		"SUPPLYSQL_AUTH_STATIC_KEYS":            "k1:ops:asker",
		"SUPPLYSQL_SERVICE_NAME":                "supplysql-custom",
		"SUPPLYSQL_DB_DRIVER":                   "DuckDB",
		"SUPPLYSQL_DB_PATH":                     "/srv/parquet",
		"SUPPLYSQL_DB_MAX_OPEN_CONNS":           "42",
		"SUPPLYSQL_DB_MAX_RESULT_ROWS":          "50",
		"SUPPLYSQL_DB_SAMPLE_ROWS":              "2",
		"SUPPLYSQL_ASSET_KEY":                   "datasets/supply-chain",
		"SUPPLYSQL_ASSET_FETCH_TIMEOUT":         "30s",
		"SUPPLYSQL_OBJECTSTORE_ENDPOINT":        "s3.example.com",
		"SUPPLYSQL_OBJECTSTORE_BUCKET":          "supplysql-prod",
		"SUPPLYSQL_OBJECTSTORE_USE_SSL":         "true",
		"SUPPLYSQL_AGENT_FEW_SHOT":              "true",
		"SUPPLYSQL_AGENT_FALLBACK_STATIC":       "false",
		"SUPPLYSQL_AGENT_MAX_TURNS":             "7",
		"SUPPLYSQL_AGENT_MAX_MALFORMED_RETRIES": "1",
		"SUPPLYSQL_AGENT_FEW_SHOT_TOP_K":        "3",
		"SUPPLYSQL_AGENT_EXAMPLES_FILE":         "/etc/supplysql/examples.yaml",
		"SUPPLYSQL_AI_BASE_URL":                 "https://api.example.com",
		"SUPPLYSQL_AI_API_KEY":                  "secret-key",
		"SUPPLYSQL_AI_MODEL":                    "gpt-4.1",
		"SUPPLYSQL_AI_EMBEDDING_PROVIDER":       "openai",
		"SUPPLYSQL_AI_EMBEDDING_MODEL":          "text-embedding-3-large",
		"SUPPLYSQL_AI_TEMPERATURE":              "0.2",
		"SUPPLYSQL_AI_TIMEOUT":                  "21s",
		"SUPPLYSQL_AI_MAX_RETRIES":              "5",
		"SUPPLYSQL_AI_RETRY_BASE_DELAY":         "100ms",
	})
	cfg, err := Load("supplysql-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "supplysql-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second || cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP timeouts = %s/%s", cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required || cfg.Auth.StaticKeys != "k1:ops:asker" {
		t.Fatalf("Auth = %#v", cfg.Auth)
	}
	if cfg.Database.Driver != DriverDuckDB {
		t.Fatalf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Database.Path != "/srv/parquet" {
		t.Fatalf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Database.MaxOpenConns != 42 || cfg.Database.MaxResultRows != 50 || cfg.Database.SampleRows != 2 {
		t.Fatalf("Database = %#v", cfg.Database)
	}
	if cfg.Asset.Key != "datasets/supply-chain" || cfg.Asset.FetchTimeout != 30*time.Second {
		t.Fatalf("Asset = %#v", cfg.Asset)
	}
	if cfg.ObjectStore.Endpoint != "s3.example.com" || cfg.ObjectStore.Bucket != "supplysql-prod" {
		t.Fatalf("ObjectStore = %#v", cfg.ObjectStore)
	}
	if !cfg.Agent.FewShot || cfg.Agent.FallbackToStatic {
		t.Fatalf("Agent = %#v", cfg.Agent)
	}
	if cfg.Agent.Strategy() != "few_shot" {
		t.Fatalf("Agent.Strategy() = %q", cfg.Agent.Strategy())
	}
	if cfg.Agent.MaxTurns != 7 || cfg.Agent.MaxMalformedRetries != 1 || cfg.Agent.FewShotTopK != 3 {
		t.Fatalf("Agent = %#v", cfg.Agent)
	}
	if cfg.Agent.ExamplesFile != "/etc/supplysql/examples.yaml" {
		t.Fatalf("Agent.ExamplesFile = %q", cfg.Agent.ExamplesFile)
	}
	if cfg.AI.BaseURL != "https://api.example.com" || cfg.AI.APIKey != "secret-key" || cfg.AI.Model != "gpt-4.1" {
		t.Fatalf("AI = %#v", cfg.AI)
	}
	if cfg.AI.EmbeddingProvider != EmbeddingProviderOpenAI || cfg.AI.EmbeddingModel != "text-embedding-3-large" {
		t.Fatalf("AI embeddings = %q/%q", cfg.AI.EmbeddingProvider, cfg.AI.EmbeddingModel)
	}
	if cfg.AI.Temperature != 0.2 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
	if cfg.AI.MaxRetries != 5 || cfg.AI.RetryBaseDelay != 100*time.Millisecond {
		t.Fatalf("AI retry = %d/%s", cfg.AI.MaxRetries, cfg.AI.RetryBaseDelay)
	}
}

func TestLoadHonorsLegacyVariables(t *testing.T) {
	cfg, err := Load("supplysql-api", mapLookup(map[string]string{
		"OPENAI_API_KEY":     "legacy-key",
		"LLM_MODEL":          "gpt-4o",
		"EMBEDDING_MODEL":    "text-embedding-ada-002",
		"DB_PATH":            "/data/",
		"DB_NAME":            "supply_chain.db",
		"FILE_ID":            "1AbCdEf",
		"SQL_AGENT_FEW_SHOT": "true",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "legacy-key" || cfg.AI.Model != "gpt-4o" || cfg.AI.EmbeddingModel != "text-embedding-ada-002" {
		t.Fatalf("AI = %#v", cfg.AI)
	}
	if cfg.Database.Path != "/data/supply_chain.db" {
		t.Fatalf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Asset.Key != "1AbCdEf" {
		t.Fatalf("Asset.Key = %q", cfg.Asset.Key)
	}
	if !cfg.Agent.FewShot {
		t.Fatal("Agent.FewShot = false, want true")
	}
}

func TestPrefixedVariablesWinOverLegacy(t *testing.T) {
	cfg, err := Load("supplysql-api", mapLookup(map[string]string{
		"OPENAI_API_KEY":       "legacy-key",
		"SUPPLYSQL_AI_API_KEY": "new-key",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "new-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"SUPPLYSQL_PROFILE": "oops"},
		{"SUPPLYSQL_HTTP_READ_TIMEOUT": "NaN"},
		{"SUPPLYSQL_DB_MAX_OPEN_CONNS": "oops"},
		{"SUPPLYSQL_DB_DRIVER": "mysql"},
		{"SUPPLYSQL_DB_DRIVER": "postgres"},
		{"SUPPLYSQL_DB_PATH": ""},
		{"SUPPLYSQL_DB_MAX_RESULT_ROWS": "0"},
		{"SUPPLYSQL_AGENT_MAX_TURNS": "0"},
		{"SUPPLYSQL_AGENT_FEW_SHOT_TOP_K": "-1"},
		{"SUPPLYSQL_AGENT_FEW_SHOT": "maybe"},
		{"SUPPLYSQL_AI_TEMPERATURE": "bad"},
		{"SUPPLYSQL_AI_EMBEDDING_PROVIDER": "word2vec"},
		{"SUPPLYSQL_AUTH_REQUIRED": "not-bool"},
		{"SUPPLYSQL_LOG_LEVEL": "verbose"},
		{"DB_PATH": "/data/"},
	}
	for _, env := range tests {
		_, err := Load("supplysql-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
