package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/supplysql/supplysql/internal/agent"
	"github.com/supplysql/supplysql/internal/asset"
	"github.com/supplysql/supplysql/internal/config"
	"github.com/supplysql/supplysql/internal/database"
	"github.com/supplysql/supplysql/internal/examples"
	"github.com/supplysql/supplysql/internal/llm"
	"github.com/supplysql/supplysql/internal/observability"
	"github.com/supplysql/supplysql/internal/storage"
)

var ErrNotInitialized = errors.New("assistant not initialized")

// Provider builds the shared Service exactly once per process. Every caller
// blocks on the same initialization and observes the same outcome.
type Provider struct {
	cfg    config.Config
	logger *slog.Logger
	store  storage.ObjectStore

	once    sync.Once
	done    chan struct{}
	service *Service
	closer  io.Closer
	err     error
}

// NewProvider prepares initialization. store may be nil when no asset has
// to be fetched.
func NewProvider(cfg config.Config, logger *slog.Logger, store storage.ObjectStore) *Provider {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Provider{cfg: cfg, logger: logger, store: store, done: make(chan struct{})}
}

// Service returns the shared service, initializing it on first use. The
// initialization outlives ctx cancellation of the first caller.
func (p *Provider) Service(ctx context.Context) (*Service, error) {
	p.once.Do(func() {
		defer close(p.done)
		p.service, p.closer, p.err = p.build(context.WithoutCancel(ctx))
		if p.err != nil {
			p.logger.ErrorContext(ctx, "assistant initialization failed", slog.Any("error", p.err))
		}
	})
	return p.service, p.err
}

// Ready reports whether initialization finished and the database answers.
func (p *Provider) Ready(ctx context.Context) error {
	select {
	case <-p.done:
	default:
		return ErrNotInitialized
	}
	if p.err != nil {
		return p.err
	}
	if pinger, ok := p.closer.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func (p *Provider) Close() error {
	select {
	case <-p.done:
	default:
		return nil
	}
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

func (p *Provider) build(ctx context.Context) (*Service, io.Closer, error) {
	if err := p.ensureAsset(ctx); err != nil {
		return nil, nil, err
	}

	db, err := database.Open(ctx, p.cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	service, err := p.buildService(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	p.logger.InfoContext(ctx, "assistant initialized",
		slog.String("dialect", db.Dialect()),
		slog.String("strategy", service.Mode()),
		slog.Int("examples", len(service.Examples())),
	)
	return service, db, nil
}

func (p *Provider) buildService(ctx context.Context, db *database.DB) (*Service, error) {
	store, err := p.loadExamples()
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(llm.Config{
		BaseURL:        p.cfg.AI.BaseURL,
		APIKey:         p.cfg.AI.APIKey,
		Model:          p.cfg.AI.Model,
		EmbeddingModel: p.cfg.AI.EmbeddingModel,
		Temperature:    p.cfg.AI.Temperature,
		Timeout:        p.cfg.AI.Timeout,
		Backoff: llm.Backoff{
			BaseDelay:  p.cfg.AI.RetryBaseDelay,
			MaxDelay:   p.cfg.AI.RetryMaxDelay,
			MaxRetries: p.cfg.AI.MaxRetries,
		},
	}, p.logger)
	if err != nil {
		return nil, fmt.Errorf("model client: %w", err)
	}
	p.logger.InfoContext(ctx, "model client configured",
		slog.String("model", client.Model()),
		slog.String("base_url", p.cfg.AI.BaseURL),
	)

	var selector ExampleSelector
	if p.cfg.Agent.FewShot {
		selector, err = p.buildSelector(ctx, store, client)
		if err != nil {
			return nil, err
		}
	}

	return NewService(Dependencies{
		Model:    client,
		Database: db,
		Examples: store,
		Selector: selector,
	}, Options{
		Mode:                p.cfg.Agent.Strategy(),
		FallbackToStatic:    p.cfg.Agent.FallbackToStatic,
		StaticTopK:          p.cfg.Agent.StaticTopK,
		FewShotTopK:         p.cfg.Agent.FewShotTopK,
		MaxTurns:            p.cfg.Agent.MaxTurns,
		MaxMalformedRetries: p.cfg.Agent.MaxMalformedRetries,
		Logger:              p.logger,
	})
}

// buildSelector embeds the catalog. When the embedding provider is down and
// fallback is enabled the service starts without a selector and every
// few-shot request degrades to the static prompt.
func (p *Provider) buildSelector(ctx context.Context, store *examples.Store, client *llm.Client) (ExampleSelector, error) {
	var embedder examples.Embedder = examples.LexicalEmbedder{}
	if p.cfg.AI.EmbeddingProvider == config.EmbeddingProviderOpenAI {
		embedder = client
	}
	selector, err := examples.NewSelector(ctx, store, embedder)
	if err == nil {
		return selector, nil
	}
	if errors.Is(err, examples.ErrRetrievalUnavailable) && p.cfg.Agent.FallbackToStatic {
		p.logger.WarnContext(ctx, "example index unavailable, few-shot requests will use the static prompt",
			slog.Any("error", err),
		)
		return nil, nil
	}
	return nil, fmt.Errorf("build example index: %w", err)
}

func (p *Provider) loadExamples() (*examples.Store, error) {
	if path := strings.TrimSpace(p.cfg.Agent.ExamplesFile); path != "" {
		store, err := examples.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load examples: %w", err)
		}
		return store, nil
	}
	return examples.Default()
}

func (p *Provider) ensureAsset(ctx context.Context) error {
	key := strings.TrimSpace(p.cfg.Asset.Key)
	if key == "" {
		return nil
	}
	if p.cfg.Asset.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Asset.FetchTimeout)
		defer cancel()
	}

	fetcher := asset.NewFetcher(p.store, p.logger)
	switch p.cfg.Database.Driver {
	case config.DriverSQLite:
		_, err := fetcher.EnsureFile(ctx, key, p.cfg.Database.Path)
		return err
	case config.DriverDuckDB:
		if strings.EqualFold(filepath.Ext(p.cfg.Database.Path), ".duckdb") {
			_, err := fetcher.EnsureFile(ctx, key, p.cfg.Database.Path)
			return err
		}
		_, err := fetcher.EnsureDir(ctx, key, p.cfg.Database.Path)
		return err
	default:
		return nil
	}
}

var _ agent.Model = (*llm.Client)(nil)
