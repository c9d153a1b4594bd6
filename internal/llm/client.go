// Package llm is a small client for OpenAI-compatible chat completion and
// embedding endpoints.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/supplysql/supplysql/internal/observability"
)

const (
	OpComplete = "chat_completion"
	OpEmbed    = "embedding"
)

type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float64
	Timeout        time.Duration
	Backoff        Backoff
}

type Client struct {
	baseURL        string
	apiKey         string
	model          string
	embeddingModel string
	temperature    float64
	backoff        Backoff
	client         *http.Client
	logger         *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	embeddingModel := strings.TrimSpace(cfg.EmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	backoff := cfg.Backoff
	if backoff.BaseDelay <= 0 {
		backoff = DefaultBackoff()
	}
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:         strings.TrimSpace(cfg.APIKey),
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    cfg.Temperature,
		backoff:        backoff,
		client:         &http.Client{Timeout: timeout},
		logger:         logger,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Complete sends prompt as a single user message and returns the text of the
// first choice. Generation stops before any of the stop sequences.
func (c *Client) Complete(ctx context.Context, prompt string, stop []string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": c.temperature,
	}
	if len(stop) > 0 {
		payload["stop"] = stop
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, OpComplete, "/v1/chat/completions", payload, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", &UpstreamError{Op: OpComplete, StatusCode: http.StatusOK, Message: "empty chat completion choices"}
	}
	return parsed.Choices[0].Message.Content, nil
}

// Embed returns one vector per text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	payload := map[string]any{
		"model": c.embeddingModel,
		"input": texts,
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.post(ctx, OpEmbed, "/v1/embeddings", payload, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) != len(texts) {
		return nil, &UpstreamError{
			Op:         OpEmbed,
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("got %d embeddings for %d inputs", len(parsed.Data), len(texts)),
		}
	}
	sort.SliceStable(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })

	out := make([][]float32, len(parsed.Data))
	for i, item := range parsed.Data {
		out[i] = item.Embedding
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, op, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", op, err)
	}

	return c.backoff.Do(ctx, op, func(ctx context.Context) error {
		start := time.Now()
		err := c.send(ctx, op, path, body, out)
		if err != nil {
			c.logger.WarnContext(ctx, "upstream call failed",
				slog.String("op", op),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)
			return err
		}
		c.logger.DebugContext(ctx, "upstream call",
			slog.String("op", op),
			slog.Duration("duration", time.Since(start)),
		)
		return nil
	})
}

func (c *Client) send(ctx context.Context, op, path string, body []byte, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return &UpstreamError{Op: op, Retryable: ctx.Err() == nil, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Retryable: ctx.Err() == nil, Err: err}
	}
	if resp.StatusCode >= 400 {
		return &UpstreamError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Retryable:  retryableStatus(resp.StatusCode),
			Message:    upstreamMessage(rawRespBody),
		}
	}
	if err := json.Unmarshal(rawRespBody, out); err != nil {
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

// upstreamMessage extracts error.message from an OpenAI-style error body,
// falling back to the raw body.
func upstreamMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	message := strings.TrimSpace(string(body))
	if len(message) > 512 {
		message = message[:512]
	}
	return message
}
