package supplysqlctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// apiError is a non-2xx response decoded from the server error envelope.
type apiError struct {
	Status    int
	Code      string `json:"error_code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	TraceID   string `json:"trace_id"`
	raw       string
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.raw)
	}
	msg := fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
	if e.Retryable {
		msg += " (retryable)"
	}
	if e.TraceID != "" {
		msg += " [trace " + e.TraceID + "]"
	}
	return msg
}

type askResponse struct {
	Answer   string      `json:"answer"`
	Strategy string      `json:"strategy"`
	Turns    int         `json:"turns"`
	TraceID  string      `json:"trace_id"`
	Trace    []traceTurn `json:"trace"`
}

type traceTurn struct {
	Thought string `json:"thought"`
	Action  *struct {
		Tool  string `json:"tool"`
		Input string `json:"input"`
	} `json:"action"`
	Observation string `json:"observation"`
	Final       bool   `json:"final"`
	FinalAnswer string `json:"final_answer"`
}

type schemaResponse struct {
	Dialect string `json:"dialect"`
	Tables  []struct {
		Name    string `json:"name"`
		Columns []struct {
			Name     string `json:"name"`
			Type     string `json:"type"`
			Nullable bool   `json:"nullable"`
		} `json:"columns"`
	} `json:"tables"`
}

type examplesResponse struct {
	Count    int `json:"count"`
	Examples []struct {
		Question string `json:"question"`
		SQL      string `json:"sql"`
	} `json:"examples"`
}

// do sends the request and returns the raw body of a 2xx response.
func (c *apiClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := strings.TrimSpace(c.apiKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		apiErr := &apiError{Status: resp.StatusCode, raw: strings.TrimSpace(string(raw))}
		_ = json.Unmarshal(raw, apiErr)
		return nil, apiErr
	}
	return raw, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}
