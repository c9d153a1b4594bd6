// Package supplysqlctl implements the command-line client for the
// question-answering API.
package supplysqlctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Stdout      io.Writer
	Stderr      io.Writer
	Interactive *bool
}

// requestError marks failures that happened after argument parsing, so Run
// can tell them apart from usage errors.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }

func (e *requestError) Unwrap() error { return e.err }

// Run executes the command line and returns the process exit code: 0 on
// success, 1 when the request failed, 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	root := NewRootCommand(defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	_, _ = fmt.Fprintln(stderr, "error:", err)
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return 1
	}
	_, _ = fmt.Fprintln(stderr)
	_, _ = fmt.Fprint(stderr, root.UsageString())
	return 2
}

func NewRootCommand(defaults Options) *cobra.Command {
	var (
		baseURL string
		apiKey  string
		timeout time.Duration
		rawJSON bool
	)

	root := &cobra.Command{
		Use:           "supplysqlctl",
		Short:         "Ask questions about the supply-chain database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "API base URL")
	root.PersistentFlags().StringVar(&apiKey, "api-key", defaults.APIKey, "API key for authenticated requests")
	root.PersistentFlags().DurationVar(&timeout, "timeout", durationOr(defaults.Timeout, 3*time.Minute), "HTTP timeout (e.g. 90s)")
	root.PersistentFlags().BoolVar(&rawJSON, "json", false, "print the raw JSON response")

	newClient := func() *apiClient {
		client := defaults.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: timeout}
		}
		return &apiClient{baseURL: baseURL, apiKey: apiKey, http: client}
	}
	newRenderer := func(cmd *cobra.Command) *renderer {
		return newRendererFor(cmd.OutOrStdout(), cmd.ErrOrStderr(), defaults.Interactive)
	}

	var withTrace bool
	ask := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question in natural language",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return errors.New("question is required")
			}
			out := newRenderer(cmd)
			stop := out.spin("Thinking")
			raw, err := newClient().do(cmd.Context(), http.MethodPost, "/v1/ask", map[string]any{
				"question":      question,
				"include_trace": withTrace,
			})
			stop()
			if err != nil {
				return &requestError{err: err}
			}
			if rawJSON {
				return out.json(raw)
			}
			var response askResponse
			if err := json.Unmarshal(raw, &response); err != nil {
				return &requestError{err: fmt.Errorf("decode answer: %w", err)}
			}
			out.answer(response, withTrace)
			return nil
		},
	}
	ask.Flags().BoolVar(&withTrace, "trace", false, "show the reasoning steps taken")

	schema := &cobra.Command{
		Use:   "schema",
		Short: "Show the tables and columns available to the agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := newClient().do(cmd.Context(), http.MethodGet, "/v1/schema", nil)
			if err != nil {
				return &requestError{err: err}
			}
			out := newRenderer(cmd)
			if rawJSON {
				return out.json(raw)
			}
			var response schemaResponse
			if err := json.Unmarshal(raw, &response); err != nil {
				return &requestError{err: fmt.Errorf("decode schema: %w", err)}
			}
			return out.schema(response)
		},
	}

	examples := &cobra.Command{
		Use:   "examples",
		Short: "List the example questions used for few-shot prompting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := newClient().do(cmd.Context(), http.MethodGet, "/v1/examples", nil)
			if err != nil {
				return &requestError{err: err}
			}
			out := newRenderer(cmd)
			if rawJSON {
				return out.json(raw)
			}
			var response examplesResponse
			if err := json.Unmarshal(raw, &response); err != nil {
				return &requestError{err: fmt.Errorf("decode examples: %w", err)}
			}
			out.examples(response)
			return nil
		},
	}

	statusCommand := func(use, path string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: "GET " + path,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				raw, err := newClient().do(cmd.Context(), http.MethodGet, path, nil)
				if err != nil {
					return &requestError{err: err}
				}
				return newRenderer(cmd).json(raw)
			},
		}
	}

	root.AddCommand(ask, schema, examples, statusCommand("health", "/v1/health"), statusCommand("ready", "/v1/ready"))
	return root
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
