// Package assistant answers questions by retrieving examples, assembling a
// prompt and running the agent loop over the database tools.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/supplysql/supplysql/internal/agent"
	"github.com/supplysql/supplysql/internal/database"
	"github.com/supplysql/supplysql/internal/examples"
	"github.com/supplysql/supplysql/internal/llm"
	"github.com/supplysql/supplysql/internal/observability"
	"github.com/supplysql/supplysql/internal/prompt"
	"github.com/supplysql/supplysql/internal/tools"
)

// ExampleSelector picks the catalog examples most similar to a question.
type ExampleSelector interface {
	Select(ctx context.Context, question string, k int) ([]examples.Example, error)
}

type Options struct {
	Mode                string
	FallbackToStatic    bool
	StaticTopK          int
	FewShotTopK         int
	MaxTurns            int
	MaxMalformedRetries int
	Now                 func() time.Time
	Logger              *slog.Logger
}

// Dependencies are shared by every request and must be safe for concurrent
// reads. Selector may be nil when retrieval could not be initialized.
type Dependencies struct {
	Model    agent.Model
	Database tools.Database
	Examples *examples.Store
	Selector ExampleSelector
}

type Answer struct {
	Text       string
	Strategy   string
	ModelCalls int
	Turns      []agent.Turn
}

type Service struct {
	deps     Dependencies
	toolset  *tools.Set
	specs    []prompt.ToolSpec
	strategy prompt.Strategy
	opts     Options
}

func NewService(deps Dependencies, opts Options) (*Service, error) {
	if deps.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if deps.Database == nil {
		return nil, fmt.Errorf("database is required")
	}
	if opts.Mode == "" {
		opts.Mode = prompt.ModeStatic
	}
	strategy, err := prompt.NewStrategy(opts.Mode)
	if err != nil {
		return nil, err
	}
	if opts.StaticTopK <= 0 {
		opts.StaticTopK = 10
	}
	if opts.FewShotTopK <= 0 {
		opts.FewShotTopK = 5
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = agent.DefaultMaxTurns
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = observability.DiscardLogger()
	}

	toolset := tools.NewSet(deps.Database)
	specs := make([]prompt.ToolSpec, 0, len(toolset.Tools()))
	for _, tool := range toolset.Tools() {
		specs = append(specs, prompt.ToolSpec{Name: tool.Name(), Description: tool.Description()})
	}
	return &Service{deps: deps, toolset: toolset, specs: specs, strategy: strategy, opts: opts}, nil
}

func (s *Service) Mode() string {
	return s.strategy.Mode()
}

// Ask runs one question through retrieval, prompt assembly and the agent
// loop. A failed run returns no partial answer.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, prompt.ErrEmptyQuestion
	}
	started := time.Now()
	traceID := observability.TraceIDFromContext(ctx)
	strategy := s.strategy

	var selected []examples.Example
	if strategy.Mode() == prompt.ModeFewShot {
		var err error
		selected, err = s.selectExamples(ctx, question)
		switch {
		case err == nil:
		case errors.Is(err, examples.ErrRetrievalUnavailable) && s.opts.FallbackToStatic:
			s.opts.Logger.WarnContext(ctx, "example retrieval unavailable, using static prompt",
				slog.String("trace_id", traceID),
				slog.Any("error", err),
			)
			observability.IncrementRetrievalFallback()
			strategy = prompt.StaticStrategy{}
		default:
			observability.ObserveAgentRun(strategy.Mode(), outcomeOf(err), 0, time.Since(started))
			return Answer{}, err
		}
	}

	topK := s.opts.StaticTopK
	if strategy.Mode() == prompt.ModeFewShot {
		topK = s.opts.FewShotTopK
	}
	text, err := strategy.Build(question, prompt.Context{
		Dialect:     s.deps.Database.Dialect(),
		CurrentDate: s.opts.Now(),
		TopK:        topK,
		Examples:    selected,
		Tools:       s.specs,
	})
	if err != nil {
		return Answer{}, err
	}

	loop := agent.New(s.deps.Model, s.agentTools(), agent.Config{
		MaxTurns:            s.opts.MaxTurns,
		MaxMalformedRetries: s.opts.MaxMalformedRetries,
		Logger:              s.opts.Logger,
	})
	result, err := loop.Run(ctx, text)
	observability.ObserveAgentRun(strategy.Mode(), outcomeOf(err), result.ModelCalls, time.Since(started))
	if err != nil {
		return Answer{}, err
	}

	s.opts.Logger.InfoContext(ctx, "question answered",
		slog.String("trace_id", traceID),
		slog.String("strategy", strategy.Mode()),
		slog.Int("model_calls", result.ModelCalls),
		slog.Int("examples", len(selected)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return Answer{
		Text:       result.Answer,
		Strategy:   strategy.Mode(),
		ModelCalls: result.ModelCalls,
		Turns:      result.Turns,
	}, nil
}

// Schema describes every table visible to the agent.
func (s *Service) Schema(ctx context.Context) ([]database.Table, error) {
	names, err := s.deps.Database.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	tables := make([]database.Table, 0, len(names))
	for _, name := range names {
		table, err := s.deps.Database.Describe(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (s *Service) Examples() []examples.Example {
	if s.deps.Examples == nil {
		return []examples.Example{}
	}
	return s.deps.Examples.All()
}

func (s *Service) Dialect() string {
	return s.deps.Database.Dialect()
}

func (s *Service) selectExamples(ctx context.Context, question string) ([]examples.Example, error) {
	if s.deps.Selector == nil {
		return nil, fmt.Errorf("%w: selector not initialized", examples.ErrRetrievalUnavailable)
	}
	return s.deps.Selector.Select(ctx, question, s.opts.FewShotTopK)
}

func (s *Service) agentTools() []agent.Tool {
	set := s.toolset.Tools()
	out := make([]agent.Tool, len(set))
	for i, tool := range set {
		out[i] = tool
	}
	return out
}

func outcomeOf(err error) string {
	var upstream *llm.UpstreamError
	switch {
	case err == nil:
		return "answered"
	case errors.Is(err, agent.ErrTurnBudgetExceeded):
		return "turn_budget_exceeded"
	case errors.Is(err, agent.ErrMalformedModelOutput):
		return "malformed_output"
	case errors.Is(err, agent.ErrUnknownTool):
		return "unknown_tool"
	case errors.Is(err, examples.ErrRetrievalUnavailable):
		return "retrieval_unavailable"
	case errors.As(err, &upstream):
		return "upstream_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
