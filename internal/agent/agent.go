// Package agent runs the reasoning loop: the model alternates between
// thinking, calling a tool and reading its observation until it produces a
// final answer or a stop condition is hit.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/supplysql/supplysql/internal/observability"
	"github.com/supplysql/supplysql/internal/sqlguard"
)

type State string

const (
	StateStart        State = "start"
	StateReasoning    State = "reasoning"
	StateToolDispatch State = "tool_dispatch"
	StateObserving    State = "observing"
	StateFinished     State = "finished"
	StateFailed       State = "failed"
)

const (
	DefaultMaxTurns            = 15
	DefaultMaxMalformedRetries = 2
)

var (
	ErrMalformedModelOutput = errors.New("malformed model output")
	ErrUnknownTool          = errors.New("unknown tool")
	ErrTurnBudgetExceeded   = errors.New("turn budget exceeded")
)

// StopSequences keep the model from writing its own observations.
var StopSequences = []string{"\nObservation:"}

type Model interface {
	Complete(ctx context.Context, prompt string, stop []string) (string, error)
}

type Tool interface {
	Name() string
	Run(ctx context.Context, input string) (string, error)
}

type Action struct {
	Tool  string `json:"tool"`
	Input string `json:"input"`
}

// Turn is one model invocation and what came of it.
type Turn struct {
	Thought     string  `json:"thought,omitempty"`
	Action      *Action `json:"action,omitempty"`
	Observation string  `json:"observation,omitempty"`
	Final       bool    `json:"final"`
	FinalAnswer string  `json:"final_answer,omitempty"`
}

type Result struct {
	Answer     string
	Turns      []Turn
	ModelCalls int
	State      State
}

type Config struct {
	MaxTurns            int
	MaxMalformedRetries int
	Logger              *slog.Logger
}

type Loop struct {
	model        Model
	tools        map[string]Tool
	maxTurns     int
	maxMalformed int
	logger       *slog.Logger
}

func New(model Model, tools []Tool, cfg Config) *Loop {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.MaxMalformedRetries < 0 {
		cfg.MaxMalformedRetries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.DiscardLogger()
	}
	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name()] = tool
	}
	return &Loop{
		model:        model,
		tools:        byName,
		maxTurns:     cfg.MaxTurns,
		maxMalformed: cfg.MaxMalformedRetries,
		logger:       cfg.Logger,
	}
}

// run holds the mutable state of a single loop execution.
type run struct {
	prompt      string
	scratchpad  strings.Builder
	turns       []Turn
	calls       int
	malformed   int
	pending     Decision
	observation string
	err         error
}

// Run drives the state machine for prompt. On failure the returned Result
// still carries the turns taken so far, but never an answer.
func (l *Loop) Run(ctx context.Context, prompt string) (Result, error) {
	r := &run{prompt: prompt}
	state := StateStart
	traceID := observability.TraceIDFromContext(ctx)

	for {
		l.logger.DebugContext(ctx, "agent state",
			slog.String("trace_id", traceID),
			slog.String("state", string(state)),
			slog.Int("model_calls", r.calls),
		)

		switch state {
		case StateStart:
			state = StateReasoning
		case StateReasoning:
			state = l.reason(ctx, r)
		case StateToolDispatch:
			state = l.dispatch(ctx, r)
		case StateObserving:
			state = l.observe(r)
		case StateFinished:
			last := r.turns[len(r.turns)-1]
			return Result{Answer: last.FinalAnswer, Turns: r.turns, ModelCalls: r.calls, State: StateFinished}, nil
		default:
			l.logger.WarnContext(ctx, "agent run failed",
				slog.String("trace_id", traceID),
				slog.Int("model_calls", r.calls),
				slog.Any("error", r.err),
			)
			return Result{Turns: r.turns, ModelCalls: r.calls, State: StateFailed}, r.err
		}
	}
}

func (l *Loop) reason(ctx context.Context, r *run) State {
	if err := ctx.Err(); err != nil {
		r.err = err
		return StateFailed
	}
	if r.calls >= l.maxTurns {
		r.err = fmt.Errorf("%w: %d model calls without a final answer", ErrTurnBudgetExceeded, r.calls)
		return StateFailed
	}

	output, err := l.model.Complete(ctx, r.prompt+"Thought:"+r.scratchpad.String(), StopSequences)
	r.calls++
	if err != nil {
		r.err = fmt.Errorf("model call: %w", err)
		return StateFailed
	}

	decision, err := Parse(output)
	if err != nil {
		r.malformed++
		if r.malformed > l.maxMalformed {
			r.err = err
			return StateFailed
		}
		observation := "Invalid Format: " + strings.TrimPrefix(err.Error(), ErrMalformedModelOutput.Error()+": ")
		r.turns = append(r.turns, Turn{Thought: strings.TrimSpace(output), Observation: observation})
		r.scratchpad.WriteString(" " + strings.TrimSpace(cutObservation(output)) + "\nObservation: " + observation + "\nThought:")
		return StateReasoning
	}
	r.malformed = 0

	if decision.Kind == DecisionFinal {
		r.turns = append(r.turns, Turn{Thought: decision.Thought, Final: true, FinalAnswer: decision.FinalAnswer})
		return StateFinished
	}
	r.pending = decision
	return StateToolDispatch
}

func (l *Loop) dispatch(ctx context.Context, r *run) State {
	action := r.pending.Action
	tool, ok := l.tools[action.Tool]
	if !ok {
		r.turns = append(r.turns, Turn{Thought: r.pending.Thought, Action: &action})
		observability.ObserveToolCall(action.Tool, "unknown")
		r.err = fmt.Errorf("%w: %q", ErrUnknownTool, action.Tool)
		return StateFailed
	}

	output, err := tool.Run(ctx, action.Input)
	switch {
	case err == nil:
		observability.ObserveToolCall(action.Tool, "ok")
		r.observation = output
	case ctx.Err() != nil:
		observability.ObserveToolCall(action.Tool, "error")
		r.err = ctx.Err()
		return StateFailed
	case errors.Is(err, sqlguard.ErrRejectedStatement):
		observability.ObserveToolCall(action.Tool, "rejected")
		r.observation = "Error: " + err.Error()
	default:
		observability.ObserveToolCall(action.Tool, "error")
		r.observation = "Error: " + err.Error()
	}
	return StateObserving
}

func (l *Loop) observe(r *run) State {
	action := r.pending.Action
	r.turns = append(r.turns, Turn{Thought: r.pending.Thought, Action: &action, Observation: r.observation})
	fmt.Fprintf(&r.scratchpad, " %s\nAction: %s\nAction Input: %s\nObservation: %s\nThought:",
		r.pending.Thought, action.Tool, action.Input, r.observation)
	r.pending = Decision{}
	r.observation = ""
	return StateReasoning
}
