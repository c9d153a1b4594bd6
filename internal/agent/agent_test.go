package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/supplysql/supplysql/internal/sqlguard"
)

func TestRunDispatchesToolThenFinishes(t *testing.T) {
	model := &scriptedModel{responses: []string{
		" I need the count.\nAction: sql_db_query\nAction Input: SELECT COUNT(*) FROM Spedizioni",
		" I now know the final answer\nFinal Answer: There are 100 shipments.",
	}}
	tool := &fakeTool{name: "sql_db_query", output: "[(100,)]"}
	loop := New(model, []Tool{tool}, Config{})

	result, err := loop.Run(context.Background(), "Question: how many shipments?\n")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Answer != "There are 100 shipments." || result.State != StateFinished {
		t.Fatalf("result = %#v", result)
	}
	if result.ModelCalls != 2 || len(result.Turns) != 2 {
		t.Fatalf("calls = %d turns = %d", result.ModelCalls, len(result.Turns))
	}
	if tool.inputs[0] != "SELECT COUNT(*) FROM Spedizioni" {
		t.Fatalf("tool input = %q", tool.inputs[0])
	}
	if !strings.HasSuffix(model.prompts[0], "Question: how many shipments?\nThought:") {
		t.Fatalf("first prompt = %q", model.prompts[0])
	}
	if !strings.Contains(model.prompts[1], "Action: sql_db_query\nAction Input: SELECT COUNT(*) FROM Spedizioni\nObservation: [(100,)]\nThought:") {
		t.Fatalf("second prompt lacks the transcript: %q", model.prompts[1])
	}
	if len(model.stops[0]) != 1 || model.stops[0][0] != "\nObservation:" {
		t.Fatalf("stop = %#v", model.stops[0])
	}
}

func TestRunHasExactlyOneFinalTurnAtTheEnd(t *testing.T) {
	model := &scriptedModel{responses: []string{
		" look\nAction: sql_db_list_tables\nAction Input: ",
		" look again\nAction: sql_db_list_tables\nAction Input: ",
		" done\nFinal Answer: Articoli, Clienti",
		" should never be requested\nFinal Answer: again",
	}}
	loop := New(model, []Tool{&fakeTool{name: "sql_db_list_tables", output: "Articoli, Clienti"}}, Config{})

	result, err := loop.Run(context.Background(), "Question: tables?\n")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	finals := 0
	for i, turn := range result.Turns {
		if turn.Final {
			finals++
			if i != len(result.Turns)-1 {
				t.Fatalf("final turn at %d of %d", i, len(result.Turns))
			}
			if turn.FinalAnswer == "" || turn.Action != nil {
				t.Fatalf("final turn = %#v", turn)
			}
		}
	}
	if finals != 1 || model.calls != 3 {
		t.Fatalf("finals = %d model calls = %d", finals, model.calls)
	}
}

func TestRunStopsAtTurnBudget(t *testing.T) {
	model := &loopingModel{response: " keep looking\nAction: sql_db_list_tables\nAction Input: "}
	loop := New(model, []Tool{&fakeTool{name: "sql_db_list_tables", output: "Clienti"}}, Config{MaxTurns: 15})

	result, err := loop.Run(context.Background(), "Question: ?\n")
	if !errors.Is(err, ErrTurnBudgetExceeded) {
		t.Fatalf("Run() error = %v, want ErrTurnBudgetExceeded", err)
	}
	if model.calls != 15 || result.ModelCalls != 15 {
		t.Fatalf("model calls = %d, want 15", model.calls)
	}
	if result.Answer != "" || result.State != StateFailed {
		t.Fatalf("failed run leaked an answer: %#v", result)
	}
}

func TestRunRetriesMalformedOutputWithinBound(t *testing.T) {
	model := &scriptedModel{responses: []string{
		"I think the answer is 3",
		" Sorry.\nFinal Answer: 3",
	}}
	loop := New(model, nil, Config{MaxMalformedRetries: 2})

	result, err := loop.Run(context.Background(), "Question: ?\n")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Answer != "3" || len(result.Turns) != 2 {
		t.Fatalf("result = %#v", result)
	}
	if !strings.HasPrefix(result.Turns[0].Observation, "Invalid Format") {
		t.Fatalf("first observation = %q", result.Turns[0].Observation)
	}
	if !strings.Contains(model.prompts[1], "Observation: Invalid Format") {
		t.Fatalf("re-prompt lacks format feedback: %q", model.prompts[1])
	}
}

func TestRunFailsAfterRepeatedMalformedOutput(t *testing.T) {
	model := &loopingModel{response: "no idea"}
	loop := New(model, nil, Config{MaxMalformedRetries: 2})

	_, err := loop.Run(context.Background(), "Question: ?\n")
	if !errors.Is(err, ErrMalformedModelOutput) {
		t.Fatalf("Run() error = %v, want ErrMalformedModelOutput", err)
	}
	if model.calls != 3 {
		t.Fatalf("model calls = %d, want 3", model.calls)
	}
}

func TestRunFailsOnUnknownTool(t *testing.T) {
	model := &scriptedModel{responses: []string{" shell time\nAction: python_repl\nAction Input: print(1)"}}
	loop := New(model, []Tool{&fakeTool{name: "sql_db_query"}}, Config{})

	result, err := loop.Run(context.Background(), "Question: ?\n")
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("Run() error = %v, want ErrUnknownTool", err)
	}
	if len(result.Turns) != 1 || result.Turns[0].Action.Tool != "python_repl" {
		t.Fatalf("turns = %#v", result.Turns)
	}
}

func TestRunFeedsToolErrorsBackAsObservations(t *testing.T) {
	model := &scriptedModel{responses: []string{
		" drop it\nAction: sql_db_query\nAction Input: DROP TABLE Clienti",
		" that was rejected\nFinal Answer: I cannot modify the database.",
	}}
	tool := &fakeTool{name: "sql_db_query", err: &sqlguard.RejectedStatementError{Reason: "DROP is not allowed"}}
	loop := New(model, []Tool{tool}, Config{})

	result, err := loop.Run(context.Background(), "Question: ?\n")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Turns[0].Observation != "Error: statement rejected: DROP is not allowed" {
		t.Fatalf("observation = %q", result.Turns[0].Observation)
	}
	if result.Answer != "I cannot modify the database." {
		t.Fatalf("answer = %q", result.Answer)
	}
}

func TestRunPropagatesModelErrors(t *testing.T) {
	upstream := errors.New("status=503")
	loop := New(&scriptedModel{err: upstream}, nil, Config{})

	_, err := loop.Run(context.Background(), "Question: ?\n")
	if !errors.Is(err, upstream) {
		t.Fatalf("Run() error = %v, want wrapped upstream error", err)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	model := &loopingModel{response: " x\nFinal Answer: y"}

	_, err := New(model, nil, Config{}).Run(ctx, "Question: ?\n")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if model.calls != 0 {
		t.Fatalf("model calls = %d, want 0", model.calls)
	}
}

type scriptedModel struct {
	responses []string
	err       error
	prompts   []string
	stops     [][]string
	calls     int
}

func (m *scriptedModel) Complete(_ context.Context, prompt string, stop []string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.stops = append(m.stops, stop)
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", errors.New("script exhausted")
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	return next, nil
}

type loopingModel struct {
	response string
	calls    int
}

func (m *loopingModel) Complete(context.Context, string, []string) (string, error) {
	m.calls++
	return m.response, nil
}

type fakeTool struct {
	name   string
	output string
	err    error
	inputs []string
}

func (f *fakeTool) Name() string { return f.name }

func (f *fakeTool) Run(_ context.Context, input string) (string, error) {
	f.inputs = append(f.inputs, input)
	return f.output, f.err
}
