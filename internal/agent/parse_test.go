package agent

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		kind    DecisionKind
		tool    string
		input   string
		answer  string
		thought string
	}{
		{
			name:    "action",
			text:    " I should look at the tables.\nAction: sql_db_list_tables\nAction Input: ",
			kind:    DecisionAction,
			tool:    "sql_db_list_tables",
			input:   "",
			thought: "I should look at the tables.",
		},
		{
			name:    "multiline input",
			text:    " Count them.\nAction: sql_db_query\nAction Input:\nSELECT COUNT(*)\nFROM Spedizioni\n",
			kind:    DecisionAction,
			tool:    "sql_db_query",
			input:   "SELECT COUNT(*)\nFROM Spedizioni",
			thought: "Count them.",
		},
		{
			name:    "backticked tool and trailing observation",
			text:    "Thought: run it\nAction: `sql_db_query`\nAction Input: SELECT 1\nObservation: [(1,)]",
			kind:    DecisionAction,
			tool:    "sql_db_query",
			input:   "SELECT 1",
			thought: "run it",
		},
		{
			name:    "final",
			text:    " I now know the final answer\nFinal Answer: 60 shipments were delivered on time.",
			kind:    DecisionFinal,
			answer:  "60 shipments were delivered on time.",
			thought: "I now know the final answer",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := Parse(tc.text)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if decision.Kind != tc.kind || decision.Thought != tc.thought {
				t.Fatalf("decision = %#v", decision)
			}
			if decision.Action.Tool != tc.tool || decision.Action.Input != tc.input || decision.FinalAnswer != tc.answer {
				t.Fatalf("decision = %#v", decision)
			}
		})
	}
}

func TestParseRejectsMalformedOutput(t *testing.T) {
	inputs := []string{
		"I am not sure what to do.",
		"Action: sql_db_query\nAction Input: SELECT 1\nFinal Answer: 1",
		"Action: sql_db_query",
		"Final Answer:   ",
		"Action: \nAction Input: SELECT 1",
	}
	for _, input := range inputs {
		if _, err := Parse(input); !errors.Is(err, ErrMalformedModelOutput) {
			t.Fatalf("Parse(%q) error = %v, want ErrMalformedModelOutput", input, err)
		}
	}
}
