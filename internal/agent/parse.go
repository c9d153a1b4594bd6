package agent

import (
	"fmt"
	"regexp"
	"strings"
)

type DecisionKind int

const (
	DecisionAction DecisionKind = iota + 1
	DecisionFinal
)

// Decision is the parsed outcome of one model completion: either an action
// to dispatch or a final answer, never both.
type Decision struct {
	Kind        DecisionKind
	Thought     string
	Action      Action
	FinalAnswer string
}

const finalAnswerMarker = "Final Answer:"

var (
	actionPattern = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionMarker  = regexp.MustCompile(`Action\s*\d*\s*:`)
)

// Parse reads a completion in the Thought/Action/Action Input/Final Answer
// format. Missing or conflicting markers yield ErrMalformedModelOutput.
func Parse(text string) (Decision, error) {
	text = cutObservation(text)
	finalAt := strings.Index(text, finalAnswerMarker)
	actionMatch := actionPattern.FindStringSubmatchIndex(text)

	switch {
	case finalAt >= 0 && actionMatch != nil:
		return Decision{}, fmt.Errorf("%w: both an action and a final answer", ErrMalformedModelOutput)
	case finalAt >= 0:
		answer := strings.TrimSpace(text[finalAt+len(finalAnswerMarker):])
		if answer == "" {
			return Decision{}, fmt.Errorf("%w: empty final answer", ErrMalformedModelOutput)
		}
		return Decision{
			Kind:        DecisionFinal,
			Thought:     cleanThought(text[:finalAt]),
			FinalAnswer: answer,
		}, nil
	case actionMatch != nil:
		tool := strings.Trim(strings.TrimSpace(text[actionMatch[2]:actionMatch[3]]), "`*[]")
		input := strings.TrimSpace(text[actionMatch[4]:actionMatch[5]])
		if tool == "" {
			return Decision{}, fmt.Errorf("%w: empty action", ErrMalformedModelOutput)
		}
		return Decision{
			Kind:    DecisionAction,
			Thought: cleanThought(text[:actionMatch[0]]),
			Action:  Action{Tool: tool, Input: input},
		}, nil
	case actionMarker.MatchString(text):
		return Decision{}, fmt.Errorf("%w: missing 'Action Input:' after 'Action:'", ErrMalformedModelOutput)
	default:
		return Decision{}, fmt.Errorf("%w: missing 'Action:' after 'Thought:'", ErrMalformedModelOutput)
	}
}

// cutObservation drops anything the model wrote from an Observation marker
// on; observations only ever come from tools.
func cutObservation(text string) string {
	if at := strings.Index(text, "\nObservation:"); at >= 0 {
		return text[:at]
	}
	return text
}

func cleanThought(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "Thought:")
	return strings.TrimSpace(text)
}
