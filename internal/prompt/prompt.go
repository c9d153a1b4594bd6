// Package prompt assembles the instruction text sent to the model.
package prompt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/supplysql/supplysql/internal/examples"
)

const (
	ModeStatic  = "static"
	ModeFewShot = "few_shot"
)

var ErrEmptyQuestion = errors.New("question is required")

type ToolSpec struct {
	Name        string
	Description string
}

// Context carries everything interpolated into the instruction section.
// It is built per question and never shared.
type Context struct {
	Dialect     string
	CurrentDate time.Time
	TopK        int
	Examples    []examples.Example
	Tools       []ToolSpec
}

// Strategy turns a question and its context into the full prompt text.
type Strategy interface {
	Mode() string
	Build(question string, ctx Context) (string, error)
}

func NewStrategy(mode string) (Strategy, error) {
	switch mode {
	case ModeStatic:
		return StaticStrategy{}, nil
	case ModeFewShot:
		return FewShotStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown prompt mode %q", mode)
	}
}

// Build assembles the prompt for question using the strategy named by mode.
func Build(question string, ctx Context, mode string) (string, error) {
	strategy, err := NewStrategy(mode)
	if err != nil {
		return "", err
	}
	return strategy.Build(question, ctx)
}

type StaticStrategy struct{}

func (StaticStrategy) Mode() string { return ModeStatic }

func (StaticStrategy) Build(question string, ctx Context) (string, error) {
	if err := validate(question, ctx); err != nil {
		return "", err
	}
	sections := []string{
		interpolate(staticPreamble, ctx),
		renderTools(ctx.Tools),
		interpolate(formatInstructions, ctx),
		staticWorkedExample,
	}
	return appendQuestion(sections, "Question: ", question), nil
}

type FewShotStrategy struct{}

func (FewShotStrategy) Mode() string { return ModeFewShot }

func (FewShotStrategy) Build(question string, ctx Context) (string, error) {
	if err := validate(question, ctx); err != nil {
		return "", err
	}
	sections := []string{
		interpolate(fewShotPreamble, ctx),
		renderTools(ctx.Tools),
		interpolate(formatInstructions, ctx),
	}
	if len(ctx.Examples) > 0 {
		sections = append(sections, renderExamples(ctx.Examples))
	}
	return appendQuestion(sections, "Domanda: ", question), nil
}

func validate(question string, ctx Context) error {
	if strings.TrimSpace(question) == "" {
		return ErrEmptyQuestion
	}
	if ctx.TopK <= 0 {
		return fmt.Errorf("top_k must be > 0")
	}
	if strings.TrimSpace(ctx.Dialect) == "" {
		return fmt.Errorf("dialect is required")
	}
	return nil
}

// interpolate fills the placeholders of an instruction template. Only
// trusted values go through here; the question never does.
func interpolate(template string, ctx Context) string {
	names := make([]string, 0, len(ctx.Tools))
	for _, tool := range ctx.Tools {
		names = append(names, tool.Name)
	}
	date := ctx.CurrentDate
	if date.IsZero() {
		date = time.Now()
	}
	replacer := strings.NewReplacer(
		"{dialect}", ctx.Dialect,
		"{top_k}", strconv.Itoa(ctx.TopK),
		"{date}", date.Format(time.DateOnly),
		"{tool_names}", strings.Join(names, ", "),
	)
	return replacer.Replace(template)
}

func renderTools(tools []ToolSpec) string {
	var b strings.Builder
	b.WriteString(toolsHeader)
	for _, tool := range tools {
		b.WriteString("\n")
		b.WriteString(tool.Name)
		b.WriteString(": ")
		b.WriteString(tool.Description)
	}
	return b.String()
}

func renderExamples(selected []examples.Example) string {
	var b strings.Builder
	b.WriteString(fewShotExamplesHeader)
	for _, example := range selected {
		b.WriteString("\n\nDomanda: ")
		b.WriteString(example.Question)
		b.WriteString("\nSQL: ")
		b.WriteString(example.SQL)
	}
	return b.String()
}

func appendQuestion(sections []string, label, question string) string {
	return strings.Join(sections, "\n\n") + "\n\n" + label + question + "\n"
}
