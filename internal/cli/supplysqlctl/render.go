package supplysqlctl

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

// renderer prints results as boxes and tables on a terminal and as plain
// text everywhere else.
type renderer struct {
	stdout      io.Writer
	stderr      io.Writer
	interactive bool
}

func newRendererFor(stdout, stderr io.Writer, interactive *bool) *renderer {
	r := &renderer{stdout: stdout, stderr: stderr, interactive: isTerminal(stdout)}
	if interactive != nil {
		r.interactive = *interactive
	}
	return r
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// spin shows a spinner on stderr while a request is in flight and returns
// the function that removes it.
func (r *renderer) spin(text string) func() {
	if !r.interactive {
		return func() {}
	}
	spinner, err := pterm.DefaultSpinner.WithWriter(r.stderr).WithRemoveWhenDone(true).Start(text)
	if err != nil {
		return func() {}
	}
	return func() { _ = spinner.Stop() }
}

func (r *renderer) json(raw []byte) error {
	if pretty, ok := prettyJSON(raw); ok {
		_, err := fmt.Fprintln(r.stdout, pretty)
		return err
	}
	if len(raw) > 0 {
		_, err := fmt.Fprintln(r.stdout, string(raw))
		return err
	}
	return nil
}

func (r *renderer) answer(response askResponse, withTrace bool) {
	if withTrace {
		r.trace(response.Trace)
	}
	if r.interactive {
		title := pterm.NewStyle(pterm.FgGreen, pterm.Bold).Sprint("Answer")
		_, _ = fmt.Fprintln(r.stdout, pterm.DefaultBox.WithTitle(title).WithPadding(1).Sprint(response.Answer))
		_, _ = fmt.Fprintln(r.stdout, pterm.Gray(fmt.Sprintf("strategy=%s turns=%d trace=%s", response.Strategy, response.Turns, response.TraceID)))
		return
	}
	_, _ = fmt.Fprintln(r.stdout, response.Answer)
}

func (r *renderer) trace(turns []traceTurn) {
	for i, turn := range turns {
		_, _ = fmt.Fprintf(r.stdout, "[%d] Thought: %s\n", i+1, turn.Thought)
		if turn.Action != nil {
			_, _ = fmt.Fprintf(r.stdout, "    Action: %s\n", turn.Action.Tool)
			if input := strings.TrimSpace(turn.Action.Input); input != "" {
				_, _ = fmt.Fprintf(r.stdout, "    Action Input: %s\n", indent(input))
			}
		}
		if turn.Observation != "" {
			_, _ = fmt.Fprintf(r.stdout, "    Observation: %s\n", indent(turn.Observation))
		}
		if turn.Final {
			_, _ = fmt.Fprintf(r.stdout, "    Final Answer: %s\n", turn.FinalAnswer)
		}
	}
	_, _ = fmt.Fprintln(r.stdout)
}

func (r *renderer) schema(response schemaResponse) error {
	if !r.interactive {
		for _, table := range response.Tables {
			_, _ = fmt.Fprintln(r.stdout, table.Name)
			for _, column := range table.Columns {
				nullable := ""
				if column.Nullable {
					nullable = " NULL"
				}
				_, _ = fmt.Fprintf(r.stdout, "  %s %s%s\n", column.Name, column.Type, nullable)
			}
		}
		return nil
	}

	data := pterm.TableData{{"Table", "Column", "Type", "Nullable"}}
	for _, table := range response.Tables {
		for _, column := range table.Columns {
			data = append(data, []string{table.Name, column.Name, column.Type, fmt.Sprint(column.Nullable)})
		}
	}
	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(r.stdout, "dialect: %s\n%s\n", response.Dialect, rendered)
	return nil
}

func (r *renderer) examples(response examplesResponse) {
	for i, example := range response.Examples {
		question := example.Question
		if r.interactive {
			question = pterm.Bold.Sprint(question)
		}
		_, _ = fmt.Fprintf(r.stdout, "%d. %s\n   %s\n", i+1, question, indent(strings.TrimSpace(example.SQL)))
	}
}

func indent(text string) string {
	return strings.ReplaceAll(text, "\n", "\n    ")
}
