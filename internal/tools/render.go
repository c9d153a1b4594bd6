package tools

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/supplysql/supplysql/internal/database"
)

// renderRows prints a result as a list of tuples, e.g.
// [('Articolo10', 72, 2759.04)]. An empty result prints as [].
func renderRows(result database.Result) string {
	var b strings.Builder
	b.WriteString("[")
	for i, row := range result.Rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, value := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatValue(value))
		}
		if len(row) == 1 {
			b.WriteString(",")
		}
		b.WriteString(")")
	}
	b.WriteString("]")
	if result.Truncated {
		fmt.Fprintf(&b, "\n(result truncated to the first %d rows)", len(result.Rows))
	}
	return b.String()
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "None"
	case string:
		return "'" + strings.ReplaceAll(strings.ReplaceAll(typed, `\`, `\\`), "'", `\'`) + "'"
	case bool:
		if typed {
			return "True"
		}
		return "False"
	case float64:
		return formatFloat(typed, 64)
	case float32:
		return formatFloat(float64(typed), 32)
	default:
		return fmt.Sprint(typed)
	}
}

func formatFloat(value float64, bitSize int) string {
	text := strconv.FormatFloat(value, 'f', -1, bitSize)
	if !strings.ContainsAny(text, ".eEnN") {
		text += ".0"
	}
	return text
}

// renderSchema prints a CREATE TABLE style listing followed by sample rows.
func renderSchema(table database.Table, sample database.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", database.QuoteIdent(table.Name))
	for i, column := range table.Columns {
		fmt.Fprintf(&b, "\t%s %s", database.QuoteIdent(column.Name), column.Type)
		if !column.Nullable {
			b.WriteString(" NOT NULL")
		}
		if i < len(table.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")\n\n/*\n")
	fmt.Fprintf(&b, "%d rows from %s table:\n", len(sample.Rows), table.Name)
	b.WriteString(strings.Join(sample.Columns, "\t"))
	for _, row := range sample.Rows {
		b.WriteString("\n")
		cells := make([]string, len(row))
		for i, value := range row {
			if value == nil {
				cells[i] = "None"
				continue
			}
			cells[i] = fmt.Sprint(value)
		}
		b.WriteString(strings.Join(cells, "\t"))
	}
	b.WriteString("\n*/")
	return b.String()
}
