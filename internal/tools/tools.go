// Package tools implements the fixed set of database tools the agent may
// call. Every SQL string passes the read-only guard before it reaches the
// database.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/supplysql/supplysql/internal/database"
	"github.com/supplysql/supplysql/internal/sqlguard"
)

const (
	NameListTables   = "sql_db_list_tables"
	NameSchema       = "sql_db_schema"
	NameQuery        = "sql_db_query"
	NameQueryChecker = "sql_db_query_checker"
)

// Database is the read-only surface the tools need.
type Database interface {
	Dialect() string
	ListTables(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, tableName string) (database.Table, error)
	Sample(ctx context.Context, tableName string) (database.Result, error)
	Query(ctx context.Context, sqlText string) (database.Result, error)
	Explain(ctx context.Context, sqlText string) error
}

type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, input string) (string, error)
}

// Set is the immutable tool set bound to one database.
type Set struct {
	tools  []Tool
	byName map[string]Tool
}

func NewSet(db Database) *Set {
	tools := []Tool{
		&queryTool{db: db},
		&schemaTool{db: db},
		&listTablesTool{db: db},
		&queryCheckerTool{db: db},
	}
	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name()] = tool
	}
	return &Set{tools: tools, byName: byName}
}

func (s *Set) Tools() []Tool {
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

func (s *Set) Lookup(name string) (Tool, bool) {
	tool, ok := s.byName[name]
	return tool, ok
}

type listTablesTool struct {
	db Database
}

func (t *listTablesTool) Name() string { return NameListTables }

func (t *listTablesTool) Description() string {
	return "Input is an empty string, output is a comma-separated list of tables in the database."
}

func (t *listTablesTool) Run(ctx context.Context, _ string) (string, error) {
	tables, err := t.db.ListTables(ctx)
	if err != nil {
		return "", err
	}
	return strings.Join(tables, ", "), nil
}

type schemaTool struct {
	db Database
}

func (t *schemaTool) Name() string { return NameSchema }

func (t *schemaTool) Description() string {
	return "Input is a comma-separated list of tables, output is the schema and sample rows for those tables. " +
		"Be sure that the tables actually exist by calling " + NameListTables + " first! Example Input: Ordini, Clienti"
}

func (t *schemaTool) Run(ctx context.Context, input string) (string, error) {
	names := splitTableNames(input)
	if len(names) == 0 {
		return "", fmt.Errorf("at least one table name is required")
	}
	blocks := make([]string, 0, len(names))
	for _, name := range names {
		table, err := t.db.Describe(ctx, name)
		if err != nil {
			return "", err
		}
		sample, err := t.db.Sample(ctx, table.Name)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, renderSchema(table, sample))
	}
	return strings.Join(blocks, "\n\n"), nil
}

type queryTool struct {
	db Database
}

func (t *queryTool) Name() string { return NameQuery }

func (t *queryTool) Description() string {
	return "Input is a detailed and correct read-only SQL query, output is the result from the database. " +
		"If the query is not correct or not read-only, an error message is returned; rewrite the query, check it and try again. " +
		"If you get an unknown column error, use " + NameSchema + " to look up the correct table fields. " +
		"Copy double-quoted column names exactly: SQLite reads an unknown double-quoted name as a string."
}

func (t *queryTool) Run(ctx context.Context, input string) (string, error) {
	sqlText := cleanSQL(input)
	if err := sqlguard.Check(sqlText); err != nil {
		return "", err
	}
	result, err := t.db.Query(ctx, sqlText)
	if err != nil {
		return "", err
	}
	return renderRows(result), nil
}

type queryCheckerTool struct {
	db Database
}

func (t *queryCheckerTool) Name() string { return NameQueryChecker }

func (t *queryCheckerTool) Description() string {
	return "Use this tool to double check that a query is valid and read-only before executing it. " +
		"Always use this tool before executing a query with " + NameQuery + "!"
}

func (t *queryCheckerTool) Run(ctx context.Context, input string) (string, error) {
	sqlText := cleanSQL(input)
	if err := sqlguard.Check(sqlText); err != nil {
		return "", err
	}
	if err := t.db.Explain(ctx, sqlText); err != nil {
		return "", err
	}
	return sqlguard.Trim(sqlText), nil
}

func splitTableNames(input string) []string {
	parts := strings.Split(input, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.Trim(strings.TrimSpace(part), "\"'`")
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// cleanSQL strips surrounding whitespace and a markdown code fence.
func cleanSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
