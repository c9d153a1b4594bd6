// Package database is the read-only schema and query provider the tools are
// bound to. It hides the SQLite, DuckDB and PostgreSQL differences behind a
// single DB type.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/supplysql/supplysql/internal/sqlguard"
)

const (
	DialectSQLite     = "sqlite"
	DialectDuckDB     = "duckdb"
	DialectPostgreSQL = "postgresql"
)

const (
	defaultMaxResultRows = 200
	defaultSampleRows    = 3
)

var (
	ErrDatabase     = errors.New("database error")
	ErrUnknownTable = errors.New("unknown table")
)

// QueryError wraps a failure reported by the underlying engine. It matches
// ErrDatabase with errors.Is.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func (e *QueryError) Is(target error) bool {
	return target == ErrDatabase
}

type Column struct {
	Name     string
	Type     string
	Nullable bool
}

type Table struct {
	Name    string
	Columns []Column
}

type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

type Options struct {
	MaxResultRows int
	SampleRows    int
}

type DB struct {
	db         *sql.DB
	dialect    string
	maxRows    int
	sampleRows int
	cleanup    func() error
}

// New wraps an already opened pool. dialect selects the catalog queries.
func New(db *sql.DB, dialect string, opts Options) *DB {
	if opts.MaxResultRows <= 0 {
		opts.MaxResultRows = defaultMaxResultRows
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = defaultSampleRows
	}
	return &DB{
		db:         db,
		dialect:    dialect,
		maxRows:    opts.MaxResultRows,
		sampleRows: opts.SampleRows,
	}
}

func (d *DB) Dialect() string {
	return d.dialect
}

func (d *DB) MaxResultRows() int {
	return d.maxRows
}

func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return &QueryError{Op: "ping", Err: err}
	}
	return nil
}

func (d *DB) Close() error {
	err := d.db.Close()
	if d.cleanup != nil {
		if cleanupErr := d.cleanup(); err == nil {
			err = cleanupErr
		}
	}
	return err
}

// ListTables returns the user-visible tables and views, sorted by name.
func (d *DB) ListTables(ctx context.Context) ([]string, error) {
	var query string
	switch d.dialect {
	case DialectSQLite:
		query = `
SELECT name
FROM sqlite_master
WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
ORDER BY name`
	case DialectDuckDB:
		query = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'main'
ORDER BY table_name`
	default:
		query = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = current_schema()
ORDER BY table_name`
	}

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &QueryError{Op: "list tables", Err: err}
	}
	defer func() { _ = rows.Close() }()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &QueryError{Op: "scan table name", Err: err}
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Op: "iterate tables", Err: err}
	}
	return tables, nil
}

// Describe returns the columns of tableName. The name is matched against
// ListTables case-insensitively so the canonical spelling is used.
func (d *DB) Describe(ctx context.Context, tableName string) (Table, error) {
	canonical, err := d.resolveTable(ctx, tableName)
	if err != nil {
		return Table{}, err
	}

	var columns []Column
	if d.dialect == DialectSQLite {
		columns, err = d.describeSQLite(ctx, canonical)
	} else {
		columns, err = d.describeInformationSchema(ctx, canonical)
	}
	if err != nil {
		return Table{}, err
	}
	return Table{Name: canonical, Columns: columns}, nil
}

// Sample returns the first rows of tableName, at most the configured sample
// size.
func (d *DB) Sample(ctx context.Context, tableName string) (Result, error) {
	canonical, err := d.resolveTable(ctx, tableName)
	if err != nil {
		return Result{}, err
	}
	return d.run(ctx, "sample rows", fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, QuoteIdent(canonical), d.sampleRows), d.sampleRows)
}

// Query executes sqlText and keeps at most MaxResultRows rows. Only a
// single read-only statement is accepted.
func (d *DB) Query(ctx context.Context, sqlText string) (Result, error) {
	sqlText = sqlguard.Trim(sqlText)
	if sqlText == "" {
		return Result{}, &QueryError{Op: "query", Err: fmt.Errorf("sql is required")}
	}
	if err := sqlguard.Check(sqlText); err != nil {
		return Result{}, err
	}
	return d.run(ctx, "query", sqlText, d.maxRows)
}

// Explain asks the engine to plan sqlText without running it.
func (d *DB) Explain(ctx context.Context, sqlText string) error {
	sqlText = sqlguard.Trim(sqlText)
	if sqlText == "" {
		return &QueryError{Op: "explain", Err: fmt.Errorf("sql is required")}
	}
	if err := sqlguard.Check(sqlText); err != nil {
		return err
	}
	if !explainable(sqlText) {
		return nil
	}
	stmt, err := d.db.PrepareContext(ctx, "EXPLAIN "+sqlText)
	if err != nil {
		return &QueryError{Op: "explain", Err: err}
	}
	defer func() { _ = stmt.Close() }()
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return &QueryError{Op: "explain", Err: err}
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return &QueryError{Op: "explain", Err: err}
	}
	return nil
}

// run prepares sqlText before executing it so the PostgreSQL and DuckDB
// drivers refuse text holding more than one statement.
func (d *DB) run(ctx context.Context, op, sqlText string, limit int) (Result, error) {
	start := time.Now()
	stmt, err := d.db.PrepareContext(ctx, sqlText)
	if err != nil {
		return Result{}, &QueryError{Op: op, Err: err}
	}
	defer func() { _ = stmt.Close() }()
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return Result{}, &QueryError{Op: op, Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, &QueryError{Op: op + " columns", Err: err}
	}

	result := Result{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		if len(result.Rows) >= limit {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, &QueryError{Op: "scan row", Err: err}
		}
		result.Rows = append(result.Rows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, &QueryError{Op: "iterate rows", Err: err}
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (d *DB) resolveTable(ctx context.Context, tableName string) (string, error) {
	wanted := strings.Trim(strings.TrimSpace(tableName), `"`+"`")
	if wanted == "" {
		return "", fmt.Errorf("%w: empty table name", ErrUnknownTable)
	}
	tables, err := d.ListTables(ctx)
	if err != nil {
		return "", err
	}
	for _, table := range tables {
		if strings.EqualFold(table, wanted) {
			return table, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTable, wanted)
}

func (d *DB) describeSQLite(ctx context.Context, tableName string) ([]Column, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, QuoteIdent(tableName)))
	if err != nil {
		return nil, &QueryError{Op: "describe table", Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var (
			cid          int64
			name         string
			columnType   sql.NullString
			notNull      int64
			defaultValue any
			primaryKey   int64
		)
		if err := rows.Scan(&cid, &name, &columnType, &notNull, &defaultValue, &primaryKey); err != nil {
			return nil, &QueryError{Op: "scan column", Err: err}
		}
		columns = append(columns, Column{Name: name, Type: columnType.String, Nullable: notNull == 0})
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Op: "iterate columns", Err: err}
	}
	return columns, nil
}

func (d *DB) describeInformationSchema(ctx context.Context, tableName string) ([]Column, error) {
	schema := "current_schema()"
	if d.dialect == DialectDuckDB {
		schema = "'main'"
	}
	rows, err := d.db.QueryContext(ctx, `
SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = `+schema+` AND table_name = $1
ORDER BY ordinal_position`, tableName)
	if err != nil {
		return nil, &QueryError{Op: "describe table", Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, &QueryError{Op: "scan column", Err: err}
		}
		columns = append(columns, Column{Name: name, Type: dataType, Nullable: strings.EqualFold(nullable, "YES")})
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Op: "iterate columns", Err: err}
	}
	return columns, nil
}

func QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func explainable(sqlText string) bool {
	fields := strings.Fields(sqlText)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "VALUES":
		return true
	default:
		return false
	}
}
