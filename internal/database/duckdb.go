package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/supplysql/supplysql/internal/config"
	"github.com/supplysql/supplysql/internal/storage"
)

var errNoParquetFiles = errors.New("no parquet files found")

// openDuckDB opens a DuckDB database file read-only. A directory of parquet
// files is first copied into a private database file, one table per file,
// which is then opened read-only the same way.
func openDuckDB(ctx context.Context, cfg config.DatabaseConfig, opts Options) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("duckdb path is required")
	}
	info, err := os.Stat(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("stat duckdb path: %w", err)
	}
	if !info.IsDir() {
		conn, err := sql.Open("duckdb", duckDBReadOnlyDSN(cfg.Path))
		if err != nil {
			return nil, fmt.Errorf("open duckdb: %w", err)
		}
		return New(conn, DialectDuckDB, opts), nil
	}

	tables, err := parquetTables(cfg.Path)
	if err != nil {
		return nil, err
	}
	path, cleanup, err := materializeParquet(ctx, tables)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open("duckdb", duckDBReadOnlyDSN(path))
	if err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db := New(conn, DialectDuckDB, opts)
	db.cleanup = cleanup
	return db, nil
}

// duckDBReadOnlyDSN also turns off file and network access and freezes the
// settings so a query cannot switch them back on.
func duckDBReadOnlyDSN(path string) string {
	return path + "?access_mode=read_only&enable_external_access=false&lock_configuration=true"
}

// materializeParquet loads every parquet file into a table of a new database
// file in a temporary directory. cleanup removes the directory.
func materializeParquet(ctx context.Context, tables map[string]string) (string, func() error, error) {
	dir, err := os.MkdirTemp("", "supplysql-duckdb-")
	if err != nil {
		return "", nil, fmt.Errorf("create duckdb staging dir: %w", err)
	}
	cleanup := func() error { return os.RemoveAll(dir) }

	path := filepath.Join(dir, "supplysql.duckdb")
	writer, err := sql.Open("duckdb", path)
	if err != nil {
		_ = cleanup()
		return "", nil, fmt.Errorf("open duckdb staging file: %w", err)
	}
	if err := createTables(ctx, writer, tables); err != nil {
		_ = writer.Close()
		_ = cleanup()
		return "", nil, err
	}
	if err := writer.Close(); err != nil {
		_ = cleanup()
		return "", nil, fmt.Errorf("close duckdb staging file: %w", err)
	}
	return path, cleanup, nil
}

// parquetTables maps table names to the parquet files backing them, one file
// per table named <Table>.parquet.
func parquetTables(dir string) (map[string]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+storage.ParquetExtension))
	if err != nil {
		return nil, fmt.Errorf("scan parquet dir: %w", err)
	}
	tables := make(map[string]string, len(matches))
	for _, match := range matches {
		tableName, ok := storage.TableNameFromKey(filepath.ToSlash(match))
		if !ok {
			continue
		}
		tables[tableName] = match
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w in %s", errNoParquetFiles, dir)
	}
	return tables, nil
}

func createTables(ctx context.Context, conn *sql.DB, tables map[string]string) error {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tableSQL := fmt.Sprintf(`CREATE TABLE %s AS SELECT * FROM read_parquet(%s)`, QuoteIdent(name), quoteString(tables[name]))
		if _, err := conn.ExecContext(ctx, tableSQL); err != nil {
			return fmt.Errorf("load table %q: %w", name, err)
		}
	}
	return nil
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
