package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/supplysql/supplysql/internal/config"
)

// Open connects to the configured backend and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	opts := Options{MaxResultRows: cfg.MaxResultRows, SampleRows: cfg.SampleRows}

	var (
		db      *DB
		err     error
		dialect string
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		dialect = DialectSQLite
		db, err = openSQLite(cfg, opts)
	case config.DriverDuckDB:
		dialect = DialectDuckDB
		db, err = openDuckDB(ctx, cfg, opts)
	case config.DriverPostgres:
		dialect = DialectPostgreSQL
		db, err = openPostgres(cfg, opts)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	applyPool(db.db, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	return db, nil
}

func openSQLite(cfg config.DatabaseConfig, opts Options) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("stat sqlite database: %w", err)
	}
	conn, err := sql.Open("sqlite", sqliteReadOnlyDSN(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return New(conn, DialectSQLite, opts), nil
}

func sqliteReadOnlyDSN(path string) string {
	return "file:" + filepath.ToSlash(path) + "?mode=ro&_pragma=query_only(1)"
}

func openPostgres(cfg config.DatabaseConfig, opts Options) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	connConfig, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if connConfig.RuntimeParams == nil {
		connConfig.RuntimeParams = map[string]string{}
	}
	connConfig.RuntimeParams["default_transaction_read_only"] = "on"
	return New(stdlib.OpenDB(*connConfig), DialectPostgreSQL, opts), nil
}

func applyPool(db *sql.DB, cfg config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}
