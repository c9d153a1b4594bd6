package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/supplysql/supplysql/internal/sqlguard"
)

const sqliteListTablesQuery = `
SELECT name
FROM sqlite_master
WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
ORDER BY name`

func TestListTablesSQLite(t *testing.T) {
	conn, mock := newSQLMock(t)
	db := New(conn, DialectSQLite, Options{})

	mock.ExpectQuery(regexp.QuoteMeta(sqliteListTablesQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Articoli").AddRow("Clienti"))

	tables, err := db.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 2 || tables[0] != "Articoli" || tables[1] != "Clienti" {
		t.Fatalf("tables = %v", tables)
	}
	assertSQLMock(t, mock)
}

func TestDescribeResolvesCanonicalName(t *testing.T) {
	conn, mock := newSQLMock(t)
	db := New(conn, DialectSQLite, Options{})

	mock.ExpectQuery(regexp.QuoteMeta(sqliteListTablesQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Clienti"))
	mock.ExpectQuery(regexp.QuoteMeta(`PRAGMA table_info("Clienti")`)).
		WillReturnRows(sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(int64(0), "Codice Cliente", "TEXT", int64(1), nil, int64(1)).
			AddRow(int64(1), "Zona", "TEXT", int64(0), nil, int64(0)))

	table, err := db.Describe(context.Background(), "clienti")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if table.Name != "Clienti" || len(table.Columns) != 2 {
		t.Fatalf("table = %#v", table)
	}
	if table.Columns[0].Nullable || !table.Columns[1].Nullable {
		t.Fatalf("unexpected nullability: %#v", table.Columns)
	}
	assertSQLMock(t, mock)
}

func TestDescribeUnknownTable(t *testing.T) {
	conn, mock := newSQLMock(t)
	db := New(conn, DialectSQLite, Options{})

	mock.ExpectQuery(regexp.QuoteMeta(sqliteListTablesQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Clienti"))

	_, err := db.Describe(context.Background(), "Fornitori")
	if !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("Describe() error = %v, want ErrUnknownTable", err)
	}
	assertSQLMock(t, mock)
}

func TestDescribePostgresUsesInformationSchema(t *testing.T) {
	conn, mock := newSQLMock(t)
	db := New(conn, DialectPostgreSQL, Options{})

	mock.ExpectQuery(regexp.QuoteMeta(`FROM information_schema.tables`)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("Ordini"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM information_schema.columns`)).
		WithArgs("Ordini").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).
			AddRow("Codice Ordine", "text", "NO").
			AddRow("Valore", "numeric", "YES"))

	table, err := db.Describe(context.Background(), "Ordini")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if len(table.Columns) != 2 || table.Columns[1].Type != "numeric" || !table.Columns[1].Nullable {
		t.Fatalf("columns = %#v", table.Columns)
	}
	assertSQLMock(t, mock)
}

func TestQueryCapsRows(t *testing.T) {
	conn, mock := newSQLMock(t)
	db := New(conn, DialectSQLite, Options{MaxResultRows: 2})

	mock.ExpectPrepare(regexp.QuoteMeta(`SELECT "Codice Ordine" FROM Ordini`)).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"Codice Ordine"}).AddRow("O1").AddRow("O2").AddRow("O3"))

	result, err := db.Query(context.Background(), `SELECT "Codice Ordine" FROM Ordini;`)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(result.Rows) != 2 || !result.Truncated {
		t.Fatalf("rows = %d truncated = %v", len(result.Rows), result.Truncated)
	}
	assertSQLMock(t, mock)
}

func TestQueryWrapsEngineErrors(t *testing.T) {
	conn, mock := newSQLMock(t)
	db := New(conn, DialectSQLite, Options{})

	mock.ExpectPrepare(regexp.QuoteMeta(`SELECT nope FROM Ordini`)).
		WillReturnError(errors.New("no such column: nope"))

	_, err := db.Query(context.Background(), `SELECT nope FROM Ordini`)
	if !errors.Is(err, ErrDatabase) {
		t.Fatalf("Query() error = %v, want ErrDatabase", err)
	}
	var queryErr *QueryError
	if !errors.As(err, &queryErr) || queryErr.Op != "query" {
		t.Fatalf("expected QueryError, got %#v", err)
	}
	assertSQLMock(t, mock)
}

func TestQueryNormalizesValues(t *testing.T) {
	conn, mock := newSQLMock(t)
	db := New(conn, DialectDuckDB, Options{})
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectPrepare(regexp.QuoteMeta(`SELECT * FROM Spedizioni`)).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c"}).AddRow([]byte("S1"), day, nil))

	result, err := db.Query(context.Background(), `SELECT * FROM Spedizioni`)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	row := result.Rows[0]
	if row[0] != "S1" || row[1] != "2024-03-05" || row[2] != nil {
		t.Fatalf("row = %#v", row)
	}
	assertSQLMock(t, mock)
}

func TestExplainSkipsIntrospection(t *testing.T) {
	conn, mock := newSQLMock(t)
	db := New(conn, DialectSQLite, Options{})

	mock.ExpectPrepare(regexp.QuoteMeta(`EXPLAIN SELECT 1`)).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"addr", "opcode"}).AddRow(0, "Init"))

	if err := db.Explain(context.Background(), "SELECT 1;"); err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if err := db.Explain(context.Background(), "PRAGMA table_info(Clienti)"); err != nil {
		t.Fatalf("Explain() pragma error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestQueryRejectsModifyingTextBeforeTheDriver(t *testing.T) {
	conn, mock := newSQLMock(t)
	db := New(conn, DialectDuckDB, Options{})

	for _, sqlText := range []string{
		`SELECT E'\''; DELETE FROM Clienti; --'`,
		`SELECT * INTO Backup FROM Clienti`,
		`SELECT 1; DROP TABLE Clienti`,
	} {
		if _, err := db.Query(context.Background(), sqlText); !errors.Is(err, sqlguard.ErrRejectedStatement) {
			t.Fatalf("Query(%q) error = %v, want ErrRejectedStatement", sqlText, err)
		}
		if err := db.Explain(context.Background(), sqlText); !errors.Is(err, sqlguard.ErrRejectedStatement) {
			t.Fatalf("Explain(%q) error = %v, want ErrRejectedStatement", sqlText, err)
		}
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
