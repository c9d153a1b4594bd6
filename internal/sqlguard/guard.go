// Package sqlguard enforces the read-only statement allowlist applied to
// every SQL string a model asks the tools to run.
package sqlguard

import (
	"errors"
	"fmt"
	"strings"
)

var ErrRejectedStatement = errors.New("statement rejected")

type RejectedStatementError struct {
	Reason string
}

func (e *RejectedStatementError) Error() string {
	return "statement rejected: " + e.Reason
}

func (e *RejectedStatementError) Is(target error) bool {
	return target == ErrRejectedStatement
}

var allowedLeading = map[string]struct{}{
	"SELECT":   {},
	"WITH":     {},
	"VALUES":   {},
	"EXPLAIN":  {},
	"DESCRIBE": {},
	"SHOW":     {},
	"PRAGMA":   {},
}

var readOnlyPragmas = map[string]struct{}{
	"TABLE_INFO":       {},
	"TABLE_XINFO":      {},
	"INDEX_LIST":       {},
	"INDEX_INFO":       {},
	"FOREIGN_KEY_LIST": {},
	"DATABASE_LIST":    {},
	"TABLE_LIST":       {},
}

var forbiddenKeywords = map[string]struct{}{
	"INSERT":   {},
	"UPDATE":   {},
	"DELETE":   {},
	"DROP":     {},
	"ALTER":    {},
	"CREATE":   {},
	"REPLACE":  {},
	"TRUNCATE": {},
	"MERGE":    {},
	"ATTACH":   {},
	"DETACH":   {},
	"VACUUM":   {},
	"GRANT":    {},
	"REVOKE":   {},
	"COPY":     {},
	"INSTALL":  {},
	"LOAD":     {},
	"CALL":     {},
	"INTO":     {},
	"SET":      {},
	"RESET":    {},
	"EXPORT":   {},
	"IMPORT":   {},
}

// forbiddenFunctions read files, attach databases or change session state
// even inside a SELECT.
var forbiddenFunctions = map[string]struct{}{
	"SET_CONFIG":           {},
	"LOAD_EXTENSION":       {},
	"PG_READ_FILE":         {},
	"PG_READ_BINARY_FILE":  {},
	"PG_LS_DIR":            {},
	"PG_TERMINATE_BACKEND": {},
	"PG_CANCEL_BACKEND":    {},
	"LO_IMPORT":            {},
	"LO_EXPORT":            {},
	"DBLINK":               {},
	"DBLINK_EXEC":          {},
	"QUERY":                {},
	"QUERY_TABLE":          {},
	"READ_CSV":             {},
	"READ_CSV_AUTO":        {},
	"READ_PARQUET":         {},
	"READ_JSON":            {},
	"READ_JSON_AUTO":       {},
	"READ_TEXT":            {},
	"READ_BLOB":            {},
	"SQLITE_ATTACH":        {},
	"SQLITE_SCAN":          {},
	"POSTGRES_SCAN":        {},
}

// Check returns nil when sqlText is a single read-only statement and a
// *RejectedStatementError otherwise.
func Check(sqlText string) error {
	tokens, err := tokenize(sqlText)
	if err != nil {
		return reject(err.Error())
	}

	statement, err := singleStatement(tokens)
	if err != nil {
		return err
	}

	leading := strings.ToUpper(statement[0].text)
	if statement[0].kind != tokenWord {
		return reject("statement must start with a keyword")
	}
	if _, ok := allowedLeading[leading]; !ok {
		return reject(fmt.Sprintf("%s statements are not allowed", leading))
	}
	if leading == "PRAGMA" {
		if err := checkPragma(statement[1:]); err != nil {
			return err
		}
	}

	for i, tok := range statement {
		if tok.kind != tokenWord {
			continue
		}
		keyword := strings.ToUpper(tok.text)
		call := i+1 < len(statement) && statement[i+1].text == "("
		if _, forbidden := forbiddenFunctions[keyword]; forbidden && call {
			return reject(fmt.Sprintf("function %s is not allowed", strings.ToLower(keyword)))
		}
		if _, forbidden := forbiddenKeywords[keyword]; !forbidden {
			continue
		}
		// replace(x, y, z) is a scalar function, not REPLACE INTO.
		if keyword == "REPLACE" && call {
			continue
		}
		return reject(fmt.Sprintf("%s is not allowed", keyword))
	}
	return nil
}

// Trim strips surrounding whitespace and trailing semicolons.
func Trim(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func singleStatement(tokens []token) ([]token, error) {
	statements := make([][]token, 0, 1)
	current := make([]token, 0, len(tokens))
	for _, tok := range tokens {
		if tok.kind == tokenSeparator {
			if len(current) > 0 {
				statements = append(statements, current)
				current = make([]token, 0)
			}
			continue
		}
		current = append(current, tok)
	}
	if len(current) > 0 {
		statements = append(statements, current)
	}

	switch len(statements) {
	case 0:
		return nil, reject("empty statement")
	case 1:
		return statements[0], nil
	default:
		return nil, reject("multiple statements are not allowed")
	}
}

func checkPragma(rest []token) error {
	if len(rest) == 0 || rest[0].kind != tokenWord {
		return reject("PRAGMA requires a name")
	}
	name := rest[0].text
	if len(rest) >= 3 && rest[1].text == "." && rest[2].kind == tokenWord {
		name = rest[2].text
	}
	if _, ok := readOnlyPragmas[strings.ToUpper(name)]; !ok {
		return reject(fmt.Sprintf("PRAGMA %s is not allowed", name))
	}
	for _, tok := range rest {
		if tok.kind == tokenSymbol && tok.text == "=" {
			return reject("PRAGMA assignments are not allowed")
		}
	}
	return nil
}

func reject(reason string) error {
	return &RejectedStatementError{Reason: reason}
}
