package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

const (
	SQLiteFileName   = "supply_chain.db"
	ParquetExtension = ".parquet"
)

// BuildSQLiteAssetKey returns the object key of the single-file SQLite
// dataset stored under prefix.
func BuildSQLiteAssetKey(prefix string) (string, error) {
	if err := validatePrefix(prefix); err != nil {
		return "", err
	}
	return path.Join(prefix, SQLiteFileName), nil
}

// BuildTableFileKey returns the object key of one table's parquet file.
func BuildTableFileKey(prefix, tableName string) (string, error) {
	if err := validatePrefix(prefix); err != nil {
		return "", err
	}
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	return path.Join(prefix, tableName+ParquetExtension), nil
}

// TableNameFromKey extracts the table name from a parquet object key.
func TableNameFromKey(key string) (string, bool) {
	base := path.Base(key)
	if !strings.HasSuffix(base, ParquetExtension) {
		return "", false
	}
	name := strings.TrimSuffix(base, ParquetExtension)
	if validatePathComponent(name, "table name") != nil {
		return "", false
	}
	return name, true
}

func validatePrefix(prefix string) error {
	if strings.TrimSpace(prefix) == "" {
		return fmt.Errorf("dataset prefix is required")
	}
	for _, component := range strings.Split(strings.Trim(prefix, "/"), "/") {
		if err := validatePathComponent(component, "prefix component"); err != nil {
			return err
		}
	}
	return nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
