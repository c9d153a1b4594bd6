package seed

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/supplysql/supplysql/internal/storage"
)

const (
	TableClienti    = "Clienti"
	TableArticoli   = "Articoli"
	TableOrdini     = "Ordini"
	TableSpedizioni = "Spedizioni"
)

type TableFile struct {
	TableName   string
	Data        []byte
	RecordCount int64
}

// EncodeParquet encodes each table of dataset as one parquet file.
func EncodeParquet(dataset Dataset) ([]TableFile, error) {
	files := make([]TableFile, 0, 4)
	encoders := []func() (TableFile, error){
		func() (TableFile, error) { return encodeRows(TableClienti, dataset.Clienti) },
		func() (TableFile, error) { return encodeRows(TableArticoli, dataset.Articoli) },
		func() (TableFile, error) { return encodeRows(TableOrdini, dataset.Ordini) },
		func() (TableFile, error) { return encodeRows(TableSpedizioni, dataset.Spedizioni) },
	}
	for _, encode := range encoders {
		file, err := encode()
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

// WriteParquet writes <dir>/<Table>.parquet for every table and returns the
// written paths.
func WriteParquet(dir string, dataset Dataset) ([]string, error) {
	files, err := EncodeParquet(dataset)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create parquet dir: %w", err)
	}
	paths := make([]string, 0, len(files))
	for _, file := range files {
		path := filepath.Join(dir, file.TableName+storage.ParquetExtension)
		if err := os.WriteFile(path, file.Data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func encodeRows[T any](tableName string, rows []T) (TableFile, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if _, err := writer.Write(rows); err != nil {
		return TableFile{}, fmt.Errorf("write %s parquet rows: %w", tableName, err)
	}
	if err := writer.Close(); err != nil {
		return TableFile{}, fmt.Errorf("close %s parquet writer: %w", tableName, err)
	}
	return TableFile{TableName: tableName, Data: buf.Bytes(), RecordCount: int64(len(rows))}, nil
}
