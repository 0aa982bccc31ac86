// Package archive exports chart series to Parquet files.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"stockdesk/internal/domain"
)

// PointRecord is the Parquet schema for one chart point.
type PointRecord struct {
	Symbol string  `parquet:"symbol"`
	Date   string  `parquet:"date"`
	Price  float64 `parquet:"price"`
}

var fileNameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_")

// FilePath returns <dir>/<symbol>.parquet with path separators in symbol
// replaced.
func FilePath(dir, symbol string) string {
	return filepath.Join(dir, fileNameReplacer.Replace(symbol)+".parquet")
}

// WriteSeries writes series for symbol to path, replacing any existing file.
func WriteSeries(path, symbol string, series domain.Series) error {
	if symbol == "" {
		return errors.New("archive: empty symbol")
	}
	records := make([]PointRecord, len(series))
	for i, p := range series {
		records[i] = PointRecord{Symbol: symbol, Date: p.Date, Price: p.Price}
	}
	if err := writeParquetFile(path, records); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadSeries reads a file written by WriteSeries and returns its symbol and
// points in file order.
func ReadSeries(path string) (string, domain.Series, error) {
	records, err := readParquetFile[PointRecord](path)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var symbol string
	series := make(domain.Series, len(records))
	for i, r := range records {
		symbol = r.Symbol
		series[i] = domain.ChartPoint{Date: r.Date, Price: r.Price}
	}
	return symbol, series, nil
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
