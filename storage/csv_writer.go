package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gustakei/lave/models"
)

// CSVWriter exports a scrape report as CSV: one row per normalized table
// row, plus a placeholder row for every unit that produced none.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created
// automatically. The file starts with a UTF-8 BOM so spreadsheet tools
// pick up accented unit names.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write BOM: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"unit_id", "date", "kg", "unit_total", "error"}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteReport writes every unit's rows to the file.
func (c *CSVWriter) WriteReport(results []*models.UnitResult) error {
	for _, result := range results {
		total := strconv.FormatFloat(result.Total, 'f', 2, 64)

		if len(result.Rows) == 0 {
			if err := c.writer.Write([]string{result.UnitID, "", "", total, result.Error}); err != nil {
				return fmt.Errorf("csv: write placeholder row: %w", err)
			}
			continue
		}

		for _, row := range result.Rows {
			kg := ""
			if row.Kg != nil {
				kg = strconv.FormatFloat(*row.Kg, 'f', 2, 64)
			}
			if err := c.writer.Write([]string{result.UnitID, row.Date, kg, total, result.Error}); err != nil {
				return fmt.Errorf("csv: write row: %w", err)
			}
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
