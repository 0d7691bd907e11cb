package storage

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"naver-estate/models"
)

// utf8BOM lets spreadsheet tools detect the encoding of Korean text.
const utf8BOM = "\ufeff"

// CSVWriter writes a crawl table to a BOM-prefixed UTF-8 CSV file. The file
// is only touched when Write is called.
type CSVWriter struct {
	path string
}

// NewCSVWriter returns a writer for path. No file is created yet.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Path returns the output location.
func (c *CSVWriter) Path() string { return c.path }

// Write creates (or truncates) the file, writes the header row and one row
// per table row. Intermediate directories are created automatically.
func (c *CSVWriter) Write(table *models.Table) error {
	if table == nil {
		return fmt.Errorf("csv: nothing to write")
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("csv: create output dir: %w", err)
		}
	}

	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", c.path, err)
	}

	bw := bufio.NewWriter(f)
	if _, err := bw.WriteString(utf8BOM); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: write bom: %w", err)
	}

	w := csv.NewWriter(bw)
	if err := w.Write(table.Columns); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, row := range table.Rows {
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	return f.Close()
}
