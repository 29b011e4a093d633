package datanorm

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ReadCSV reads a CSV stream into a raw Table. Ragged rows and stray quotes
// are kept as-is; blank rows are skipped.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("read header: empty file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := &Table{Header: make([]string, len(header))}
	for i, h := range header {
		t.Header[i] = strings.TrimSpace(h)
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if isBlankRow(row) {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Importer runs the ingest half of the pipeline: read, validate, normalize.
type Importer struct {
	opts       Options
	normalizer *Normalizer
}

// NewImporter creates an Importer for the given options.
func NewImporter(opts Options) *Importer {
	return &Importer{opts: opts, normalizer: NewNormalizer(opts)}
}

// Import reads a CSV upload and returns the cleaned records. It fails with a
// *domain.SchemaError before any row is processed when required columns are
// missing, and with a *domain.EmptyDatasetError when nothing survives.
func (imp *Importer) Import(r io.Reader) (*Result, error) {
	t, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	if err := Validate(t, imp.opts.RequiredColumns, imp.opts.ColumnAliases); err != nil {
		return nil, err
	}
	return imp.normalizer.Normalize(t)
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil || n < 3 {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
