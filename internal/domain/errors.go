package domain

import (
	"fmt"
	"strings"
)

// SchemaError reports required columns missing from an input table.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// EmptyDatasetError reports that normalization left no usable rows.
type EmptyDatasetError struct {
	Diagnostics Diagnostics
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("no valid event rows remain after cleaning (%d read, %d dropped)",
		e.Diagnostics.TotalRows, e.Diagnostics.Dropped())
}
