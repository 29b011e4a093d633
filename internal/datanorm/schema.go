package datanorm

import (
	"github.com/ignite/sendgrid-analytics/internal/domain"
)

// Validate checks that every required column is present in the table's
// header. Row values are not inspected.
func Validate(t *Table, required []CanonicalField, aliases map[string]CanonicalField) error {
	mapping := MapColumns(t.Header, aliases)

	var missing []string
	for _, f := range required {
		if !mapping.Has(f) {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return &domain.SchemaError{Missing: missing}
	}
	return nil
}
