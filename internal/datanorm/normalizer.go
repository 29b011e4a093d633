package datanorm

import (
	"sort"

	"github.com/ignite/sendgrid-analytics/internal/domain"
	"github.com/ignite/sendgrid-analytics/internal/pkg/logger"
)

// Normalizer turns a validated raw table into clean EventRecords.
type Normalizer struct {
	opts Options
}

// NewNormalizer creates a Normalizer. Zero-valued option fields fall back to
// the defaults.
func NewNormalizer(opts Options) *Normalizer {
	def := DefaultOptions()
	if len(opts.Vocabulary) == 0 {
		opts.Vocabulary = def.Vocabulary
	}
	if len(opts.RequiredColumns) == 0 {
		opts.RequiredColumns = def.RequiredColumns
	}
	if len(opts.ColumnAliases) == 0 {
		opts.ColumnAliases = def.ColumnAliases
	}
	if len(opts.TimestampLayouts) == 0 {
		opts.TimestampLayouts = def.TimestampLayouts
	}
	return &Normalizer{opts: opts}
}

// maxUnknownEventTypes bounds the distinct names kept in the diagnostics.
const maxUnknownEventTypes = 20

const (
	blankEventType = "(blank)"
	otherEventType = "(other)"
)

func tallyUnknownEvent(diag *domain.Diagnostics, name string) {
	if diag.UnknownEventTypes == nil {
		diag.UnknownEventTypes = make(map[string]int)
	}
	if name == "" {
		name = blankEventType
	}
	if _, ok := diag.UnknownEventTypes[name]; !ok && len(diag.UnknownEventTypes) >= maxUnknownEventTypes {
		name = otherEventType
	}
	diag.UnknownEventTypes[name]++
}

type dedupKey struct {
	messageID string
	event     domain.EventType
}

// Normalize parses timestamps, coerces event types, collapses duplicate
// (message_id, event) pairs keeping the earliest timestamp, and fills
// missing subject/recipient values. Row-level problems are tallied in the
// result's Diagnostics; only a table with no surviving rows is an error.
// The input table is not modified.
func (n *Normalizer) Normalize(t *Table) (*Result, error) {
	mapping := MapColumns(t.Header, n.opts.ColumnAliases)
	diag := domain.Diagnostics{TotalRows: len(t.Rows)}

	records := make([]domain.EventRecord, 0, len(t.Rows))
	seen := make(map[dedupKey]int, len(t.Rows))

	for _, row := range t.Rows {
		et, ok := domain.ParseEventType(mapping.Value(row, FieldEvent), n.opts.Vocabulary)
		if !ok {
			diag.UnknownEvent++
			tallyUnknownEvent(&diag, string(et))
			continue
		}

		messageID := mapping.Value(row, FieldMessageID)
		if messageID == "" {
			diag.MissingMessageID++
			continue
		}

		ts, err := parseTimestamp(mapping.Value(row, FieldProcessed), n.opts.TimestampLayouts)
		if err != nil {
			diag.MalformedTimestamp++
			continue
		}

		rec := domain.EventRecord{
			Event:       et,
			MessageID:   messageID,
			ProcessedAt: ts,
			Subject:     normalizeText(mapping.Value(row, FieldSubject)),
			Recipient:   normalizeRecipient(mapping.Value(row, FieldRecipient)),
		}

		key := dedupKey{messageID: messageID, event: et}
		if idx, dup := seen[key]; dup {
			diag.Duplicates++
			if rec.ProcessedAt.Before(records[idx].ProcessedAt) {
				records[idx] = mergeDuplicate(rec, records[idx])
			} else {
				records[idx] = mergeDuplicate(records[idx], rec)
			}
			continue
		}
		seen[key] = len(records)
		records = append(records, rec)
	}

	if n.opts.RequireProcessed {
		records = n.dropOrphans(records, &diag)
	}
	if n.opts.InheritSubject {
		inheritSubjects(records)
	}
	for i := range records {
		if records[i].Subject == "" {
			records[i].Subject = domain.Unspecified
		}
		if records[i].Recipient == "" {
			records[i].Recipient = domain.Unspecified
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.ProcessedAt.Equal(b.ProcessedAt) {
			return a.ProcessedAt.Before(b.ProcessedAt)
		}
		if a.MessageID != b.MessageID {
			return a.MessageID < b.MessageID
		}
		return a.Event < b.Event
	})

	diag.Retained = len(records)
	logger.Info("normalized event log",
		"total_rows", diag.TotalRows,
		"retained", diag.Retained,
		"dropped", diag.Dropped(),
		"duplicates", diag.Duplicates)

	if len(records) == 0 {
		return nil, &domain.EmptyDatasetError{Diagnostics: diag}
	}
	return &Result{Records: records, Diagnostics: diag}, nil
}

// mergeDuplicate keeps keep's timestamp and fills its blank optional fields
// from other.
func mergeDuplicate(keep, other domain.EventRecord) domain.EventRecord {
	if keep.Subject == "" {
		keep.Subject = other.Subject
	}
	if keep.Recipient == "" {
		keep.Recipient = other.Recipient
	}
	return keep
}

func (n *Normalizer) dropOrphans(records []domain.EventRecord, diag *domain.Diagnostics) []domain.EventRecord {
	processed := make(map[string]bool)
	for _, r := range records {
		if r.Event == domain.EventProcessed {
			processed[r.MessageID] = true
		}
	}
	kept := records[:0]
	for _, r := range records {
		if !processed[r.MessageID] {
			diag.Orphaned++
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// inheritSubjects copies the processed event's subject onto events of the
// same message that arrived without one.
func inheritSubjects(records []domain.EventRecord) {
	subjects := make(map[string]string)
	for _, r := range records {
		if r.Event == domain.EventProcessed && r.Subject != "" {
			subjects[r.MessageID] = r.Subject
		}
	}
	for i := range records {
		if records[i].Subject == "" {
			records[i].Subject = subjects[records[i].MessageID]
		}
	}
}
