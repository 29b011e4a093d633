package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/ignite/sendgrid-analytics/internal/domain"
	"github.com/ignite/sendgrid-analytics/internal/pkg/httputil"
	"github.com/ignite/sendgrid-analytics/internal/storage"
)

// Error codes specific to the analytics API.
const (
	codeSchemaError     = "schema_error"
	codeEmptyDataset    = "empty_dataset"
	codeSessionNotFound = "session_not_found"
	codeUnknownReport   = "unknown_report"
)

// respondSafeError logs the full internal error and sends a generic message.
// Upload contents and file paths never reach the client through a 5xx.
func respondSafeError(w http.ResponseWriter, code int, internalErr error, publicMsg string) {
	if internalErr != nil {
		log.Printf("ERROR [%d]: %s: %v", code, publicMsg, internalErr)
	}
	httputil.Fail(w, code, httputil.CodeInternal, publicMsg, nil)
}

func respondNotFound(w http.ResponseWriter, message string) {
	httputil.NotFound(w, httputil.CodeNotFound, message)
}

// respondImportError maps a pipeline failure to its client response. Schema
// and empty-dataset failures are about the uploaded file, so their details
// are safe to return.
func respondImportError(w http.ResponseWriter, err error) {
	var schemaErr *domain.SchemaError
	var emptyErr *domain.EmptyDatasetError

	switch {
	case errors.As(err, &schemaErr):
		httputil.Fail(w, http.StatusUnprocessableEntity, codeSchemaError, schemaErr.Error(),
			map[string]any{"missing": schemaErr.Missing})
	case errors.As(err, &emptyErr):
		httputil.Fail(w, http.StatusUnprocessableEntity, codeEmptyDataset, emptyErr.Error(),
			map[string]any{
				"diagnostics": emptyErr.Diagnostics,
				"warnings":    nonNil(emptyErr.Diagnostics.Warnings()),
			})
	default:
		httputil.BadRequest(w, "could not read CSV: "+err.Error())
	}
}

// respondSessionError handles lookups against the session store.
func respondSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrSessionNotFound) {
		httputil.NotFound(w, codeSessionNotFound, "session not found or expired")
		return
	}
	respondSafeError(w, http.StatusInternalServerError, err, "An internal error occurred")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
