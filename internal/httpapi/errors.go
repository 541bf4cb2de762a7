package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ferg-cod3s/find-anything/internal/observability"
	"github.com/ferg-cod3s/find-anything/internal/query"
	"github.com/ferg-cod3s/find-anything/internal/schema"
)

// errorHandler reports 500 responses through the observability ErrorHandler.
// NewServer sets it on every construction, tests included; with nil metrics
// and Sentry disabled it only logs and marks the active span.
var errorHandler *observability.ErrorHandler

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing left to do but let the client
		// observe a truncated body.
		_ = err
	}
}

// writeError classifies err into the status-code taxonomy and writes
// a short JSON {error} payload. Handlers never interpret DB errors
// themselves beyond what this function does.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, schema.ErrNotFound), errors.Is(err, schema.ErrChunkNotFound):
		status = http.StatusNotFound
	case errors.Is(err, query.ErrQueryTooShort), errors.Is(err, query.ErrQueryInvalid), errors.Is(err, query.ErrUnknownMode):
		status = http.StatusBadRequest
	case errors.Is(err, schema.ErrConstraint), errors.Is(err, schema.ErrArchiveCorrupt), errors.Is(err, schema.ErrSchemaTooNew):
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError && errorHandler != nil {
		errorHandler.HandleError(r.Context(), err, observability.ErrorContext{
			Method:    r.URL.Path,
			ErrorType: "internal",
			ErrorCode: status,
		})
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
