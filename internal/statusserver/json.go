package statusserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes data as the response body with the given status.
// Every endpoint reports live state, so responses are marked uncacheable.
// An encoding failure is only logged; the status line has already been sent.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode status response", "status", status, "error", err)
	}
}

// writeJSONError is the JSON counterpart of http.Error.
func writeJSONError(ctx context.Context, w http.ResponseWriter, message string, status int) {
	writeJSON(ctx, w, ErrorResponse{Error: message}, status)
}
