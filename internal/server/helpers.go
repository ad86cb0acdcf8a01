package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/cwbudde/holefill/internal/store"
)

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// splitJobPath returns the job ID and optional sub-resource of a
// /api/v1/jobs/<id>[/<sub>] path.
func splitJobPath(path string) (id, sub string) {
	rest := strings.Trim(strings.TrimPrefix(path, "/api/v1/jobs/"), "/")
	id, sub, _ = strings.Cut(rest, "/")
	return id, sub
}

// statusForStoreError maps store errors to HTTP status codes.
func statusForStoreError(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// fileExists reports whether path names a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
