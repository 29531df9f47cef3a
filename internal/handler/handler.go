// Package handler holds the JSON endpoints over the reactive containers,
// the pending change queue and export files.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/larder/internal/apperr"
	"github.com/dukerupert/larder/internal/backup"
	"github.com/dukerupert/larder/internal/offline"
)

const maxBodyBytes = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		verr  *apperr.ValidationError
		nferr *apperr.NotFoundError
		toErr *apperr.TimeoutError
		tserr *apperr.TransientStorageError
	)
	switch {
	case errors.As(err, &verr), errors.Is(err, backup.ErrPassphraseRequired):
		return http.StatusBadRequest
	case errors.As(err, &nferr):
		return http.StatusNotFound
	case errors.Is(err, offline.ErrOffline):
		return http.StatusConflict
	case errors.As(err, &toErr):
		return http.StatusGatewayTimeout
	case errors.As(err, &tserr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op, "error", err)
	}
	writeMessage(w, status, apperr.Message(err))
}

// decode reads a JSON body into v, reporting a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
