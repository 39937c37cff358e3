package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bilancio/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeDomainError maps domain sentinels to HTTP statuses. Anything
// unrecognized is a 500 with a generic body.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrHabitNotFound):
		writeError(w, http.StatusNotFound, "habit not found")
	case errors.Is(err, core.ErrNotScheduled):
		writeError(w, http.StatusBadRequest, "habit is not scheduled on this date")
	case errors.Is(err, core.ErrLabelExists):
		writeError(w, http.StatusConflict, "label already exists")
	case errors.Is(err, core.ErrCategoryNotFound):
		writeError(w, http.StatusBadRequest, "unknown category")
	case errors.Is(err, core.ErrLabelNotFound):
		writeError(w, http.StatusBadRequest, "unknown label")
	case errors.Is(err, core.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid date range")
	case errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyLabel),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidInterval),
		errors.Is(err, core.ErrInvalidUnit),
		errors.Is(err, core.ErrEndBeforeStart):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Unhandled error", "error", err, "url", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
