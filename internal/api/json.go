package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/inkmath/internal/apperr"
	"github.com/starford/inkmath/internal/jiix"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	// JSON is the offending fragment of a rejected recognition document.
	JSON string `json:"json,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps domain errors onto status codes.
func writeError(w http.ResponseWriter, op string, err error) {
	var pe *jiix.ParseError
	switch {
	case errors.As(err, &pe):
		writeJSON(w, http.StatusBadRequest, errResponse{Error: pe.Error(), JSON: pe.Fragment()})
	case errors.Is(err, apperr.ErrEmptyStroke):
		writeJSON(w, http.StatusBadRequest, errorBody("stroke has no points"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrStaleResponse):
		writeJSON(w, http.StatusConflict, errorBody("recognition response superseded"))
	case errors.Is(err, apperr.ErrUpstream):
		slog.Warn("api: recognizer failed", slog.String("op", op), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("recognition service failure"))
	default:
		slog.Error("api: "+op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
