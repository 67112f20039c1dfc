package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/oprema/internal/engine"
)

// kindMessages are the user-facing texts for engine failures.
var kindMessages = map[engine.Kind]string{
	engine.KindNotFound:         "not found",
	engine.KindUnavailable:      "item is not available",
	engine.KindAlreadyProcessed: "request has already been processed",
	engine.KindInvalidState:     "assignment is not in a state that allows this",
	engine.KindAlreadyRequested: "return has already been requested",
	engine.KindForbidden:        "not allowed",
	engine.KindTransient:        "temporarily unavailable, please retry",
}

// writeEngineError renders an engine failure. An already requested return
// is informational and answered with 200.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var e *engine.Error
	if !errors.As(err, &e) {
		slog.ErrorContext(r.Context(), "unexpected error", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	msg := kindMessages[e.Kind]
	if e.Kind == engine.KindNotFound && e.Subject != "" {
		msg = e.Subject + " not found"
	}

	switch e.Kind {
	case engine.KindNotFound:
		jsonError(w, http.StatusNotFound, msg)
	case engine.KindUnavailable, engine.KindAlreadyProcessed, engine.KindInvalidState:
		jsonError(w, http.StatusConflict, msg)
	case engine.KindAlreadyRequested:
		jsonResponse(w, http.StatusOK, map[string]string{"info": msg})
	case engine.KindForbidden:
		jsonError(w, http.StatusForbidden, msg)
	case engine.KindInvalidInput:
		jsonError(w, http.StatusBadRequest, e.Err.Error())
	case engine.KindTransient:
		slog.ErrorContext(r.Context(), "storage failure", "op", e.Op, "error", e.Err)
		w.Header().Set("Retry-After", "1")
		jsonError(w, http.StatusServiceUnavailable, msg)
	default:
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

// storageError answers a failed read outside the engine.
func storageError(w http.ResponseWriter, r *http.Request, what string, err error) {
	slog.ErrorContext(r.Context(), "failed to "+what, "error", err)
	w.Header().Set("Retry-After", "1")
	jsonError(w, http.StatusServiceUnavailable, "failed to "+what)
}
