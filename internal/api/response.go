// Package api provides HTTP response utilities for OpsCopilot.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/OpsCopilot/internal/flow"
	"github.com/BTreeMap/OpsCopilot/internal/models"
)

// Pre-marshaled fallback responses to avoid runtime JSON encoding failures
var (
	fallbackErrorResponse []byte
)

// init validates that our fallback responses can be marshaled
func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response to the http.ResponseWriter with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal first so an encoding failure can still change the status code.
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// clientErrors are validation failures whose message is safe to return.
var clientErrors = []error{
	models.ErrMessageTooLong,
	models.ErrMissingAction,
	models.ErrUnknownAction,
	models.ErrMissingOrderID,
	models.ErrChangeRequestTooLong,
	models.ErrInvalidAppearance,
}

// statusForError maps controller and validation errors to an HTTP status and
// a client-facing message. Unrecognized errors become a generic 500.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, flow.ErrBusy):
		return http.StatusConflict, "Assistant is busy with another request"
	case errors.Is(err, flow.ErrNoActiveFlow):
		return http.StatusConflict, "No task in progress"
	case errors.Is(err, flow.ErrActionUnavailable):
		return http.StatusConflict, "Action not available right now"
	case errors.Is(err, flow.ErrUnknownOrder):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, flow.ErrClosed):
		return http.StatusGone, "Session is closed"
	}
	for _, ce := range clientErrors {
		if errors.Is(err, ce) {
			return http.StatusBadRequest, ce.Error()
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

// writeErrorResponse writes err using statusForError.
func writeErrorResponse(w http.ResponseWriter, handler string, err error) {
	status, msg := statusForError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Server."+handler+": request failed", "error", err)
	} else {
		slog.Warn("Server."+handler+": request rejected", "error", err, "status", status)
	}
	writeJSONResponse(w, status, models.Error(msg))
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.notFoundHandler: no route", "method", r.Method, "path", r.URL.Path)
	writeJSONResponse(w, http.StatusNotFound, models.Error("Resource not found"))
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.methodNotAllowedHandler: method mismatch", "method", r.Method, "path", r.URL.Path)
	writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
}
