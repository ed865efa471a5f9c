// Package api provides HTTP handlers for OpsCopilot endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/BTreeMap/OpsCopilot/internal/flow"
	"github.com/BTreeMap/OpsCopilot/internal/models"
)

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// session resolves the {id} route variable, writing a 404 when it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*flow.Controller, bool) {
	id := mux.Vars(r)["id"]
	c, ok := s.sessions.Get(id)
	if !ok {
		slog.Warn("Server: unknown session", "sessionID", id, "path", r.URL.Path)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return nil, false
	}
	return c, true
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"sessions":  s.sessions.Count(),
	}))
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.Create()
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Session created", c.Snapshot()))
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.sessions.IDs()))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(c.Snapshot()))
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.sessions.Delete(id) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session closed", nil))
}

func (s *Server) submitMessageHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	var req models.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.submitMessageHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeErrorResponse(w, "submitMessageHandler", err)
		return
	}

	accepted, err := c.Submit(r.Context(), req.Text)
	if err != nil {
		writeErrorResponse(w, "submitMessageHandler", err)
		return
	}
	if !accepted {
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Blank message ignored", c.Snapshot()))
		return
	}
	slog.Debug("Server.submitMessageHandler: message accepted", "sessionID", c.ID())
	writeJSONResponse(w, http.StatusAccepted, models.Accepted(c.Snapshot()))
}

func (s *Server) actionHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	var req models.ActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.actionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := c.Act(r.Context(), req); err != nil {
		writeErrorResponse(w, "actionHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, models.Accepted(c.Snapshot()))
}

func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := c.CancelFlow(r.Context()); err != nil {
		writeErrorResponse(w, "cancelHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Task cancelled", c.Snapshot()))
}

func (s *Server) activityHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(c.Activity()))
}

func (s *Server) transcriptHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	messages, err := s.store.ListMessages(c.ID())
	if err != nil {
		writeErrorResponse(w, "transcriptHandler", err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(messages))
}

func (s *Server) timersHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	timers := c.PendingTimers()
	if timers == nil {
		timers = []models.TimerInfo{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(timers))
}

func (s *Server) getThemeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(models.ThemeRequest{Appearance: s.theme.Appearance()}))
}

func (s *Server) toggleThemeHandler(w http.ResponseWriter, r *http.Request) {
	next, err := s.theme.Toggle(r.Context())
	if err != nil {
		writeErrorResponse(w, "toggleThemeHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(models.ThemeRequest{Appearance: next}))
}

func (s *Server) setThemeHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ThemeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.setThemeHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeErrorResponse(w, "setThemeHandler", err)
		return
	}
	if err := s.theme.Set(r.Context(), req.Appearance); err != nil {
		writeErrorResponse(w, "setThemeHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(req))
}
