// Package api provides HTTP handlers for PathPilot endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/PathPilotApp/PathPilot/internal/flow"
	"github.com/PathPilotApp/PathPilot/internal/models"
	"github.com/google/uuid"
)

// createSessionResponse is the body returned by session creation.
type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// turnRequest is the body accepted by the turn endpoint.
type turnRequest struct {
	Message string `json:"message"`
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sessionID := uuid.NewString()
	slog.Debug("Server.createSessionHandler: session created", "sessionID", sessionID)
	writeJSONResponse(w, http.StatusCreated, models.Success(createSessionResponse{SessionID: sessionID}))
}

func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sessionID := r.PathValue("id")
	slog.Debug("Server.turnHandler: processing turn request", "sessionID", sessionID)

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.turnHandler: failed to decode JSON", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Message == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("message is required"))
		return
	}

	result, err := s.orchestrator.ProcessTurn(r.Context(), sessionID, req.Message)
	if err != nil {
		if errors.Is(err, flow.ErrNoDefaultTree) {
			slog.Error("Server.turnHandler: session bootstrap failed", "error", err, "sessionID", sessionID)
			writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("conversation program unavailable"))
			return
		}
		slog.Warn("Server.turnHandler: invalid turn request", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sessionID := r.PathValue("id")

	state, err := s.orchestrator.GetState(r.Context(), sessionID)
	if err != nil {
		slog.Error("Server.getSessionHandler: store read failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to load session state"))
		return
	}
	if state == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("session not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.orchestrator.Stats()))
}
