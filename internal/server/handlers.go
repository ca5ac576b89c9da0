package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/harun/tanya/pkg/errorx"
	"github.com/harun/tanya/pkg/memory"
	"github.com/harun/tanya/pkg/runtime"
)

type startSessionRequest struct {
	Customer memory.CustomerInfo `json:"customer"`
}

type startSessionResponse struct {
	SessionID string `json:"session_id"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type traceResponse struct {
	SessionID string `json:"session_id"`
	Format    string `json:"format"`
	Trace     string `json:"trace"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.runtime.StartSession(req.Customer)
	if err != nil {
		s.writeRuntimeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, startSessionResponse{SessionID: id})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := s.runtime.HandleMessage(r.Context(), sessionID, req.Message)
	if err != nil {
		s.writeRuntimeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.runtime.Session(r.PathValue("id"))
	if err != nil {
		s.writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if err := s.runtime.ClearSession(r.PathValue("id")); err != nil {
		s.writeRuntimeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "text"
	}

	rendered, err := s.runtime.Trace(sessionID, format)
	if err != nil {
		s.writeRuntimeError(w, err)
		return
	}

	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(rendered))
		return
	}
	writeJSON(w, http.StatusOK, traceResponse{
		SessionID: sessionID,
		Format:    format,
		Trace:     rendered,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runtime.SessionSummary(r.PathValue("id"))
	if err != nil {
		s.writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) writeRuntimeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errorx.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, runtime.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
