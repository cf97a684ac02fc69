package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maiahq/maia/pkg/apikey"
	"github.com/maiahq/maia/pkg/session"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	APIKey  string `json:"api_key"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, errorResponse{Error: msg, Detail: detail})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required", "")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "default"
	}

	response, err := s.orchestrator.Turn(r.Context(), r.Header.Get("X-API-Key"), sessionID, req.Message)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Chat turn failed")
		writeError(w, http.StatusBadGateway, "agent request failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: response, SessionID: sessionID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	key, err := s.authority.Login(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, apikey.ErrNoAccounts):
			s.metrics.LoginsTotal.WithLabelValues("unavailable").Inc()
			writeError(w, http.StatusServiceUnavailable, "login is not available", "no accounts configured")
		case errors.Is(err, apikey.ErrLoginRejected):
			s.metrics.LoginsTotal.WithLabelValues("rejected").Inc()
			writeError(w, http.StatusUnauthorized, "invalid username or password", "")
		default:
			writeError(w, http.StatusInternalServerError, "login failed", "")
		}
		return
	}

	s.metrics.LoginsTotal.WithLabelValues("ok").Inc()
	s.metrics.KeysActive.Set(float64(s.authority.Count()))
	s.logger.Info().Str("username", req.Username).Msg("Login succeeded")
	writeJSON(w, http.StatusOK, loginResponse{APIKey: key, Message: "login successful"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.orchestrator.Sessions(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "session store unavailable", err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	info, err := s.orchestrator.SessionInfo(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found", "")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "session store unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.orchestrator.DeleteSession(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusServiceUnavailable, "session store unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "session_id": sessionID})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.orchestrator.Health()
	status := "ok"
	if !health.DurableStore {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            status,
		"durable_store":     health.DurableStore,
		"fallback_sessions": health.FallbackSessions,
	})
}
