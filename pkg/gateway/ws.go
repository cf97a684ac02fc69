package gateway

import (
	"net/http"

	"github.com/gorilla/websocket"
)

type wsFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Response  string `json:"response,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleChatSocket serves the websocket chat variant. Each incoming frame
// carries one message; the server replies with a status frame while the
// agent is running, then a response or error frame.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	apiKey := r.Header.Get("X-API-Key")

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Msg("Websocket closed unexpectedly")
			}
			return
		}

		if req.Message == "" {
			if err := conn.WriteJSON(wsFrame{Type: "error", Error: "message is required"}); err != nil {
				return
			}
			continue
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = "default"
		}

		if err := conn.WriteJSON(wsFrame{Type: "status", Message: "thinking"}); err != nil {
			return
		}

		response, err := s.orchestrator.Turn(r.Context(), apiKey, sessionID, req.Message)
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Websocket chat turn failed")
			if err := conn.WriteJSON(wsFrame{Type: "error", Error: err.Error()}); err != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(wsFrame{Type: "response", Response: response, SessionID: sessionID}); err != nil {
			return
		}
	}
}
