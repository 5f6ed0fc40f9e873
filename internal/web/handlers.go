// ABOUTME: JSON handlers for GET /history and POST /chat
// ABOUTME: Maps conversation service outcomes onto the wire contract

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jarvislabs/jarvis-gateway/internal/conversation"
	"github.com/jarvislabs/jarvis-gateway/internal/gemini"
	"github.com/jarvislabs/jarvis-gateway/internal/store"
)

// historyResponse is the JSON response for GET /history.
type historyResponse struct {
	History        []store.Turn `json:"history"`
	ConversationID *string      `json:"conversationId"`
}

// chatRequest is the JSON request body for POST /chat.
type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// chatResponse is the JSON response for a successful POST /chat.
type chatResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversationId"`
}

// errorResponse is the JSON response for any failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// handleHistory handles GET /history requests.
// A session with no conversation yet gets an empty history and a null id.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionFromContext(r)

	result, err := s.service.History(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("failed to load history", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	resp := historyResponse{History: result.History}
	if result.ConversationID != "" {
		resp.ConversationID = &result.ConversationID
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleChat handles POST /chat requests.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionFromContext(r)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.service.Chat(r.Context(), sessionID, req.Message, req.ConversationID)
	if err != nil {
		s.respondChatError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, chatResponse{
		Reply:          result.Reply,
		ConversationID: result.ConversationID,
	})
}

// respondChatError maps the service's failure taxonomy onto HTTP responses.
func (s *Server) respondChatError(w http.ResponseWriter, err error) {
	if errors.Is(err, conversation.ErrEmptyMessage) {
		s.sendJSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	var notSaved *conversation.ReplyNotSavedError
	if errors.As(err, &notSaved) {
		// The reply exists and was paid for; deliver it for this turn even
		// though it is missing from durable history. The service already
		// logged the persistence failure.
		s.writeJSON(w, http.StatusOK, chatResponse{
			Reply:          notSaved.Reply,
			ConversationID: notSaved.ConversationID,
		})
		return
	}

	var blocked *gemini.BlockedError
	if errors.As(err, &blocked) {
		s.sendJSONError(w, http.StatusInternalServerError, blocked.Reason)
		return
	}

	s.logger.Error("chat request failed", "error", err)
	s.sendJSONError(w, http.StatusInternalServerError, "internal error")
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response with the given status code.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}
