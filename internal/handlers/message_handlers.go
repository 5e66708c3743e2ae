package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"chatwire/internal/models"
	"chatwire/internal/services"
	"chatwire/pkg/logger"
)

type MessageHandlers struct {
	messageService *services.MessageService
}

func NewMessageHandlers(messageService *services.MessageService) *MessageHandlers {
	return &MessageHandlers{messageService: messageService}
}

// SendMessage stores the message and returns the populated record. The
// response carries chat.users so the client can emit it straight back on
// the socket for fan-out.
func (h *MessageHandlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	msg, err := h.messageService.SendMessage(r.Context(), user.ID, req.ChatID, req.Content)
	if err != nil {
		logger.Error("Send message error: %v", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

// FetchMessages returns the chat's messages in chronological order.
func (h *MessageHandlers) FetchMessages(w http.ResponseWriter, r *http.Request, chatID string) {
	user := userFrom(r)

	messages, err := h.messageService.FetchMessages(r.Context(), chatID, user.ID)
	if err != nil {
		logger.Error("Fetch messages error: %v", err)
		writeServiceError(w, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, http.StatusOK, messages)
}

func (h *MessageHandlers) EditMessage(w http.ResponseWriter, r *http.Request, messageID string) {
	user := userFrom(r)

	var req models.EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	msg, err := h.messageService.EditMessage(r.Context(), messageID, req.Content, user.ID)
	if err != nil {
		logger.Error("Edit message error: %v", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandlers) DeleteMessage(w http.ResponseWriter, r *http.Request, messageID string) {
	user := userFrom(r)

	msg, err := h.messageService.DeleteMessage(r.Context(), messageID, user.ID)
	if err != nil {
		logger.Error("Delete message error: %v", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

// HandleMessagePath routes /api/message/{id} by method: GET fetches a
// chat's messages, PUT edits and DELETE soft-deletes a message.
func (h *MessageHandlers) HandleMessagePath(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/message/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.FetchMessages(w, r, id)
	case http.MethodPut:
		h.EditMessage(w, r, id)
	case http.MethodDelete:
		h.DeleteMessage(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
