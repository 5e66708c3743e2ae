package handlers

import (
	"encoding/json"
	"net/http"

	"chatwire/internal/models"
	"chatwire/internal/services"
	"chatwire/pkg/logger"
)

type ChatHandlers struct {
	chatService *services.ChatService
}

func NewChatHandlers(chatService *services.ChatService) *ChatHandlers {
	return &ChatHandlers{chatService: chatService}
}

// AccessChat finds or creates the caller's direct chat with another user.
func (h *ChatHandlers) AccessChat(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req models.AccessChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	chat, err := h.chatService.AccessChat(r.Context(), user.ID, req.UserID)
	if err != nil {
		logger.Error("Access chat error: %v", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

// FetchChats returns the caller's chat summaries, most recently active
// first.
func (h *ChatHandlers) FetchChats(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	chats, err := h.chatService.FetchChats(r.Context(), user.ID)
	if err != nil {
		logger.Error("Fetch chats error: %v", err)
		writeServiceError(w, err)
		return
	}
	if chats == nil {
		chats = []models.Chat{}
	}

	writeJSON(w, http.StatusOK, chats)
}

func (h *ChatHandlers) CreateGroupChat(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req models.GroupChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	chat, err := h.chatService.CreateGroupChat(r.Context(), req.Name, req.Users, user.ID)
	if err != nil {
		logger.Error("Create group error: %v", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

func (h *ChatHandlers) RenameGroup(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req models.GroupUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	chat, err := h.chatService.RenameGroup(r.Context(), req.ChatID, req.ChatName, user.ID)
	if err != nil {
		logger.Error("Rename group error: %v", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

func (h *ChatHandlers) AddToGroup(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req models.GroupUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	chat, err := h.chatService.AddToGroup(r.Context(), req.ChatID, req.UserID, user.ID)
	if err != nil {
		logger.Error("Add to group error: %v", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

func (h *ChatHandlers) RemoveFromGroup(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req models.GroupUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	chat, err := h.chatService.RemoveFromGroup(r.Context(), req.ChatID, req.UserID, user.ID)
	if err != nil {
		logger.Error("Remove from group error: %v", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chat)
}
