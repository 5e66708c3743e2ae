package handlers

import (
	"encoding/json"
	"net/http"

	"chatwire/internal/auth"
	"chatwire/internal/database"
	"chatwire/internal/models"
	"chatwire/pkg/logger"
)

type AuthHandlers struct {
	authService *auth.Service
	db          database.Database
}

func NewAuthHandlers(authService *auth.Service, db database.Database) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		db:          db,
	}
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	response, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		logger.Error("Registration error: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	response, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		logger.Error("Login error: %v", err)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// SearchUsers backs the add-chat drawer: name or email substring match,
// excluding the caller.
func (h *AuthHandlers) SearchUsers(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	query := r.URL.Query().Get("search")

	users, err := h.db.SearchUsers(r.Context(), query, user.ID)
	if err != nil {
		logger.Error("User search error: %v", err)
		http.Error(w, "search failed", http.StatusBadRequest)
		return
	}
	if users == nil {
		users = []models.User{}
	}

	writeJSON(w, http.StatusOK, users)
}
