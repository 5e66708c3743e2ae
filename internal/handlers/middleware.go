package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"chatwire/internal/auth"
	"chatwire/internal/database"
	"chatwire/internal/models"
	"chatwire/internal/services"
)

type contextKey string

const userContextKey contextKey = "user"

// RequireAuth resolves the bearer token into a user and stores it on the
// request context. Every protected route goes through here, so the fan-out
// engine never sees an event whose REST-side mutation was unauthorized.
func RequireAuth(authService *auth.Service, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "not authorized, no token", http.StatusUnauthorized)
			return
		}

		user, err := authService.GetUserFromToken(r.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			http.Error(w, "not authorized, token failed", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

func userFrom(r *http.Request) *models.User {
	user, _ := r.Context().Value(userContextKey).(*models.User)
	return user
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeServiceError maps domain errors onto the status codes the REST
// contract promises: 403 for ownership violations, 404 for missing records,
// 400 for everything invalid.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, database.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
