package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"fieldsync/internal/logger"
	"fieldsync/internal/models"
	"fieldsync/internal/services"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	// UserContextKey is the context key for the authenticated user
	UserContextKey ContextKey = "user"
)

// NoAccessMessage is returned in place of the field value when the gate
// refuses a request
const NoAccessMessage = "No valid access"

// AuthenticationMiddleware guards the field API with signed bearer tokens
type AuthenticationMiddleware struct {
	logger  *logger.Logger
	authSvc services.AuthenticationService
}

// NewAuthenticationMiddleware creates a new authentication middleware
func NewAuthenticationMiddleware(
	logger *logger.Logger,
	authSvc services.AuthenticationService,
) *AuthenticationMiddleware {
	return &AuthenticationMiddleware{
		logger:  logger,
		authSvc: authSvc,
	}
}

// RequireFieldAccess lets a request through only when its Authorization
// header carries a valid token of an active user. Refused requests get
// 200 with {field: "No valid access"}, a missing header included.
func (m *AuthenticationMiddleware) RequireFieldAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		field := mux.Vars(r)["field"]

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			user, err := m.authSvc.ValidateJWT(ctx, BearerToken(authHeader))
			if err == nil {
				ctx = context.WithValue(ctx, UserContextKey, user)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			m.logger.WithError(err).WithField("field", field).Warn("Field access refused")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]string{field: NoAccessMessage}); err != nil {
			m.logger.WithError(err).Error("Failed to encode JSON response")
		}
	})
}

// BearerToken returns the second space-separated part of an Authorization
// header, or the whole header when it has no space
func BearerToken(authHeader string) string {
	if parts := strings.Split(authHeader, " "); len(parts) > 1 {
		return parts[1]
	}
	return authHeader
}

// GetUserFromContext extracts the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
