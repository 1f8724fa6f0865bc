package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"fieldsync/internal/logger"
	"fieldsync/internal/services"
)

// LoginRequest is the body of POST /auth/token
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries a bearer token for the guarded field API.
// ExpiresIn is in seconds and omitted for tokens that never expire.
type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
}

// AuthHandler exchanges user credentials for bearer tokens
type AuthHandler struct {
	logger  *logger.Logger
	authSvc services.AuthenticationService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(logger *logger.Logger, authSvc services.AuthenticationService) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		authSvc: authSvc,
	}
}

// RegisterRoutes registers the token endpoint
func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/token", h.IssueToken).Methods("POST")
}

// IssueToken handles POST /auth/token
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeAuthError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	token, err := h.authSvc.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeAuthError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue token")
		writeAuthError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(h.authSvc.TokenTTL().Seconds()),
	})
}

func writeAuthError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
