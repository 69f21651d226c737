package handler

import (
	"net/http"
	"strings"
	"time"

	"opmelink-api/internal/middleware"
	"opmelink-api/internal/service"
	"opmelink-api/pkg/apierror"
	"opmelink-api/pkg/response"

	"go.uber.org/zap"
)

// AuthHandler lets a session inspect and end itself.
type AuthHandler struct {
	tokens *service.TokenService
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(tokens *service.TokenService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{tokens: tokens, logger: logger.Named("auth_handler")}
}

// SessionResponse describes the calling session.
type SessionResponse struct {
	OwnerID   string    `json:"owner_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	data := middleware.GetTokenDataFromContext(r.Context())
	if data == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}
	response.OK(w, SessionResponse{OwnerID: data.OwnerID, Role: data.Role, ExpiresAt: data.ExpiresAt})
}

// RevokeToken handles POST /api/v1/auth/revoke
func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	}
	if !strings.HasPrefix(token, service.TokenPrefix) {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	if err := h.tokens.Revoke(r.Context(), token); err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.OK(w, map[string]string{"status": "revoked"})
}
