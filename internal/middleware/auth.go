package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"opmelink-api/internal/model"
	"opmelink-api/internal/service"
	"opmelink-api/pkg/apierror"

	"go.uber.org/zap"
)

// TokenDataKey is the key for storing token data in request context.
const TokenDataKey contextKey = "token_data"

// TokenValidator resolves a session token to its data.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*model.TokenData, error)
}

// AuthConfig holds configuration for the session auth middleware.
type AuthConfig struct {
	Tokens TokenValidator
	Logger *zap.Logger
}

// NewAuthMiddleware requires a valid session token in X-Token (or
// "Authorization: Bearer opl_...") and stores its data in the request context.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Token")
			if token == "" {
				if bearer := bearerToken(r); strings.HasPrefix(bearer, service.TokenPrefix) {
					token = bearer
				}
			}
			if token == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use the X-Token header."))
				return
			}

			tokenData, err := cfg.Tokens.Validate(r.Context(), token)
			if err != nil {
				if !errors.Is(err, service.ErrInvalidToken) {
					logger.Error("token validation failed", zap.Error(err))
					writeError(w, apierror.ServiceUnavailable("session store unavailable"))
					return
				}
				writeError(w, apierror.Unauthorized("Invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), TokenDataKey, tokenData)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects principals whose role is not one of roles.
// It must run after NewAuthMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data := GetTokenDataFromContext(r.Context())
			if data == nil {
				writeError(w, apierror.Unauthorized(""))
				return
			}
			for _, role := range roles {
				if data.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, apierror.Forbidden("role "+data.Role+" may not access this resource"))
		})
	}
}

// RequireSyncSecret guards the sync trigger with "Authorization: Bearer <secret>".
// An empty secret disables the endpoint.
func RequireSyncSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeError(w, apierror.ServiceUnavailable("sync secret not configured"))
				return
			}
			if !constantTimeEqual(bearerToken(r), secret) {
				writeError(w, apierror.Unauthorized("Invalid sync secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLoginKey guards admin endpoints with the X-Login-Key header.
// An empty key disables them.
func RequireLoginKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				writeError(w, apierror.ServiceUnavailable("admin login key not configured"))
				return
			}
			provided := r.Header.Get("X-Login-Key")
			if provided == "" {
				writeError(w, apierror.Unauthorized("X-Login-Key header required"))
				return
			}
			if !constantTimeEqual(provided, key) {
				writeError(w, apierror.Unauthorized("Invalid login key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GetTokenDataFromContext retrieves token data from request context.
func GetTokenDataFromContext(ctx context.Context) *model.TokenData {
	if data, ok := ctx.Value(TokenDataKey).(*model.TokenData); ok {
		return data
	}
	return nil
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	data := GetTokenDataFromContext(ctx)
	if data == nil {
		return model.Principal{}, false
	}
	return data.Principal, true
}
