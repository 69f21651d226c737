package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"opmelink-api/internal/cache"
	"opmelink-api/internal/model"
	"opmelink-api/pkg/uid"

	"go.uber.org/zap"
)

const (
	// TokenPrefix is the prefix for all session tokens
	TokenPrefix = "opl_"

	// DefaultTokenTTL is used when no TTL is configured.
	DefaultTokenTTL = 12 * time.Hour

	tokenKeyPrefix = "token"
)

// ErrInvalidToken is returned for malformed, unknown or expired tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenService issues and validates session tokens carrying a Principal.
type TokenService struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewTokenService creates a new token service.
func NewTokenService(c cache.Cache, ttl time.Duration, logger *zap.Logger) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{cache: c, ttl: ttl, logger: logger.Named("tokens")}
}

// Issue creates a new session token for p.
func (s *TokenService) Issue(ctx context.Context, p model.Principal) (string, *model.TokenData, error) {
	if p.OwnerID == "" {
		return "", nil, fmt.Errorf("%w: owner_id is required", model.ErrInvalidInput)
	}
	if p.Role == "" {
		p.Role = model.RoleOperator
	}

	token, err := uid.Token(TokenPrefix, 32)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	data := &model.TokenData{Principal: p, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", nil, fmt.Errorf("failed to serialize token data: %w", err)
	}
	if err := s.cache.Set(ctx, cache.Key(tokenKeyPrefix, token), jsonData, s.ttl); err != nil {
		return "", nil, fmt.Errorf("failed to store token: %w", err)
	}

	s.logger.Info("token issued",
		zap.String("owner_id", p.OwnerID),
		zap.String("role", p.Role),
		zap.Time("expires_at", data.ExpiresAt),
	)
	return token, data, nil
}

// Validate returns the data stored with token.
func (s *TokenService) Validate(ctx context.Context, token string) (*model.TokenData, error) {
	if !strings.HasPrefix(token, TokenPrefix) {
		return nil, ErrInvalidToken
	}

	key := cache.Key(tokenKeyPrefix, token)
	jsonData, err := s.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var data model.TokenData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse token data: %w", err)
	}

	if time.Now().After(data.ExpiresAt) {
		_ = s.cache.Delete(ctx, key)
		return nil, ErrInvalidToken
	}
	return &data, nil
}

// Revoke deletes a token.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	return s.cache.Delete(ctx, cache.Key(tokenKeyPrefix, token))
}
