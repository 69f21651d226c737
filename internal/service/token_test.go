package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"opmelink-api/internal/cache"
	"opmelink-api/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTokenService_IssueValidateRevoke(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	backends := map[string]cache.Cache{
		"memory": newTestCache(t),
		"redis":  cache.NewRedisCache(client, "test", zap.NewNop()),
	}

	for name, c := range backends {
		t.Run(name, func(t *testing.T) {
			svc := NewTokenService(c, time.Hour, zap.NewNop())
			ctx := context.Background()

			token, data, err := svc.Issue(ctx, model.Principal{OwnerID: "o1", Role: model.RoleReception})
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(token, TokenPrefix))
			assert.Equal(t, "o1", data.OwnerID)

			got, err := svc.Validate(ctx, token)
			require.NoError(t, err)
			assert.Equal(t, model.RoleReception, got.Role)

			require.NoError(t, svc.Revoke(ctx, token))
			_, err = svc.Validate(ctx, token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenService_Rejects(t *testing.T) {
	svc := NewTokenService(newTestCache(t), time.Hour, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Validate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Validate(ctx, TokenPrefix+"unknown")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = svc.Issue(ctx, model.Principal{})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, data, err := svc.Issue(ctx, model.Principal{OwnerID: "o1"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleOperator, data.Role)
}

func TestTokenService_ExpiredInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	svc := NewTokenService(cache.NewRedisCache(client, "test", zap.NewNop()), time.Minute, zap.NewNop())
	token, _, err := svc.Issue(context.Background(), model.Principal{OwnerID: "o1"})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = svc.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
