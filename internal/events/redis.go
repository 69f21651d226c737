package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"opmelink-api/pkg/uid"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRelay shares events between instances over a Redis pub/sub channel.
// Events published here are delivered to the local broker by the sending
// instance itself, so Run skips messages carrying this relay's origin.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	local   Publisher
	logger  *zap.Logger
}

// NewRedisRelay creates a relay that re-publishes remote events into local.
func NewRedisRelay(client *redis.Client, channel string, local Publisher, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uid.New(),
		local:   local,
		logger:  logger.Named("redis_relay"),
	}
}

// Publish sends ev to the other instances.
func (r *RedisRelay) Publish(ctx context.Context, ev LinkCreated) error {
	ev.Origin = r.origin
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run forwards remote events to the local publisher until ctx is done.
// ready, when non-nil, is closed once the subscription is active.
func (r *RedisRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}
	if ready != nil {
		close(ready)
	}
	r.logger.Info("relay subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.forward(ctx, msg.Payload)
		}
	}
}

// Relay retry bounds.
const (
	DefaultRelayBackoff = time.Second
	maxRelayBackoff     = 30 * time.Second
)

// RunWithRetry keeps the relay subscribed until ctx is done. Failed or lost
// subscriptions are retried with exponential backoff starting at initial; a
// subscription that came up resets the backoff.
func (r *RedisRelay) RunWithRetry(ctx context.Context, initial time.Duration) {
	if initial <= 0 {
		initial = DefaultRelayBackoff
	}
	backoff := initial
	for {
		ready := make(chan struct{})
		err := r.Run(ctx, ready)
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ready:
			backoff = initial
		default:
		}

		r.logger.Warn("relay subscription down, retrying",
			zap.String("channel", r.channel),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = min(backoff*2, maxRelayBackoff)
	}
}

func (r *RedisRelay) forward(ctx context.Context, payload string) {
	var ev LinkCreated
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		r.logger.Warn("discarding malformed event", zap.Error(err))
		return
	}
	if ev.Origin == r.origin {
		return
	}
	if err := r.local.Publish(ctx, ev); err != nil {
		r.logger.Warn("local delivery failed", zap.String("event_id", ev.ID), zap.Error(err))
	}
}

// Ensure RedisRelay implements Publisher
var _ Publisher = (*RedisRelay)(nil)
