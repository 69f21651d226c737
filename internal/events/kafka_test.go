package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_KeysByOwner(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "opme.link-created", zap.NewNop())

	at := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), LinkCreated{ID: "e1", OwnerID: "o1", CaseID: 1001, Barcode: "456", At: at}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "o1", string(w.msgs[0].Key))

	var ev LinkCreated
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, int64(1001), ev.CaseID)
	assert.True(t, ev.At.Equal(at))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WrapsWriteError(t *testing.T) {
	boom := errors.New("leader not available")
	p := newKafkaPublisher(&fakeWriter{err: boom}, "t", zap.NewNop())

	err := p.Publish(context.Background(), LinkCreated{ID: "e1"})
	assert.ErrorIs(t, err, boom)
}

func TestNewKafkaPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "t", zap.NewNop())
	assert.Error(t, err)
}
