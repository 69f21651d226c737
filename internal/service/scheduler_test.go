package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSyncScheduler_Window(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	s := NewSyncScheduler(nil, SchedulerConfig{OwnerID: "o1", LookbackDays: 2, Location: loc}, zap.NewNop())
	s.now = func() time.Time { return time.Date(2024, 5, 11, 1, 0, 0, 0, time.UTC) }

	start, end := s.Window()
	assert.Equal(t, "2024-05-08", start)
	assert.Equal(t, "2024-05-10", end)
}

func TestSyncScheduler_StartStop(t *testing.T) {
	s := NewSyncScheduler(nil, SchedulerConfig{Interval: time.Hour}, zap.NewNop())
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
	assert.False(t, s.isRunning)
}
