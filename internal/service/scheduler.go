package service

import (
	"context"
	"sync"
	"time"

	"opmelink-api/internal/source"

	"go.uber.org/zap"
)

// SchedulerConfig holds configuration for the built-in sync scheduler.
type SchedulerConfig struct {
	// OwnerID receives the synced records.
	OwnerID string

	// Interval is how often a sync runs.
	Interval time.Duration

	// LookbackDays widens the window before today. 0 syncs today only.
	LookbackDays int

	// Location decides where "today" starts.
	Location *time.Location

	// RunTimeout bounds one sync run.
	RunTimeout time.Duration
}

// SyncScheduler runs periodic syncs for deployments without an external trigger.
type SyncScheduler struct {
	sync      *SyncService
	config    SchedulerConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
	now       func() time.Time
	logger    *zap.Logger
}

// NewSyncScheduler creates a new sync scheduler.
func NewSyncScheduler(svc *SyncService, config SchedulerConfig, logger *zap.Logger) *SyncScheduler {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 5 * time.Minute
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.LookbackDays < 0 {
		config.LookbackDays = 0
	}

	return &SyncScheduler{
		sync:   svc,
		config: config,
		stopCh: make(chan struct{}),
		now:    time.Now,
		logger: logger.Named("scheduler"),
	}
}

// Start begins the sync scheduler.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	s.logger.Info("started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("lookback_days", s.config.LookbackDays),
		zap.String("owner_id", s.config.OwnerID),
	)

	go s.run()
}

func (s *SyncScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			_, _ = s.RunNow()
		case <-s.stopCh:
			s.logger.Info("stopped")
			return
		}
	}
}

// Window returns the start and end dates the next run will sync.
func (s *SyncScheduler) Window() (string, string) {
	today := s.now().In(s.config.Location)
	start := today.AddDate(0, 0, -s.config.LookbackDays)
	return source.FormatDate(start), source.FormatDate(today)
}

// RunNow triggers an immediate sync run.
func (s *SyncScheduler) RunNow() (*SyncResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	defer cancel()

	start, end := s.Window()
	return s.sync.Sync(ctx, s.config.OwnerID, start, end)
}

// Stop stops the sync scheduler.
func (s *SyncScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}
