package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"opmelink-api/internal/cache"
	"opmelink-api/internal/events"
	"opmelink-api/internal/model"
	"opmelink-api/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "svc.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })
	return c
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LinkCreated
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.LinkCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// scanFixture wires the scan path on a fresh SQLite store.
type scanFixture struct {
	store     *repository.SQLiteStore
	rules     *RuleService
	ledger    *LinkLedger
	scan      *ScanService
	publisher *recordingPublisher
}

func newScanFixture(t *testing.T) *scanFixture {
	t.Helper()
	store := newTestStore(t)
	pub := &recordingPublisher{}
	rules := NewRuleService(store, zap.NewNop())
	ledger := NewLinkLedger(store, pub, nil, zap.NewNop())
	return &scanFixture{
		store:     store,
		rules:     rules,
		ledger:    ledger,
		scan:      NewScanService(rules, store, ledger, nil, zap.NewNop()),
		publisher: pub,
	}
}

func (f *scanFixture) addImplant(t *testing.T, owner, barcode, name string) {
	t.Helper()
	require.NoError(t, f.store.SaveImplant(context.Background(), model.ImplantItem{
		OwnerID: owner, Barcode: barcode, Name: name, CreatedAt: time.Now().UTC(),
	}))
}

func (f *scanFixture) linkCount(t *testing.T, owner string, caseID int64) int {
	t.Helper()
	links, err := f.store.ListLinksByCase(context.Background(), owner, caseID)
	require.NoError(t, err)
	return len(links)
}
