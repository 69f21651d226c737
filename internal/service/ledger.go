package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"opmelink-api/internal/events"
	"opmelink-api/internal/metrics"
	"opmelink-api/internal/model"
	"opmelink-api/internal/repository"

	"go.uber.org/zap"
)

// maxLinkAttempts bounds the read/insert/increment loop. Rows are never
// deleted, so a second pass always finds the row a racing insert created.
const maxLinkAttempts = 3

// LinkResult is the outcome of LinkOrIncrement.
type LinkResult struct {
	Link    model.LinkedImplant `json:"link"`
	Created bool                `json:"created"`
}

// LinkLedger keeps one row per (owner, case, barcode) with an accumulated quantity.
// It does not evaluate restrictions; callers do that first.
type LinkLedger struct {
	repo      repository.LinkRepository
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewLinkLedger creates a ledger. A nil publisher discards LinkCreated events.
func NewLinkLedger(repo repository.LinkRepository, publisher events.Publisher, m *metrics.Metrics, logger *zap.Logger) *LinkLedger {
	if publisher == nil {
		publisher = events.Discard
	}
	return &LinkLedger{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logger.Named("ledger"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// LinkOrIncrement links barcode to the case with quantity 1, or adds one to an
// existing link. A lost insert race is retried as an increment and never reported.
func (l *LinkLedger) LinkOrIncrement(ctx context.Context, ownerID string, caseID int64, barcode string) (LinkResult, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return LinkResult{}, fmt.Errorf("%w: barcode is required", model.ErrInvalidInput)
	}

	for attempt := 1; attempt <= maxLinkAttempts; attempt++ {
		existing, err := l.repo.GetLink(ctx, ownerID, caseID, barcode)
		switch {
		case err == nil:
			return l.increment(ctx, *existing)
		case !errors.Is(err, model.ErrNotFound):
			return LinkResult{}, err
		}

		now := l.now()
		link := model.LinkedImplant{
			OwnerID:       ownerID,
			CaseID:        caseID,
			Barcode:       barcode,
			Quantity:      1,
			FirstLinkedAt: now,
			LastLinkedAt:  now,
		}
		err = l.repo.InsertLink(ctx, link)
		if err == nil {
			l.created(ctx, link)
			return LinkResult{Link: link, Created: true}, nil
		}
		if !errors.Is(err, model.ErrConcurrencyConflict) {
			return LinkResult{}, err
		}

		l.logger.Debug("insert lost race, retrying as increment",
			zap.Int64("case_id", caseID),
			zap.String("barcode", barcode),
			zap.Int("attempt", attempt),
		)
		res, err := l.increment(ctx, link)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		return res, err
	}

	return LinkResult{}, &model.PersistenceError{
		Op:  "link implant",
		Err: fmt.Errorf("no stable row for case %d barcode %s after %d attempts", caseID, barcode, maxLinkAttempts),
	}
}

func (l *LinkLedger) increment(ctx context.Context, link model.LinkedImplant) (LinkResult, error) {
	at := l.now()
	quantity, err := l.repo.IncrementLink(ctx, link.OwnerID, link.CaseID, link.Barcode, at)
	if err != nil {
		return LinkResult{}, err
	}
	link.Quantity = quantity
	link.LastLinkedAt = at
	return LinkResult{Link: link}, nil
}

func (l *LinkLedger) created(ctx context.Context, link model.LinkedImplant) {
	l.metrics.LinkCreated()
	if err := l.publisher.Publish(ctx, events.NewLinkCreated(link)); err != nil {
		l.logger.Warn("link created event not delivered everywhere",
			zap.Int64("case_id", link.CaseID),
			zap.String("barcode", link.Barcode),
			zap.Error(err),
		)
	}
}

// ListLinks returns the links of one case.
func (l *LinkLedger) ListLinks(ctx context.Context, ownerID string, caseID int64) ([]model.LinkedImplant, error) {
	return l.repo.ListLinksByCase(ctx, ownerID, caseID)
}
