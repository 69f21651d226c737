package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"opmelink-api/internal/model"
	"opmelink-api/internal/repository"
)

// SummaryService computes the daily activity rollup. Nothing is persisted.
type SummaryService struct {
	links   repository.LinkRepository
	records repository.CaseRecordRepository
}

// NewSummaryService creates a summary service.
func NewSummaryService(links repository.LinkRepository, records repository.CaseRecordRepository) *SummaryService {
	return &SummaryService{links: links, records: records}
}

// Summarize counts, per case, the links first created in [dayStart, dayEnd).
// Each distinct barcode counts once regardless of quantity. Cases without
// a stored record keep their entry with an empty patient name.
func (s *SummaryService) Summarize(ctx context.Context, ownerID string, dayStart, dayEnd time.Time) ([]model.DailySummaryEntry, error) {
	if !dayEnd.After(dayStart) {
		return nil, fmt.Errorf("%w: day end must be after day start", model.ErrInvalidInput)
	}

	links, err := s.links.ListLinksFirstLinkedBetween(ctx, ownerID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]int)
	for _, l := range links {
		counts[l.CaseID]++
	}
	if len(counts) == 0 {
		return []model.DailySummaryEntry{}, nil
	}

	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	records, err := s.records.GetCaseRecords(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]model.DailySummaryEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, model.DailySummaryEntry{
			CaseID:      id,
			PatientName: records[id].PatientName,
			ItemCount:   counts[id],
		})
	}
	return entries, nil
}

// DayWindow returns [midnight, next midnight) of the day containing t in loc.
func DayWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Today summarizes the day containing now in loc.
func (s *SummaryService) Today(ctx context.Context, ownerID string, now time.Time, loc *time.Location) ([]model.DailySummaryEntry, error) {
	start, end := DayWindow(now, loc)
	return s.Summarize(ctx, ownerID, start, end)
}
