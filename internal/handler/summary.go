package handler

import (
	"fmt"
	"net/http"
	"time"

	"opmelink-api/internal/service"
	"opmelink-api/pkg/apierror"
	"opmelink-api/pkg/response"

	"go.uber.org/zap"
)

// SummaryHandler serves the daily activity summary.
type SummaryHandler struct {
	summary *service.SummaryService
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger
}

// NewSummaryHandler creates a summary handler. Days are cut at midnight in loc.
func NewSummaryHandler(summary *service.SummaryService, loc *time.Location, logger *zap.Logger) *SummaryHandler {
	if loc == nil {
		loc = time.Local
	}
	return &SummaryHandler{summary: summary, loc: loc, now: time.Now, logger: logger.Named("summary_handler")}
}

// DailySummaryResponse is the body of GET /api/v1/summary/daily.
type DailySummaryResponse struct {
	Date    string      `json:"date"`
	Entries interface{} `json:"entries"`
}

// Daily handles GET /api/v1/summary/daily?date=YYYY-MM-DD (default today)
func (h *SummaryHandler) Daily(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	day := h.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err = time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			writeError(w, h.logger, apierror.ValidationError(fmt.Sprintf("invalid date %q", raw),
				apierror.FieldError{Field: "date", Message: "expected YYYY-MM-DD"}))
			return
		}
	}

	start, end := service.DayWindow(day, h.loc)
	entries, err := h.summary.Summarize(r.Context(), p.OwnerID, start, end)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, DailySummaryResponse{Date: start.Format("2006-01-02"), Entries: entries})
}
