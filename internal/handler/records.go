package handler

import (
	"net/http"

	"opmelink-api/internal/service"
	"opmelink-api/pkg/response"

	"go.uber.org/zap"
)

// RecordHandler serves locally stored case records.
type RecordHandler struct {
	records *service.RecordService
	fetch   service.FetchFunc
	logger  *zap.Logger
}

// NewRecordHandler creates a record handler. fetch resolves cases missing locally.
func NewRecordHandler(records *service.RecordService, fetch service.FetchFunc, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{records: records, fetch: fetch, logger: logger.Named("record_handler")}
}

// List handles GET /api/v1/records?start_date&end_date&business_unit
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	dr, err := dateRangeParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	records, err := h.records.Query(r.Context(), p.OwnerID, dr, r.URL.Query().Get("business_unit"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.List(w, records)
}

// Get handles GET /api/v1/records/{case_id}
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	caseID, err := caseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	rec, err := h.records.GetOrFetch(r.Context(), p.OwnerID, caseID, h.fetch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, rec)
}
