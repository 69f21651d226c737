package handler

import (
	"net/http"

	"opmelink-api/internal/service"
	"opmelink-api/pkg/response"

	"go.uber.org/zap"
)

// CaseHandler serves the scan screen: linking implants to a case and listing them.
type CaseHandler struct {
	scans   *service.ScanService
	records *service.RecordService
	ledger  *service.LinkLedger
	fetch   service.FetchFunc
	logger  *zap.Logger
}

// NewCaseHandler creates a case handler.
func NewCaseHandler(scans *service.ScanService, records *service.RecordService, ledger *service.LinkLedger, fetch service.FetchFunc, logger *zap.Logger) *CaseHandler {
	return &CaseHandler{
		scans:   scans,
		records: records,
		ledger:  ledger,
		fetch:   fetch,
		logger:  logger.Named("case_handler"),
	}
}

// ScanRequest is the body of POST /api/v1/cases/{case_id}/scan.
type ScanRequest struct {
	Barcode string `json:"barcode"`
}

// Scan handles POST /api/v1/cases/{case_id}/scan
//
// Each request runs a fresh session: the case is selected, the barcode is
// evaluated and the outcome is mapped onto the response.
func (h *CaseHandler) Scan(w http.ResponseWriter, r *http.Request) {
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
	var req ScanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	rec, err := h.records.GetOrFetch(r.Context(), p.OwnerID, caseID, h.fetch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	session := service.NewScanSession(h.scans, p)
	if err := session.SelectCase(*rec); err != nil {
		writeError(w, h.logger, err)
		return
	}
	outcome, err := session.Scan(r.Context(), req.Barcode)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if outcome.Kind != service.OutcomeAccepted {
		writeError(w, h.logger, outcome.Err)
		return
	}
	if outcome.Result.Created {
		response.Created(w, outcome.Result)
		return
	}
	response.OK(w, outcome.Result)
}

// Links handles GET /api/v1/cases/{case_id}/links
func (h *CaseHandler) Links(w http.ResponseWriter, r *http.Request) {
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

	links, err := h.ledger.ListLinks(r.Context(), p.OwnerID, caseID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.List(w, links)
}
