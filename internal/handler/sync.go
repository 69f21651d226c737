package handler

import (
	"context"
	"net/http"
	"time"

	"opmelink-api/internal/service"
	"opmelink-api/pkg/response"

	"go.uber.org/zap"
)

// syncWriteGrace leaves room to encode the result once the sync timeout is hit.
const syncWriteGrace = 10 * time.Second

// SyncHandler exposes the scheduled sync trigger and the on-demand source read.
type SyncHandler struct {
	sync         *service.SyncService
	defaultOwner string
	timeout      time.Duration
	logger       *zap.Logger
}

// NewSyncHandler creates a sync handler. Syncs without owner_id are stored
// under defaultOwner. timeout bounds a whole sync; zero means unbounded.
func NewSyncHandler(sync *service.SyncService, defaultOwner string, timeout time.Duration, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		sync:         sync,
		defaultOwner: defaultOwner,
		timeout:      timeout,
		logger:       logger.Named("sync_handler"),
	}
}

// SyncRequest is the body of POST /api/v1/sync.
type SyncRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	OwnerID   string `json:"owner_id,omitempty"`
}

// Sync handles POST /api/v1/sync
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	owner := req.OwnerID
	if owner == "" {
		owner = h.defaultOwner
	}

	// A trigger that disconnects must not abort a sync halfway through the upsert.
	ctx := context.WithoutCancel(r.Context())
	deadline := time.Time{}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
		deadline = time.Now().Add(h.timeout + syncWriteGrace)
	}
	// The result must still be writable after a sync that outlasts the server
	// write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(deadline)

	result, err := h.sync.Sync(ctx, owner, req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, result)
}

// FetchRequest is the body of POST /api/v1/records/fetch.
type FetchRequest struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	BusinessUnit string `json:"business_unit"`
}

// Fetch handles POST /api/v1/records/fetch
func (h *SyncHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	if _, err := principal(r); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req FetchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	records, err := h.sync.FetchUnit(r.Context(), req.StartDate, req.EndDate, req.BusinessUnit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.List(w, records)
}
