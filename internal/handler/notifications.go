package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"opmelink-api/internal/events"
	"opmelink-api/internal/model"
	"opmelink-api/pkg/apierror"

	"go.uber.org/zap"
)

// DefaultHeartbeat keeps idle notification streams open through proxies.
const DefaultHeartbeat = 25 * time.Second

// CaseRecordReader resolves the case a notification refers to.
type CaseRecordReader interface {
	Get(ctx context.Context, ownerID string, caseID int64) (*model.CaseRecord, error)
}

// Notification is the data of a link_created stream event.
type Notification struct {
	events.LinkCreated
	PatientName string `json:"patient_name"`
}

// NotificationHandler streams LinkCreated events to reception listeners as
// server-sent events.
type NotificationHandler struct {
	broker    *events.Broker
	records   CaseRecordReader
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewNotificationHandler creates a notification handler.
func NewNotificationHandler(broker *events.Broker, records CaseRecordReader, heartbeat time.Duration, logger *zap.Logger) *NotificationHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &NotificationHandler{broker: broker, records: records, heartbeat: heartbeat, logger: logger.Named("notifications")}
}

// notification attaches the patient name. Events for cases this instance has
// not stored go out with an empty name.
func (h *NotificationHandler) notification(ctx context.Context, ev events.LinkCreated) Notification {
	n := Notification{LinkCreated: ev}
	rec, err := h.records.Get(ctx, ev.OwnerID, ev.CaseID)
	if err != nil {
		h.logger.Debug("patient name unavailable",
			zap.String("event_id", ev.ID),
			zap.Int64("case_id", ev.CaseID),
			zap.Error(err),
		)
		return n
	}
	n.PatientName = rec.PatientName
	return n
}

// Stream handles GET /api/v1/notifications
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, h.logger, apierror.InternalError("streaming unsupported"))
		return
	}

	// The stream outlives the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sub := h.broker.Subscribe(events.ReceptionFilter(p))
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	h.logger.Debug("listener connected", zap.String("owner_id", p.OwnerID))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(h.notification(r.Context(), ev))
			if err != nil {
				h.logger.Warn("failed to encode event", zap.String("event_id", ev.ID), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: link_created\ndata: %s\n\n", ev.ID, data)
			flusher.Flush()
		}
	}
}
