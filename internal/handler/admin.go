package handler

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"opmelink-api/internal/model"
	"opmelink-api/internal/service"
	"opmelink-api/pkg/response"

	"go.uber.org/zap"
)

// StatsSource reports storage statistics.
type StatsSource interface {
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	tokens      *service.TokenService
	sync        *service.SyncService
	store       StatsSource
	subscribers func() int
	dbType      string
	cacheType   string
	startTime   time.Time
	logger      *zap.Logger
}

// AdminConfig wires the admin handler.
type AdminConfig struct {
	Tokens      *service.TokenService
	Sync        *service.SyncService
	Store       StatsSource
	Subscribers func() int // live notification listeners; may be nil
	DBType      string
	CacheType   string
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(cfg AdminConfig, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		tokens:      cfg.Tokens,
		sync:        cfg.Sync,
		store:       cfg.Store,
		subscribers: cfg.Subscribers,
		dbType:      cfg.DBType,
		cacheType:   cfg.CacheType,
		startTime:   time.Now(),
		logger:      logger.Named("admin"),
	}
}

// TokenRequest is the body of POST /api/v1/admin/tokens.
type TokenRequest struct {
	OwnerID string `json:"owner_id"`
	Role    string `json:"role"`
}

// TokenResponse represents the response for token generation.
type TokenResponse struct {
	Token     string          `json:"token"`
	Principal model.Principal `json:"principal"`
	ExpiresAt time.Time       `json:"expires_at"`
	ExpiresIn int64           `json:"expires_in"`
}

// IssueToken handles POST /api/v1/admin/tokens
func (h *AdminHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	token, data, err := h.tokens.Issue(r.Context(), model.Principal{OwnerID: req.OwnerID, Role: req.Role})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Created(w, TokenResponse{
		Token:     token,
		Principal: data.Principal,
		ExpiresAt: data.ExpiresAt,
		ExpiresIn: int64(time.Until(data.ExpiresAt).Seconds()),
	})
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType
	stats["cache_type"] = h.cacheType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if h.store != nil {
		storeStats, err := h.store.GetStats(ctx)
		if err == nil {
			storeStats["status"] = "connected"
			stats["store"] = storeStats
		} else {
			h.logger.Warn("store stats unavailable", zap.Error(err))
			stats["store"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	if h.subscribers != nil {
		stats["notification_listeners"] = h.subscribers()
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// SyncRuns handles GET /api/v1/admin/sync-runs?limit=N
func (h *AdminHandler) SyncRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.sync.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.List(w, runs)
}
