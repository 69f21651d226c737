package handler

import (
	"net/http"

	"opmelink-api/internal/service"
	"opmelink-api/pkg/response"

	"go.uber.org/zap"
)

// RestrictionHandler manages insurance plan restriction rules.
type RestrictionHandler struct {
	rules  *service.RuleService
	logger *zap.Logger
}

// NewRestrictionHandler creates a restriction handler.
func NewRestrictionHandler(rules *service.RuleService, logger *zap.Logger) *RestrictionHandler {
	return &RestrictionHandler{rules: rules, logger: logger.Named("restriction_handler")}
}

// RestrictionRequest identifies a rule.
type RestrictionRequest struct {
	Barcode           string `json:"barcode"`
	InsurancePlanName string `json:"insurance_plan_name"`
}

// List handles GET /api/v1/restrictions
func (h *RestrictionHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	rules, err := h.rules.ListRules(r.Context(), p.OwnerID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.List(w, rules)
}

// Create handles POST /api/v1/restrictions
func (h *RestrictionHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req RestrictionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	rule, err := h.rules.AddRule(r.Context(), p.OwnerID, req.Barcode, req.InsurancePlanName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Created(w, rule)
}

// Delete handles DELETE /api/v1/restrictions
func (h *RestrictionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req RestrictionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.rules.DeleteRule(r.Context(), p.OwnerID, req.Barcode, req.InsurancePlanName); err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.NoContent(w)
}
