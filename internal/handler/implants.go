package handler

import (
	"net/http"

	"opmelink-api/internal/model"
	"opmelink-api/internal/service"
	"opmelink-api/pkg/response"

	"go.uber.org/zap"
)

// ImplantHandler serves the implant catalog.
type ImplantHandler struct {
	catalog *service.CatalogService
	logger  *zap.Logger
}

// NewImplantHandler creates an implant handler.
func NewImplantHandler(catalog *service.CatalogService, logger *zap.Logger) *ImplantHandler {
	return &ImplantHandler{catalog: catalog, logger: logger.Named("implant_handler")}
}

// ImplantRequest is a manual catalog entry.
type ImplantRequest struct {
	Barcode        string `json:"barcode"`
	Name           string `json:"name"`
	Lot            string `json:"lot"`
	Expiry         string `json:"expiry"`
	Reference      string `json:"reference"`
	RegulatoryCode string `json:"regulatory_code"`
	ProcedureCode  string `json:"procedure_code"`
	CatalogCode    string `json:"catalog_code"`
}

// List handles GET /api/v1/implants
func (h *ImplantHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items, err := h.catalog.ListImplants(r.Context(), p.OwnerID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.List(w, items)
}

// Save handles POST /api/v1/implants
func (h *ImplantHandler) Save(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req ImplantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	item := model.ImplantItem{
		OwnerID:        p.OwnerID,
		Barcode:        req.Barcode,
		Name:           req.Name,
		Lot:            req.Lot,
		Expiry:         req.Expiry,
		Reference:      req.Reference,
		RegulatoryCode: req.RegulatoryCode,
		ProcedureCode:  req.ProcedureCode,
		CatalogCode:    req.CatalogCode,
	}
	if err := h.catalog.SaveImplant(r.Context(), item); err != nil {
		writeError(w, h.logger, err)
		return
	}

	saved, err := h.catalog.GetImplant(r.Context(), p.OwnerID, item.Barcode)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Created(w, saved)
}
