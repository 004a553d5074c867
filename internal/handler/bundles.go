package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/menuboard/internal/model"
)

type bundleItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Weight    string    `json:"weight" validate:"max=50"`
	Quantity  int       `json:"quantity" validate:"gte=0"`
}

type categoryRequirementRequest struct {
	Category string `json:"category" validate:"required,max=100"`
	Quantity int    `json:"quantity" validate:"gte=1"`
	Weight   string `json:"weight" validate:"max=50"`
}

type bundleRequest struct {
	Name         string                       `json:"name" validate:"required,max=200"`
	Kind         string                       `json:"kind" validate:"required,oneof=specific_products category"`
	BundlePrice  decimal.Decimal              `json:"bundlePrice" validate:"gte=0"`
	IsActive     *bool                        `json:"isActive"`
	Items        []bundleItemRequest          `json:"items" validate:"omitempty,dive"`
	Requirements []categoryRequirementRequest `json:"requirements" validate:"omitempty,dive"`
}

func (req bundleRequest) toModel(tenantID uuid.UUID) model.Bundle {
	b := model.Bundle{
		TenantID:    tenantID,
		Name:        req.Name,
		Kind:        model.BundleKind(req.Kind),
		BundlePrice: req.BundlePrice,
		IsActive:    boolOr(req.IsActive, true),
	}
	for _, it := range req.Items {
		b.Items = append(b.Items, model.BundleItem{ProductID: it.ProductID, Weight: it.Weight, Quantity: it.Quantity})
	}
	for _, cr := range req.Requirements {
		b.Requirements = append(b.Requirements, model.CategoryRequirement{Category: cr.Category, Quantity: cr.Quantity, Weight: cr.Weight})
	}
	return b
}

type bundleResponse struct {
	model.Bundle
	Quote model.BundleQuote `json:"quote"`
}

// ListBundles возвращает наборы текущего арендатора.
func (h *Handler) ListBundles(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	bundles, err := h.service.ListBundles(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err, "list bundles error")
		return
	}
	writeList(w, bundles)
}

// CreateBundle создаёт набор.
func (h *Handler) CreateBundle(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	var req bundleRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.service.CreateBundle(r.Context(), req.toModel(tenantID))
	if err != nil {
		h.writeError(w, err, "create bundle error")
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

// GetBundle возвращает набор вместе с текущей стоимостью и процентом скидки.
func (h *Handler) GetBundle(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scoped(w, r)
	if !ok {
		return
	}

	b, quote, err := h.service.GetBundle(r.Context(), tenantID, id)
	if err != nil {
		h.writeError(w, err, "get bundle error")
		return
	}
	writeJSON(w, http.StatusOK, bundleResponse{Bundle: *b, Quote: quote})
}

// DeleteBundle удаляет набор.
func (h *Handler) DeleteBundle(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scoped(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteBundle(r.Context(), tenantID, id); err != nil {
		h.writeError(w, err, "delete bundle error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QuoteBundle вычисляет стоимость набора без сохранения.
func (h *Handler) QuoteBundle(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	var req bundleRequest
	if !h.decode(w, r, &req) {
		return
	}

	quote, err := h.service.QuoteBundle(r.Context(), req.toModel(tenantID))
	if err != nil {
		h.writeError(w, err, "quote bundle error")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}
