package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/menuboard/internal/model"
)

type tierRequest struct {
	Category         string          `json:"category" validate:"required,max=100"`
	WeightOrQuantity string          `json:"weightOrQuantity" validate:"required,max=50"`
	BasePrice        decimal.Decimal `json:"basePrice" validate:"gte=0"`
	IsActive         *bool           `json:"isActive"`
}

func (req tierRequest) toModel(tenantID, id uuid.UUID) model.BasePricing {
	return model.BasePricing{
		ID:               id,
		TenantID:         tenantID,
		Category:         req.Category,
		WeightOrQuantity: req.WeightOrQuantity,
		BasePrice:        req.BasePrice,
		IsActive:         boolOr(req.IsActive, true),
	}
}

type timeRestrictionRequest struct {
	StartTime string `json:"startTime" validate:"required,hhmm"`
	EndTime   string `json:"endTime" validate:"required,hhmm"`
}

type conditionsRequest struct {
	TimeRestrictions *timeRestrictionRequest `json:"timeRestrictions"`
	DaysOfWeek       []int                   `json:"daysOfWeek" validate:"omitempty,dive,min=0,max=6"`
}

type ruleRequest struct {
	Name       string            `json:"name" validate:"required,max=200"`
	Category   string            `json:"category" validate:"required,max=100"`
	Type       string            `json:"type" validate:"required,oneof=percentage_discount fixed_discount bundle special"`
	Value      decimal.Decimal   `json:"value" validate:"gte=0"`
	Conditions conditionsRequest `json:"conditions"`
	Priority   int               `json:"priority"`
	IsActive   *bool             `json:"isActive"`
	ValidFrom  *time.Time        `json:"validFrom"`
	ValidUntil *time.Time        `json:"validUntil"`
}

func (req ruleRequest) toModel(tenantID, id uuid.UUID) model.PricingRule {
	rule := model.PricingRule{
		ID:       id,
		TenantID: tenantID,
		Name:     req.Name,
		Category: req.Category,
		Type:     model.RuleType(req.Type),
		Value:    req.Value,
		Conditions: model.RuleConditions{
			DaysOfWeek: req.Conditions.DaysOfWeek,
		},
		Priority:   req.Priority,
		IsActive:   boolOr(req.IsActive, true),
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
	}
	if tr := req.Conditions.TimeRestrictions; tr != nil {
		rule.Conditions.TimeRestrictions = &model.TimeRestriction{StartTime: tr.StartTime, EndTime: tr.EndTime}
	}
	return rule
}

type productRequest struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Category string          `json:"category" validate:"required,max=100"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	IsActive *bool           `json:"isActive"`
	InStock  *bool           `json:"inStock"`
}

func (req productRequest) toModel(tenantID, id uuid.UUID) model.Product {
	return model.Product{
		ID:       id,
		TenantID: tenantID,
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		IsActive: boolOr(req.IsActive, true),
		InStock:  boolOr(req.InStock, true),
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// ListTiers возвращает тарифы текущего арендатора.
func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	tiers, err := h.service.ListTiers(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err, "list tiers error")
		return
	}
	writeList(w, tiers)
}

// CreateTier создаёт тариф.
func (h *Handler) CreateTier(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	var req tierRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.service.CreateTier(r.Context(), req.toModel(tenantID, uuid.Nil))
	if err != nil {
		h.writeError(w, err, "create tier error")
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

// UpdateTier обновляет тариф.
func (h *Handler) UpdateTier(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scoped(w, r)
	if !ok {
		return
	}

	var req tierRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.UpdateTier(r.Context(), req.toModel(tenantID, id)); err != nil {
		h.writeError(w, err, "update tier error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTier удаляет тариф.
func (h *Handler) DeleteTier(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scoped(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTier(r.Context(), tenantID, id); err != nil {
		h.writeError(w, err, "delete tier error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRules возвращает промо-правила текущего арендатора.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	rules, err := h.service.ListRules(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err, "list rules error")
		return
	}
	writeList(w, rules)
}

// CreateRule создаёт промо-правило.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	var req ruleRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.service.CreateRule(r.Context(), req.toModel(tenantID, uuid.Nil))
	if err != nil {
		h.writeError(w, err, "create rule error")
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

// UpdateRule обновляет промо-правило.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scoped(w, r)
	if !ok {
		return
	}

	var req ruleRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.UpdateRule(r.Context(), req.toModel(tenantID, id)); err != nil {
		h.writeError(w, err, "update rule error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteRule удаляет промо-правило.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scoped(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteRule(r.Context(), tenantID, id); err != nil {
		h.writeError(w, err, "delete rule error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProducts возвращает товары текущего арендатора.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	products, err := h.service.ListProducts(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err, "list products error")
		return
	}
	writeList(w, products)
}

// CreateProduct создаёт товар.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	var req productRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.service.CreateProduct(r.Context(), req.toModel(tenantID, uuid.Nil))
	if err != nil {
		h.writeError(w, err, "create product error")
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

// UpdateProduct обновляет товар.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scoped(w, r)
	if !ok {
		return
	}

	var req productRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.UpdateProduct(r.Context(), req.toModel(tenantID, id)); err != nil {
		h.writeError(w, err, "update product error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteProduct удаляет товар.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scoped(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), tenantID, id); err != nil {
		h.writeError(w, err, "delete product error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
