// Package handler содержит HTTP-обработчики API сервиса меню-бордов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/menuboard/internal/middleware"
	"github.com/mmeshcher/menuboard/internal/model"
	"github.com/mmeshcher/menuboard/internal/repository"
	"github.com/mmeshcher/menuboard/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error

	CreateTenant(ctx context.Context, name, timezone string) (*model.Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*model.Tenant, error)

	GetMenu(ctx context.Context, tenantID uuid.UUID, at *time.Time) (*model.Menu, error)

	ListTiers(ctx context.Context, tenantID uuid.UUID) ([]model.BasePricing, error)
	CreateTier(ctx context.Context, t model.BasePricing) (uuid.UUID, error)
	UpdateTier(ctx context.Context, t model.BasePricing) error
	DeleteTier(ctx context.Context, tenantID, id uuid.UUID) error

	ListRules(ctx context.Context, tenantID uuid.UUID) ([]model.PricingRule, error)
	CreateRule(ctx context.Context, rule model.PricingRule) (uuid.UUID, error)
	UpdateRule(ctx context.Context, rule model.PricingRule) error
	DeleteRule(ctx context.Context, tenantID, id uuid.UUID) error

	ListProducts(ctx context.Context, tenantID uuid.UUID) ([]model.Product, error)
	CreateProduct(ctx context.Context, p model.Product) (uuid.UUID, error)
	UpdateProduct(ctx context.Context, p model.Product) error
	DeleteProduct(ctx context.Context, tenantID, id uuid.UUID) error

	ListBundles(ctx context.Context, tenantID uuid.UUID) ([]model.Bundle, error)
	GetBundle(ctx context.Context, tenantID, id uuid.UUID) (*model.Bundle, model.BundleQuote, error)
	CreateBundle(ctx context.Context, b model.Bundle) (uuid.UUID, error)
	DeleteBundle(ctx context.Context, tenantID, id uuid.UUID) error
	QuoteBundle(ctx context.Context, b model.Bundle) (model.BundleQuote, error)
}

// Handler реализует HTTP-обработчики API сервиса меню-бордов.
type Handler struct {
	service Service
	logger  *zap.Logger
	tenants *middleware.TenantMiddleware
	metrics http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// metricsHandler может быть nil: тогда /metrics не публикуется.
func NewHandler(s Service, logger *zap.Logger, tenants *middleware.TenantMiddleware, metricsHandler http.Handler) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
		tenants: tenants,
		metrics: metricsHandler,
	}
}

type createTenantRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Timezone string `json:"timezone" validate:"omitempty,max=64"`
}

type tenantResponse struct {
	model.Tenant
	Token string `json:"token"`
}

// CreateTenant регистрирует диспансер и выдаёт токен арендатора в cookie и в теле ответа.
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if !h.decode(w, r, &req) {
		return
	}

	tenant, err := h.service.CreateTenant(r.Context(), req.Name, req.Timezone)
	if err != nil {
		h.writeError(w, err, "create tenant error")
		return
	}

	token := h.tenants.SetTenantCookie(w, tenant.ID)
	writeJSON(w, http.StatusCreated, tenantResponse{Tenant: *tenant, Token: token})
}

// IssueToken повторно выдаёт токен существующему арендатору.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	tenant, err := h.service.GetTenant(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "issue token error")
		return
	}

	token := h.tenants.SetTenantCookie(w, tenant.ID)
	writeJSON(w, http.StatusOK, tenantResponse{Tenant: *tenant, Token: token})
}

type menuRuleResponse struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Type     model.RuleType  `json:"type"`
	Value    decimal.Decimal `json:"value"`
	Priority int             `json:"priority"`
}

type menuPriceResponse struct {
	TierID           uuid.UUID          `json:"tierId"`
	Category         string             `json:"category"`
	WeightOrQuantity string             `json:"weightOrQuantity"`
	BasePrice        decimal.Decimal    `json:"basePrice"`
	FinalPrice       decimal.Decimal    `json:"finalPrice"`
	TotalDiscount    decimal.Decimal    `json:"totalDiscount"`
	AppliedRules     []menuRuleResponse `json:"appliedRules"`
}

// menuResponse показывается на витрине и не раскрывает идентификатор арендатора.
type menuResponse struct {
	EvaluatedAt time.Time           `json:"evaluatedAt"`
	Prices      []menuPriceResponse `json:"prices"`
}

func newMenuResponse(m *model.Menu) menuResponse {
	res := menuResponse{
		EvaluatedAt: m.EvaluatedAt,
		Prices:      make([]menuPriceResponse, 0, len(m.Prices)),
	}
	for _, p := range m.Prices {
		price := menuPriceResponse{
			TierID:           p.Tier.ID,
			Category:         p.Tier.Category,
			WeightOrQuantity: p.Tier.WeightOrQuantity,
			BasePrice:        p.Tier.BasePrice,
			FinalPrice:       p.FinalPrice,
			TotalDiscount:    p.TotalDiscount,
			AppliedRules:     make([]menuRuleResponse, 0, len(p.AppliedRules)),
		}
		for _, r := range p.AppliedRules {
			price.AppliedRules = append(price.AppliedRules, menuRuleResponse{
				ID:       r.ID,
				Name:     r.Name,
				Type:     r.Type,
				Value:    r.Value,
				Priority: r.Priority,
			})
		}
		res.Prices = append(res.Prices, price)
	}
	return res
}

// GetMenu возвращает вычисленные цены тарифов арендатора.
// Необязательный параметр at (RFC 3339) задаёт момент вычисления.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	var at *time.Time
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "at must be an RFC 3339 timestamp"})
			return
		}
		at = &parsed
	}

	menu, err := h.service.GetMenu(r.Context(), tenantID, at)
	if err != nil {
		h.writeError(w, err, "get menu error")
		return
	}

	writeJSON(w, http.StatusOK, newMenuResponse(menu))
}

// Health сообщает о доступности хранилища.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	if err := validation.Struct(dst); err != nil {
		h.writeError(w, err, "validate request error")
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrTenantNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, repository.ErrTierExists):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	default:
		h.logger.Error(msg, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tenantFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.GetTenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// scoped извлекает арендатора из контекста и идентификатор записи из пути.
func scoped(w http.ResponseWriter, r *http.Request) (tenantID, id uuid.UUID, ok bool) {
	if tenantID, ok = tenantFromRequest(w, r); !ok {
		return
	}
	id, ok = pathID(w, r)
	return
}

type idResponse struct {
	ID uuid.UUID `json:"id"`
}

func writeList[T any](w http.ResponseWriter, items []T) {
	if len(items) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
