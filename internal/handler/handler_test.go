package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/menuboard/internal/middleware"
	"github.com/mmeshcher/menuboard/internal/model"
	"github.com/mmeshcher/menuboard/internal/repository"
	"github.com/mmeshcher/menuboard/internal/validation"
)

type stubService struct {
	pingErr error

	tenant    *model.Tenant
	tenantErr error

	menu   *model.Menu
	menuAt *time.Time

	tiers         []model.BasePricing
	createTierErr error

	createdRule   model.PricingRule
	createRuleErr error

	deleteProductErr error

	bundle *model.Bundle
	quote  model.BundleQuote
}

func (s *stubService) Ping(ctx context.Context) error { return s.pingErr }

func (s *stubService) CreateTenant(ctx context.Context, name, timezone string) (*model.Tenant, error) {
	return s.tenant, s.tenantErr
}

func (s *stubService) GetTenant(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	return s.tenant, s.tenantErr
}

func (s *stubService) GetMenu(ctx context.Context, tenantID uuid.UUID, at *time.Time) (*model.Menu, error) {
	s.menuAt = at
	return s.menu, nil
}

func (s *stubService) ListTiers(ctx context.Context, tenantID uuid.UUID) ([]model.BasePricing, error) {
	return s.tiers, nil
}

func (s *stubService) CreateTier(ctx context.Context, t model.BasePricing) (uuid.UUID, error) {
	return uuid.New(), s.createTierErr
}

func (s *stubService) UpdateTier(ctx context.Context, t model.BasePricing) error { return nil }

func (s *stubService) DeleteTier(ctx context.Context, tenantID, id uuid.UUID) error { return nil }

func (s *stubService) ListRules(ctx context.Context, tenantID uuid.UUID) ([]model.PricingRule, error) {
	return nil, nil
}

func (s *stubService) CreateRule(ctx context.Context, rule model.PricingRule) (uuid.UUID, error) {
	s.createdRule = rule
	if s.createRuleErr != nil {
		return uuid.Nil, s.createRuleErr
	}
	return uuid.New(), nil
}

func (s *stubService) UpdateRule(ctx context.Context, rule model.PricingRule) error { return nil }

func (s *stubService) DeleteRule(ctx context.Context, tenantID, id uuid.UUID) error { return nil }

func (s *stubService) ListProducts(ctx context.Context, tenantID uuid.UUID) ([]model.Product, error) {
	return nil, nil
}

func (s *stubService) CreateProduct(ctx context.Context, p model.Product) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (s *stubService) UpdateProduct(ctx context.Context, p model.Product) error { return nil }

func (s *stubService) DeleteProduct(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.deleteProductErr
}

func (s *stubService) ListBundles(ctx context.Context, tenantID uuid.UUID) ([]model.Bundle, error) {
	return nil, nil
}

func (s *stubService) GetBundle(ctx context.Context, tenantID, id uuid.UUID) (*model.Bundle, model.BundleQuote, error) {
	if s.bundle == nil {
		return nil, model.BundleQuote{}, repository.ErrNotFound
	}
	return s.bundle, s.quote, nil
}

func (s *stubService) CreateBundle(ctx context.Context, b model.Bundle) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (s *stubService) DeleteBundle(ctx context.Context, tenantID, id uuid.UUID) error { return nil }

func (s *stubService) QuoteBundle(ctx context.Context, b model.Bundle) (model.BundleQuote, error) {
	return s.quote, nil
}

const testSecret = "test-secret"

func newTestServer(t *testing.T, svc Service) *httptest.Server {
	t.Helper()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	h := NewHandler(svc, zap.NewNop(), middleware.NewTenantMiddleware(testSecret), metrics)

	ts := httptest.NewServer(h.SetupRouter())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string, tenantID uuid.UUID) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if tenantID != uuid.Nil {
		req.Header.Set(middleware.TenantHeaderName, middleware.NewTenantMiddleware(testSecret).Token(tenantID))
	}

	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestCreateTenant_IssuesToken(t *testing.T) {
	tenant := &model.Tenant{ID: uuid.New(), Name: "Green Leaf", Timezone: "America/Denver"}
	svc := &stubService{tenant: tenant, menu: &model.Menu{TenantID: tenant.ID}}
	ts := newTestServer(t, svc)

	res := do(t, ts, http.MethodPost, "/api/tenants", `{"name":"Green Leaf","timezone":"America/Denver"}`, uuid.Nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var body tenantResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, tenant.ID, body.ID)
	assert.NotEmpty(t, body.Token)

	var cookie *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == middleware.TenantCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "tenant cookie must be set")
	assert.Equal(t, body.Token, cookie.Value)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/menu", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	menuRes, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer menuRes.Body.Close()
	assert.Equal(t, http.StatusOK, menuRes.StatusCode)
}

func TestCreateTenant_ValidatesRequest(t *testing.T) {
	ts := newTestServer(t, &stubService{})

	res := do(t, ts, http.MethodPost, "/api/tenants", `{"timezone":"UTC"}`, uuid.Nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res = do(t, ts, http.MethodPost, "/api/tenants", `{"name":`, uuid.Nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestIssueToken_UnknownTenant(t *testing.T) {
	ts := newTestServer(t, &stubService{tenantErr: repository.ErrTenantNotFound})

	res := do(t, ts, http.MethodPost, "/api/tenants/"+uuid.NewString()+"/token", "", uuid.Nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestGetMenu(t *testing.T) {
	tenantID := uuid.New()
	svc := &stubService{menu: &model.Menu{
		TenantID: tenantID,
		Prices: []model.TierPrice{{
			Tier: model.BasePricing{TenantID: tenantID, Category: "flower", WeightOrQuantity: "3.5g", BasePrice: decimal.NewFromInt(100)},
			Evaluation: model.Evaluation{
				FinalPrice:    decimal.NewFromInt(80),
				TotalDiscount: decimal.NewFromInt(20),
				AppliedRules: []model.PricingRule{{
					TenantID: tenantID,
					Name:     "Happy hour",
					Category: model.CategoryAll,
					Type:     model.RuleTypePercentageDiscount,
					Value:    decimal.NewFromInt(20),
				}},
			},
		}},
	}}
	ts := newTestServer(t, svc)

	res := do(t, ts, http.MethodGet, "/api/menu", "", uuid.Nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = do(t, ts, http.MethodGet, "/api/menu?at=noon", "", tenantID)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = do(t, ts, http.MethodGet, "/api/menu?at=2026-10-17T12:00:00-07:00", "", tenantID)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotNil(t, svc.menuAt)
	assert.True(t, svc.menuAt.Equal(time.Date(2026, 10, 17, 19, 0, 0, 0, time.UTC)))

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "tenantId")
	assert.NotContains(t, string(body), tenantID.String())

	var menu menuResponse
	require.NoError(t, json.Unmarshal(body, &menu))
	require.Len(t, menu.Prices, 1)
	assert.Equal(t, "3.5g", menu.Prices[0].WeightOrQuantity)
	assert.True(t, menu.Prices[0].FinalPrice.Equal(decimal.NewFromInt(80)))
	require.Len(t, menu.Prices[0].AppliedRules, 1)
	assert.Equal(t, "Happy hour", menu.Prices[0].AppliedRules[0].Name)
}

func TestCreateRule(t *testing.T) {
	tenantID := uuid.New()

	t.Run("valid rule gets defaults", func(t *testing.T) {
		svc := &stubService{}
		ts := newTestServer(t, svc)

		res := do(t, ts, http.MethodPost, "/api/rules", `{
			"name":"Happy hour","category":"all","type":"percentage_discount","value":"20",
			"conditions":{"timeRestrictions":{"startTime":"16:00","endTime":"18:00"}}
		}`, tenantID)
		require.Equal(t, http.StatusCreated, res.StatusCode)

		assert.Equal(t, tenantID, svc.createdRule.TenantID)
		assert.True(t, svc.createdRule.IsActive)
		assert.Equal(t, model.RuleTypePercentageDiscount, svc.createdRule.Type)
		require.NotNil(t, svc.createdRule.Conditions.TimeRestrictions)
		assert.Equal(t, "16:00", svc.createdRule.Conditions.TimeRestrictions.StartTime)
	})

	t.Run("invalid request", func(t *testing.T) {
		ts := newTestServer(t, &stubService{})

		res := do(t, ts, http.MethodPost, "/api/rules", `{
			"name":"Broken","category":"flower","type":"bogus","value":"-5",
			"conditions":{"timeRestrictions":{"startTime":"9:00","endTime":"17:00"},"daysOfWeek":[7]}
		}`, tenantID)
		require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

		var body errorResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
		assert.Contains(t, body.Fields, "type")
		assert.Contains(t, body.Fields, "value")
		assert.Contains(t, body.Fields, "conditions.timeRestrictions.startTime")
		assert.Contains(t, body.Fields, "conditions.daysOfWeek[0]")
	})

	t.Run("service validation error", func(t *testing.T) {
		ts := newTestServer(t, &stubService{createRuleErr: &validation.Error{Fields: map[string]string{"validUntil": "must not be before validFrom"}}})

		res := do(t, ts, http.MethodPost, "/api/rules", `{"name":"R","category":"all","type":"special","value":"25"}`, tenantID)
		assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	})

	t.Run("internal error", func(t *testing.T) {
		ts := newTestServer(t, &stubService{createRuleErr: errors.New("db is down")})

		res := do(t, ts, http.MethodPost, "/api/rules", `{"name":"R","category":"all","type":"special","value":"25"}`, tenantID)
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	})
}

func TestTiers(t *testing.T) {
	tenantID := uuid.New()

	ts := newTestServer(t, &stubService{})
	res := do(t, ts, http.MethodGet, "/api/tiers", "", tenantID)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	ts = newTestServer(t, &stubService{createTierErr: repository.ErrTierExists})
	res = do(t, ts, http.MethodPost, "/api/tiers", `{"category":"flower","weightOrQuantity":"3.5g","basePrice":"35"}`, tenantID)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res = do(t, ts, http.MethodPut, "/api/tiers/not-a-uuid", `{"category":"flower","weightOrQuantity":"3.5g","basePrice":"35"}`, tenantID)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestDeleteProduct_NotFound(t *testing.T) {
	ts := newTestServer(t, &stubService{deleteProductErr: repository.ErrNotFound})

	res := do(t, ts, http.MethodDelete, "/api/products/"+uuid.NewString(), "", uuid.New())
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestGetBundle_IncludesQuote(t *testing.T) {
	tenantID := uuid.New()
	bundle := &model.Bundle{ID: uuid.New(), TenantID: tenantID, Name: "Weekend pack", Kind: model.BundleKindSpecificProducts, BundlePrice: decimal.NewFromInt(60)}
	svc := &stubService{
		bundle: bundle,
		quote: model.BundleQuote{
			OriginalPrice:      decimal.NewFromInt(75),
			BundlePrice:        decimal.NewFromInt(60),
			DiscountPercentage: decimal.NewFromInt(20),
		},
	}
	ts := newTestServer(t, svc)

	res := do(t, ts, http.MethodGet, "/api/bundles/"+bundle.ID.String(), "", tenantID)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body bundleResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "Weekend pack", body.Name)
	assert.True(t, body.Quote.DiscountPercentage.Equal(decimal.NewFromInt(20)))

	res = do(t, ts, http.MethodPost, "/api/bundles/quote", `{"name":"Any two","kind":"category","bundlePrice":"50","requirements":[{"category":"edibles","quantity":0}]}`, tenantID)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, &stubService{})
	assert.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/healthz", "", uuid.Nil).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/metrics", "", uuid.Nil).StatusCode)

	ts = newTestServer(t, &stubService{pingErr: errors.New("no db")})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, ts, http.MethodGet, "/healthz", "", uuid.Nil).StatusCode)
}
