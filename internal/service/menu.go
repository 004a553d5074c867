package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/menuboard/internal/model"
	"github.com/mmeshcher/menuboard/internal/pricing"
	"github.com/mmeshcher/menuboard/internal/validation"
)

// GetMenu возвращает цены всех активных тарифов арендатора.
// Без at меню вычисляется на текущий момент и может быть взято из кэша;
// с at вычисляется заново на указанный момент в часовом поясе арендатора.
func (s *Service) GetMenu(ctx context.Context, tenantID uuid.UUID, at *time.Time) (*model.Menu, error) {
	gen := s.generation(tenantID)
	if at == nil {
		cached, hit, err := s.menus.Get(ctx, tenantID)
		switch {
		case err != nil:
			s.metrics.IncCacheLookup("menu", "error")
			s.logger.Warn("menu cache read failed", zap.Error(err), zap.String("tenantID", tenantID.String()))
		case hit:
			s.metrics.IncCacheLookup("menu", "hit")
			return cached, nil
		case s.menus != nil:
			s.metrics.IncCacheLookup("menu", "miss")
		}
	}

	tenant, err := s.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if at != nil {
		now = *at
	}

	menu, err := s.evaluateMenu(ctx, tenant, now)
	if err != nil {
		return nil, err
	}
	for _, p := range menu.Prices {
		for _, r := range p.AppliedRules {
			s.metrics.IncRuleApplied(string(r.Type))
		}
	}

	if at == nil {
		if err := storeIfCurrent(ctx, s, s.menus, tenantID, gen, *menu); err != nil {
			s.logger.Warn("menu cache write failed", zap.Error(err), zap.String("tenantID", tenantID.String()))
		}
	}
	return menu, nil
}

// evaluateMenu вычисляет меню на момент now, переведённый в часовой пояс арендатора.
func (s *Service) evaluateMenu(ctx context.Context, tenant *model.Tenant, now time.Time) (*model.Menu, error) {
	snap, err := s.loadCatalog(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}

	local := now.In(s.location(tenant))
	return &model.Menu{
		TenantID:    tenant.ID,
		EvaluatedAt: local,
		Prices:      s.engine.EvaluateMenu(snap.Tiers, snap.Rules, local),
	}, nil
}

// RefreshMenus пересчитывает меню всех арендаторов и сохраняет их в кэш.
// Ошибка одного арендатора не останавливает обработку остальных. Без кэша меню ничего не делает.
func (s *Service) RefreshMenus(ctx context.Context) error {
	if s.menus == nil {
		return nil
	}

	tenants, err := s.repo.ListTenants(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	var errs []error
	for i := range tenants {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t := &tenants[i]

		gen := s.generation(t.ID)
		menu, err := s.evaluateMenu(ctx, t, now)
		if err != nil {
			errs = append(errs, wrapTenant(err, t.ID))
			continue
		}
		if err := storeIfCurrent(ctx, s, s.menus, t.ID, gen, *menu); err != nil {
			errs = append(errs, wrapTenant(err, t.ID))
		}
	}
	return errors.Join(errs...)
}

// ListBundles возвращает наборы арендатора.
func (s *Service) ListBundles(ctx context.Context, tenantID uuid.UUID) ([]model.Bundle, error) {
	return s.repo.ListBundles(ctx, tenantID)
}

// CreateBundle проверяет и сохраняет набор.
func (s *Service) CreateBundle(ctx context.Context, b model.Bundle) (uuid.UUID, error) {
	if err := validation.Bundle(b); err != nil {
		return uuid.Nil, err
	}
	return s.repo.CreateBundle(ctx, b)
}

// DeleteBundle удаляет набор.
func (s *Service) DeleteBundle(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.repo.DeleteBundle(ctx, tenantID, id)
}

// GetBundle возвращает набор вместе с вычисленной стоимостью.
func (s *Service) GetBundle(ctx context.Context, tenantID, id uuid.UUID) (*model.Bundle, model.BundleQuote, error) {
	b, err := s.repo.GetBundle(ctx, tenantID, id)
	if err != nil {
		return nil, model.BundleQuote{}, err
	}
	quote, err := s.QuoteBundle(ctx, *b)
	if err != nil {
		return nil, model.BundleQuote{}, err
	}
	return b, quote, nil
}

// QuoteBundle вычисляет исходную стоимость набора по текущим ценам товаров и процент скидки.
func (s *Service) QuoteBundle(ctx context.Context, b model.Bundle) (model.BundleQuote, error) {
	if err := validation.Bundle(b); err != nil {
		return model.BundleQuote{}, err
	}

	snap, err := s.loadCatalog(ctx, b.TenantID)
	if err != nil {
		return model.BundleQuote{}, err
	}

	quote := pricing.QuoteBundle(b, snap.Products)
	if len(quote.MissingProducts) > 0 {
		s.logger.Warn("bundle references products without price",
			zap.String("tenantID", b.TenantID.String()),
			zap.String("bundle", b.Name),
			zap.Int("missing", len(quote.MissingProducts)),
		)
	}
	return quote, nil
}
