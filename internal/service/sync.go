package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/menuboard/internal/catalogsource"
	"github.com/mmeshcher/menuboard/internal/metrics"
	"github.com/mmeshcher/menuboard/internal/repository"
)

// RunMenuRefresh периодически пересчитывает меню всех арендаторов.
// Блокируется до отмены ctx. Без кэша меню сразу возвращает nil.
func (s *Service) RunMenuRefresh(ctx context.Context, interval time.Duration) error {
	if s.menus == nil {
		return nil
	}
	return s.runTicker(ctx, interval, metrics.JobMenuRefresh, s.RefreshMenus)
}

// RunProductSync периодически подтягивает цены товаров из внешнего источника.
// Без источника сразу возвращает nil.
func (s *Service) RunProductSync(ctx context.Context, interval time.Duration) error {
	if s.source == nil {
		return nil
	}
	return s.runTicker(ctx, interval, metrics.JobProductSync, s.SyncProducts)
}

func (s *Service) runTicker(ctx context.Context, interval time.Duration, job string, fn func(context.Context) error) error {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			started := time.Now()
			err := fn(ctx)
			s.metrics.ObserveJob(job, time.Since(started), err)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("background job failed", zap.String("job", job), zap.Error(err))
			}
		}
	}
}

// SyncProducts загружает товары каждого арендатора из внешнего источника и сохраняет изменения.
func (s *Service) SyncProducts(ctx context.Context) error {
	if s.source == nil {
		return nil
	}

	tenants, err := s.repo.ListTenants(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, t := range tenants {
		products, statusCode, err := s.fetchProducts(ctx, t.ID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, wrapTenant(err, t.ID))
			continue
		}

		if statusCode == http.StatusTooManyRequests {
			s.logger.Warn("product source still throttled, tenant skipped", zap.String("tenantID", t.ID.String()))
			continue
		}

		if len(products) == 0 {
			continue
		}

		batch := make([]repository.ExternalProduct, 0, len(products))
		for _, p := range products {
			if p.ID == "" || p.Price.IsNegative() {
				s.logger.Warn("skip malformed external product",
					zap.String("tenantID", t.ID.String()),
					zap.String("externalID", p.ID),
				)
				continue
			}
			batch = append(batch, repository.ExternalProduct{
				ExternalID: p.ID,
				Name:       p.Name,
				Category:   p.Category,
				Price:      p.Price,
				IsActive:   p.Active,
				InStock:    p.InStock,
			})
		}

		changed, err := s.repo.UpsertExternalProducts(ctx, t.ID, batch)
		if err != nil {
			errs = append(errs, wrapTenant(err, t.ID))
			continue
		}
		if changed > 0 {
			s.logger.Info("products synced", zap.String("tenantID", t.ID.String()), zap.Int("changed", changed))
			s.invalidate(ctx, t.ID)
		}
	}
	return errors.Join(errs...)
}

// fetchProducts запрашивает товары арендатора. На ответ 429 повторяет запрос
// один раз после паузы Retry-After.
func (s *Service) fetchProducts(ctx context.Context, tenantID uuid.UUID) ([]catalogsource.Product, int, error) {
	for attempt := 0; ; attempt++ {
		products, statusCode, retryAfter, err := s.source.GetProducts(ctx, tenantID)
		if err != nil || statusCode != http.StatusTooManyRequests || attempt > 0 {
			return products, statusCode, err
		}

		if retryAfter > 0 {
			timer := time.NewTimer(retryAfter)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, 0, ctx.Err()
			case <-timer.C:
			}
		}
	}
}
