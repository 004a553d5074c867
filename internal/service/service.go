// Package service реализует бизнес-логику сервиса меню-бордов.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/menuboard/internal/cache"
	"github.com/mmeshcher/menuboard/internal/catalogsource"
	"github.com/mmeshcher/menuboard/internal/metrics"
	"github.com/mmeshcher/menuboard/internal/model"
	"github.com/mmeshcher/menuboard/internal/pricing"
	"github.com/mmeshcher/menuboard/internal/repository"
	"github.com/mmeshcher/menuboard/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error

	CreateTenant(ctx context.Context, name, timezone string) (*model.Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	ListTenants(ctx context.Context) ([]model.Tenant, error)

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
	UpsertExternalProducts(ctx context.Context, tenantID uuid.UUID, products []repository.ExternalProduct) (int, error)

	ListBundles(ctx context.Context, tenantID uuid.UUID) ([]model.Bundle, error)
	GetBundle(ctx context.Context, tenantID, id uuid.UUID) (*model.Bundle, error)
	CreateBundle(ctx context.Context, b model.Bundle) (uuid.UUID, error)
	DeleteBundle(ctx context.Context, tenantID, id uuid.UUID) error
}

// ProductSource описывает внешний источник цен товаров.
type ProductSource interface {
	GetProducts(ctx context.Context, tenantID uuid.UUID) ([]catalogsource.Product, int, time.Duration, error)
}

// Service содержит бизнес-логику сервиса меню-бордов.
type Service struct {
	repo      Repository
	source    ProductSource
	engine    *pricing.Engine
	catalog   *cache.Store[cache.CatalogSnapshot]
	menus     *cache.Store[model.Menu]
	metrics   *metrics.Metrics
	logger    *zap.Logger
	defaultTZ *time.Location
	now       func() time.Time

	// generations хранит счётчик изменений каталога по арендатору (*atomic.Uint64).
	generations sync.Map
}

// Option настраивает необязательные зависимости сервиса.
type Option func(*Service)

// WithCache подключает кэши каталога и вычисленных меню.
func WithCache(catalog *cache.Store[cache.CatalogSnapshot], menus *cache.Store[model.Menu]) Option {
	return func(s *Service) {
		s.catalog = catalog
		s.menus = menus
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDefaultTimezone задаёт часовой пояс для арендаторов без собственного пояса.
func WithDefaultTimezone(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.defaultTZ = loc
		}
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService создаёт новый сервис с указанным репозиторием, источником цен и движком правил.
// source может быть nil: тогда синхронизация товаров отключена.
func NewService(repo Repository, source ProductSource, engine *pricing.Engine, logger *zap.Logger, opts ...Option) *Service {
	if engine == nil {
		engine = pricing.NewEngine(pricing.Options{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:      repo,
		source:    source,
		engine:    engine,
		logger:    logger,
		defaultTZ: time.UTC,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// CreateTenant регистрирует диспансер. Пустой timezone заменяется поясом по умолчанию.
func (s *Service) CreateTenant(ctx context.Context, name, timezone string) (*model.Tenant, error) {
	fields := map[string]string{}
	if strings.TrimSpace(name) == "" {
		fields["name"] = "is required"
	}
	if timezone == "" {
		timezone = s.defaultTZ.String()
	} else if !validation.IsTimezone(timezone) {
		fields["timezone"] = "must be an IANA time zone"
	}
	if len(fields) > 0 {
		return nil, &validation.Error{Fields: fields}
	}
	return s.repo.CreateTenant(ctx, strings.TrimSpace(name), timezone)
}

// GetTenant возвращает диспансер по идентификатору.
func (s *Service) GetTenant(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	return s.repo.GetTenant(ctx, id)
}

// ListTiers возвращает тарифы арендатора.
func (s *Service) ListTiers(ctx context.Context, tenantID uuid.UUID) ([]model.BasePricing, error) {
	return s.repo.ListTiers(ctx, tenantID)
}

// CreateTier проверяет и сохраняет тариф.
func (s *Service) CreateTier(ctx context.Context, t model.BasePricing) (uuid.UUID, error) {
	if err := validation.Tier(t); err != nil {
		return uuid.Nil, err
	}
	id, err := s.repo.CreateTier(ctx, t)
	if err != nil {
		return uuid.Nil, err
	}
	s.invalidate(ctx, t.TenantID)
	return id, nil
}

// UpdateTier проверяет и обновляет тариф.
func (s *Service) UpdateTier(ctx context.Context, t model.BasePricing) error {
	if err := validation.Tier(t); err != nil {
		return err
	}
	if err := s.repo.UpdateTier(ctx, t); err != nil {
		return err
	}
	s.invalidate(ctx, t.TenantID)
	return nil
}

// DeleteTier удаляет тариф.
func (s *Service) DeleteTier(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.repo.DeleteTier(ctx, tenantID, id); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	return nil
}

// ListRules возвращает промо-правила арендатора.
func (s *Service) ListRules(ctx context.Context, tenantID uuid.UUID) ([]model.PricingRule, error) {
	return s.repo.ListRules(ctx, tenantID)
}

// CreateRule проверяет и сохраняет промо-правило.
func (s *Service) CreateRule(ctx context.Context, rule model.PricingRule) (uuid.UUID, error) {
	if err := validation.Rule(rule); err != nil {
		return uuid.Nil, err
	}
	id, err := s.repo.CreateRule(ctx, rule)
	if err != nil {
		return uuid.Nil, err
	}
	s.invalidate(ctx, rule.TenantID)
	return id, nil
}

// UpdateRule проверяет и обновляет промо-правило.
func (s *Service) UpdateRule(ctx context.Context, rule model.PricingRule) error {
	if err := validation.Rule(rule); err != nil {
		return err
	}
	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return err
	}
	s.invalidate(ctx, rule.TenantID)
	return nil
}

// DeleteRule удаляет промо-правило.
func (s *Service) DeleteRule(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.repo.DeleteRule(ctx, tenantID, id); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	return nil
}

// ListProducts возвращает товары арендатора.
func (s *Service) ListProducts(ctx context.Context, tenantID uuid.UUID) ([]model.Product, error) {
	return s.repo.ListProducts(ctx, tenantID)
}

// CreateProduct проверяет и сохраняет товар.
func (s *Service) CreateProduct(ctx context.Context, p model.Product) (uuid.UUID, error) {
	if err := validateProduct(p); err != nil {
		return uuid.Nil, err
	}
	id, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return uuid.Nil, err
	}
	s.invalidate(ctx, p.TenantID)
	return id, nil
}

// UpdateProduct проверяет и обновляет товар.
func (s *Service) UpdateProduct(ctx context.Context, p model.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return err
	}
	s.invalidate(ctx, p.TenantID)
	return nil
}

// DeleteProduct удаляет товар.
func (s *Service) DeleteProduct(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.repo.DeleteProduct(ctx, tenantID, id); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	return nil
}

func validateProduct(p model.Product) error {
	fields := map[string]string{}
	if strings.TrimSpace(p.Name) == "" {
		fields["name"] = "is required"
	}
	if strings.TrimSpace(p.Category) == "" {
		fields["category"] = "is required"
	}
	if p.Price.IsNegative() {
		fields["price"] = "must be at least 0"
	} else if !validation.IsCents(p.Price) {
		fields["price"] = "must have at most 2 decimal places"
	}
	if len(fields) == 0 {
		return nil
	}
	return &validation.Error{Fields: fields}
}

// loadCatalog возвращает снимок каталога из кэша или из БД.
// Ошибки кэша не прерывают запрос.
func (s *Service) loadCatalog(ctx context.Context, tenantID uuid.UUID) (cache.CatalogSnapshot, error) {
	cached, hit, err := s.catalog.Get(ctx, tenantID)
	switch {
	case err != nil:
		s.metrics.IncCacheLookup("catalog", "error")
		s.logger.Warn("catalog cache read failed", zap.Error(err), zap.String("tenantID", tenantID.String()))
	case hit:
		s.metrics.IncCacheLookup("catalog", "hit")
		return *cached, nil
	case s.catalog != nil:
		s.metrics.IncCacheLookup("catalog", "miss")
	}

	gen := s.generation(tenantID)
	var snap cache.CatalogSnapshot
	if snap.Tiers, err = s.repo.ListTiers(ctx, tenantID); err != nil {
		return snap, err
	}
	if snap.Rules, err = s.repo.ListRules(ctx, tenantID); err != nil {
		return snap, err
	}
	if snap.Products, err = s.repo.ListProducts(ctx, tenantID); err != nil {
		return snap, err
	}

	if err := storeIfCurrent(ctx, s, s.catalog, tenantID, gen, snap); err != nil {
		s.logger.Warn("catalog cache write failed", zap.Error(err), zap.String("tenantID", tenantID.String()))
	}
	return snap, nil
}

// invalidate сбрасывает кэши арендатора после изменения каталога.
func (s *Service) invalidate(ctx context.Context, tenantID uuid.UUID) {
	s.counter(tenantID).Add(1)

	if err := s.catalog.Invalidate(ctx, tenantID); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err), zap.String("tenantID", tenantID.String()))
	}
	if err := s.menus.Invalidate(ctx, tenantID); err != nil {
		s.logger.Warn("menu cache invalidation failed", zap.Error(err), zap.String("tenantID", tenantID.String()))
	}
}

func (s *Service) counter(tenantID uuid.UUID) *atomic.Uint64 {
	v, _ := s.generations.LoadOrStore(tenantID, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

// generation возвращает номер версии каталога арендатора в этом процессе.
func (s *Service) generation(tenantID uuid.UUID) uint64 {
	return s.counter(tenantID).Load()
}

// storeIfCurrent кэширует значение, прочитанное при версии gen, только если каталог с тех пор не менялся.
// Если изменение произошло во время записи, значение сразу удаляется.
func storeIfCurrent[T any](ctx context.Context, s *Service, store *cache.Store[T], tenantID uuid.UUID, gen uint64, v T) error {
	if store == nil || s.generation(tenantID) != gen {
		return nil
	}
	if err := store.Set(ctx, tenantID, v); err != nil {
		return err
	}
	if s.generation(tenantID) != gen {
		return store.Invalidate(ctx, tenantID)
	}
	return nil
}

func (s *Service) location(t *model.Tenant) *time.Location {
	if t == nil || t.Timezone == "" {
		return s.defaultTZ
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		s.logger.Warn("unknown tenant timezone", zap.String("timezone", t.Timezone), zap.Error(err))
		return s.defaultTZ
	}
	return loc
}

func wrapTenant(err error, tenantID uuid.UUID) error {
	return fmt.Errorf("tenant %s: %w", tenantID, err)
}
