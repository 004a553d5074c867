// Package cache хранит снимки каталога и вычисленных меню в Redis с ограниченным временем жизни.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mmeshcher/menuboard/internal/model"
)

const keyNamespace = "menuboard"

// Cmdable описывает команды Redis, которыми пользуется кэш.
type Cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Client оборачивает соединение с Redis.
type Client struct {
	store Cmdable
	raw   *redis.Client
}

// New подключается к Redis по URL и проверяет соединение.
func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{store: raw, raw: raw}, nil
}

// NewFromCmdable создаёт клиент поверх готовой реализации команд Redis.
func NewFromCmdable(c Cmdable) *Client {
	return &Client{store: c}
}

// Close закрывает соединение с Redis.
func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// Ping проверяет соединение.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Ping(ctx).Err()
}

func buildKey(parts ...string) string {
	filtered := make([]string, 0, len(parts)+1)
	filtered = append(filtered, keyNamespace)
	for _, p := range parts {
		if p != "" {
			filtered = append(filtered, p)
		}
	}
	return strings.Join(filtered, ":")
}

// Store хранит JSON-значения одного вида по арендатору.
// Нулевой *Store означает отключённый кэш: чтение всегда промахивается, запись ничего не делает.
type Store[T any] struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewStore создаёт хранилище с префиксом ключей prefix и временем жизни ttl.
// Без клиента возвращает nil.
func NewStore[T any](client *Client, prefix string, ttl time.Duration) *Store[T] {
	if client == nil {
		return nil
	}
	return &Store[T]{client: client, prefix: prefix, ttl: ttl}
}

// Key возвращает ключ Redis для арендатора.
func (s *Store[T]) Key(tenantID uuid.UUID) string {
	return buildKey(s.prefix, tenantID.String())
}

// Get возвращает значение и признак попадания.
func (s *Store[T]) Get(ctx context.Context, tenantID uuid.UUID) (*T, bool, error) {
	if s == nil {
		return nil, false, nil
	}

	raw, err := s.client.store.Get(ctx, s.Key(tenantID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s: %w", s.prefix, err)
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", s.prefix, err)
	}
	return &v, true, nil
}

// Set сохраняет значение на время жизни хранилища.
func (s *Store[T]) Set(ctx context.Context, tenantID uuid.UUID, v T) error {
	if s == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.prefix, err)
	}
	if err := s.client.store.Set(ctx, s.Key(tenantID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.prefix, err)
	}
	return nil
}

// Invalidate удаляет значение арендатора.
func (s *Store[T]) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	if s == nil {
		return nil
	}
	if err := s.client.store.Del(ctx, s.Key(tenantID)).Err(); err != nil {
		return fmt.Errorf("invalidate %s: %w", s.prefix, err)
	}
	return nil
}

// CatalogSnapshot: тарифы, правила и товары арендатора, прочитанные из БД.
type CatalogSnapshot struct {
	Tiers    []model.BasePricing `json:"tiers"`
	Rules    []model.PricingRule `json:"rules"`
	Products []model.Product     `json:"products"`
}

// NewCatalog создаёт кэш снимков каталога.
func NewCatalog(client *Client, ttl time.Duration) *Store[CatalogSnapshot] {
	return NewStore[CatalogSnapshot](client, "catalog", ttl)
}

// NewMenu создаёт кэш вычисленных меню.
func NewMenu(client *Client, ttl time.Duration) *Store[model.Menu] {
	return NewStore[model.Menu](client, "menu", ttl)
}
