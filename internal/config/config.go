// Package config содержит логику чтения конфигурации сервиса меню-бордов.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/menuboard/internal/pricing"
)

const defaultRunAddress = "localhost:8080"

// Config содержит параметры конфигурации сервиса меню-бордов.
type Config struct {
	RunAddress           string `env:"RUN_ADDRESS"`
	DatabaseURI          string `env:"DATABASE_URI"`
	CatalogSourceAddress string `env:"CATALOG_SOURCE_ADDRESS"`
	RedisURL             string `env:"REDIS_URL"`

	TenantSecret    string        `env:"TENANT_SECRET"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"1m"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"1m"`
	SyncInterval    time.Duration `env:"SYNC_INTERVAL" envDefault:"5m"`
	DefaultTimezone string        `env:"DEFAULT_TIMEZONE" envDefault:"UTC"`

	Pricing PricingConfig `envPrefix:"PRICING_"`
}

// PricingConfig переключает необязательные режимы движка правил.
type PricingConfig struct {
	WrapMidnight     bool `env:"WRAP_MIDNIGHT"`
	IgnoreValidity   bool `env:"IGNORE_VALIDITY"`
	EnforceWeekdays  bool `env:"ENFORCE_WEEKDAYS"`
	ExclusiveSpecial bool `env:"EXCLUSIVE_SPECIAL"`
}

// Options возвращает опции движка правил.
func (p PricingConfig) Options() pricing.Options {
	return pricing.Options{
		WrapMidnight:     p.WrapMidnight,
		IgnoreValidity:   p.IgnoreValidity,
		EnforceWeekdays:  p.EnforceWeekdays,
		ExclusiveSpecial: p.ExclusiveSpecial,
	}
}

// Location возвращает часовой пояс по умолчанию.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.DefaultTimezone)
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envSourceAddress := cfg.CatalogSourceAddress
	envRedisURL := cfg.RedisURL

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.CatalogSourceAddress, "r", "", "product price source address")
	flag.StringVar(&cfg.RedisURL, "c", "", "redis URL for catalog and menu cache")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envSourceAddress != "" {
		cfg.CatalogSourceAddress = envSourceAddress
	}
	if envRedisURL != "" {
		cfg.RedisURL = envRedisURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}

	if cfg.CacheTTL < 0 || cfg.RefreshInterval <= 0 || cfg.SyncInterval <= 0 {
		return nil, fmt.Errorf("intervals must be positive: cache %s, refresh %s, sync %s",
			cfg.CacheTTL, cfg.RefreshInterval, cfg.SyncInterval)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("default timezone %q: %w", cfg.DefaultTimezone, err)
	}

	return cfg, nil
}
