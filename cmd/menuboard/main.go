// Package main запускает HTTP-сервер сервиса меню-бордов.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/menuboard/internal/cache"
	"github.com/mmeshcher/menuboard/internal/catalogsource"
	"github.com/mmeshcher/menuboard/internal/config"
	"github.com/mmeshcher/menuboard/internal/handler"
	"github.com/mmeshcher/menuboard/internal/metrics"
	"github.com/mmeshcher/menuboard/internal/middleware"
	"github.com/mmeshcher/menuboard/internal/pricing"
	"github.com/mmeshcher/menuboard/internal/repository"
	"github.com/mmeshcher/menuboard/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		sugar.Warnw("failed to load .env", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	var redisClient *cache.Client
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = cache.New(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer redisClient.Close()
	}

	var source service.ProductSource
	if cfg.CatalogSourceAddress != "" {
		source = catalogsource.NewClient(cfg.CatalogSourceAddress)
	}

	loc, _ := cfg.Location()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := service.NewService(repo, source, pricing.NewEngine(cfg.Pricing.Options()), logger,
		service.WithCache(cache.NewCatalog(redisClient, cfg.CacheTTL), cache.NewMenu(redisClient, cfg.CacheTTL)),
		service.WithMetrics(metrics.New(registry)),
		service.WithDefaultTimezone(loc),
	)
	defer svc.Close()

	tenants := middleware.NewTenantMiddleware(cfg.TenantSecret)
	if cfg.TenantSecret == "" {
		sugar.Warn("TENANT_SECRET is empty, tenant tokens will not survive a restart")
	}

	h := handler.NewHandler(svc, logger, tenants, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Пересчёт меню всех арендаторов
	g.Go(func() error {
		return svc.RunMenuRefresh(ctx, cfg.RefreshInterval)
	})

	// Синхронизация цен товаров с внешним источником
	g.Go(func() error {
		return svc.RunProductSync(ctx, cfg.SyncInterval)
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting menuboard server",
			"addr", cfg.RunAddress,
			"cache", redisClient != nil,
			"productSync", source != nil,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
