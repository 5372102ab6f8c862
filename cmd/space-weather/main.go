package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/space-weather-aggregation/internal/api/http"
	"github.com/i474232898/space-weather-aggregation/internal/config"
	"github.com/i474232898/space-weather-aggregation/internal/observability"
	"github.com/i474232898/space-weather-aggregation/internal/scheduler"
	"github.com/i474232898/space-weather-aggregation/internal/spaceweather"
	"github.com/i474232898/space-weather-aggregation/internal/spaceweather/feeds"
	"github.com/i474232898/space-weather-aggregation/internal/store"
)

func main() {
	// Load configuration (reads .env when present).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	// Shared HTTP client for outbound NOAA calls; per-feed timeouts are applied on the request context.
	httpClient := &http.Client{
		Timeout: cfg.FeedTimeout,
	}

	// Feed clients with resilience (backoff + circuit breaker).
	clients := feeds.NewClients(feeds.Options{
		BaseURL: cfg.NOAABaseURL,
		HTTP: feeds.HTTPClientConfig{
			Client: httpClient,
			Backoff: feeds.BackoffConfig{
				MaxRetries:      cfg.FeedMaxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		Timeout:        cfg.FeedTimeout,
		AlertsLimit:    cfg.AlertsLimit,
		KpHistoryLimit: cfg.KpHistoryLimit,
		SeriesLimit:    cfg.SolarWindSeriesLimit,
		Clock:          clock,
		Metrics:        metrics,
	})

	var cache spaceweather.CacheStore
	if cfg.CacheFile == "" {
		log.Println("INFO: CACHE_FILE is empty; snapshot cache is in memory only")
		cache = store.NewMemoryStore(clock)
	} else {
		fileStore := store.NewFileStore(cfg.CacheFile, clock)
		log.Printf("INFO: snapshot cache file: %s (max age %s)", fileStore.Path(), cfg.CacheMaxAge)
		cache = fileStore
	}

	aggregator := spaceweather.NewAggregator(clients, clock, metrics)
	coordinator := spaceweather.NewCoordinator(cache, aggregator, spaceweather.CoordinatorConfig{
		MaxAge:         cfg.CacheMaxAge,
		RefreshTimeout: cfg.RefreshTimeout,
	}, clock, metrics)

	// Scheduler that keeps the cache warm.
	if cfg.SchedulerEnabled {
		sched := scheduler.New(cfg.RefreshInterval, cfg.RefreshTimeout, coordinator)
		if err := sched.Start(); err != nil {
			log.Fatalf("failed to start scheduler: %v", err)
		}
		defer sched.Stop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "space-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.RefreshTimeout + 5*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "space-weather",
			"state":   coordinator.State().String(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, coordinator, cfg.KpHistoryLimit)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
