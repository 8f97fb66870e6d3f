package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dcabrera/revolico-scraper/internal/api"
	"github.com/dcabrera/revolico-scraper/internal/browser"
	"github.com/dcabrera/revolico-scraper/internal/config"
	"github.com/dcabrera/revolico-scraper/internal/events"
	"github.com/dcabrera/revolico-scraper/internal/extract"
	"github.com/dcabrera/revolico-scraper/internal/fetch"
	"github.com/dcabrera/revolico-scraper/internal/listings"
	"github.com/dcabrera/revolico-scraper/internal/metrics"
	"github.com/dcabrera/revolico-scraper/internal/scraper"
	"github.com/dcabrera/revolico-scraper/internal/session"
	"github.com/dcabrera/revolico-scraper/internal/storage"
	"github.com/dcabrera/revolico-scraper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session cookie store
	var store session.Store
	switch cfg.Store.Type {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.Store.RedisAddr,
			DB:   cfg.Store.RedisDB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		store = session.NewRedisStore(redisClient)
	default:
		fileStore, err := session.NewFileStore(cfg.Store.FilePath)
		if err != nil {
			log.Error("failed to open cookie store", "error", err)
			os.Exit(1)
		}
		store = fileStore
	}

	// Escalation strategies, optionally from file
	strategies := fetch.DefaultStrategies(cfg.Scraper)
	if cfg.Scraper.StrategyFile != "" {
		strategies, err = fetch.LoadStrategies(cfg.Scraper.StrategyFile)
		if err != nil {
			log.Error("failed to load strategy file", "error", err)
			os.Exit(1)
		}
	}

	// Headless browser, when enabled, backs a final render strategy
	var renderer fetch.Renderer
	if browserEnabled() {
		b, err := browser.New(&browser.Options{
			Headless:       cfg.Browser.Headless,
			Timeout:        cfg.Browser.Timeout,
			ViewportWidth:  cfg.Browser.ViewportWidth,
			ViewportHeight: cfg.Browser.ViewportHeight,
			AcceptLanguage: cfg.Browser.AcceptLanguage,
			TimezoneID:     cfg.Browser.TimezoneID,
			Locale:         cfg.Browser.Locale,
			ProxyServer:    cfg.Browser.ProxyServer,
		})
		if err != nil {
			log.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer b.Close()
		renderer = b
		strategies = append(strategies, fetch.Strategy{
			ID:         "browser_render",
			Render:     true,
			MaxRetries: 1,
			URLLimit:   2,
		})
	}

	m := metrics.New()
	feed := events.NewChannelSink(256)
	sink := events.MultiSink{events.NewSlogSink(log), feed}

	engine := fetch.New(cfg.Scraper, fetch.Options{
		Store:    store,
		Renderer: renderer,
		Sink:     sink,
		Metrics:  m,
		Logger:   log,
	})

	runStore, err := storage.NewRunStore("scrape_runs.json", 50)
	if err != nil {
		log.Error("failed to open run store", "error", err)
		os.Exit(1)
	}

	// Listing database is optional
	var repo *listings.Repository
	var listingStore scraper.ListingStore
	var listingReader api.ListingReader
	if cfg.Database.Enabled {
		repo, err = listings.New(ctx, cfg.Database)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Error("failed to create schema", "error", err)
			os.Exit(1)
		}
		listingStore = repo
		listingReader = repo
	}

	runner := scraper.NewRunner(cfg.Scraper, engine, extract.New(log), scraper.RunnerOptions{
		Strategies: strategies,
		Store:      listingStore,
		Runs:       runStore,
		Sink:       sink,
		Metrics:    m,
		Logger:     log,
	})

	handlers := api.NewHandlers(runner, runStore, listingReader, feed, log)
	router := api.NewRouter(handlers, cfg.Server, m)

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	runner.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}

func browserEnabled() bool {
	v := os.Getenv("BROWSER_ENABLED")
	return v == "1" || v == "true"
}
