package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

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
	maxListings := flag.Int("max", 0, "maximum listings to scrape (overrides SCRAPER_MAX_LISTINGS)")
	useBrowser := flag.Bool("browser", false, "enable the headless browser render strategy")
	output := flag.String("output", "", "write the run result JSON to this file instead of stdout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *maxListings > 0 {
		cfg.Scraper.MaxListings = *maxListings
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var store session.Store
	switch cfg.Store.Type {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.Store.RedisAddr,
			DB:   cfg.Store.RedisDB,
		})
		defer redisClient.Close()
		store = session.NewRedisStore(redisClient)
	default:
		fileStore, err := session.NewFileStore(cfg.Store.FilePath)
		if err != nil {
			log.Error("failed to open cookie store", "error", err)
			os.Exit(1)
		}
		store = fileStore
	}

	strategies := fetch.DefaultStrategies(cfg.Scraper)
	if cfg.Scraper.StrategyFile != "" {
		strategies, err = fetch.LoadStrategies(cfg.Scraper.StrategyFile)
		if err != nil {
			log.Error("failed to load strategy file", "error", err)
			os.Exit(1)
		}
	}

	var renderer fetch.Renderer
	if *useBrowser {
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
	sink := events.NewSlogSink(log)

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

	var listingStore scraper.ListingStore
	if cfg.Database.Enabled {
		repo, err := listings.New(ctx, cfg.Database)
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
	}

	runner := scraper.NewRunner(cfg.Scraper, engine, extract.New(log), scraper.RunnerOptions{
		Strategies: strategies,
		Store:      listingStore,
		Runs:       runStore,
		Sink:       sink,
		Metrics:    m,
		Logger:     log,
	})

	go func() {
		sig := <-sigCh
		log.Info("stop requested", "signal", sig.String())
		runner.Stop()
	}()

	result, err := runner.Run(ctx)
	if err != nil {
		log.Error("run failed to start", "error", err)
		os.Exit(1)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Error("failed to encode result", "error", err)
		os.Exit(1)
	}

	if *output != "" {
		if err := os.WriteFile(*output, data, 0644); err != nil {
			log.Error("failed to write output file", "error", err, "path", *output)
			os.Exit(1)
		}
		log.Info("result written", "path", *output)
	} else {
		fmt.Println(string(data))
	}

	if result.Summary.ListingsFound == 0 && len(result.Summary.Errors) > 0 {
		os.Exit(2)
	}
}
