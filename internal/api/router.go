package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dcabrera/revolico-scraper/internal/config"
	"github.com/dcabrera/revolico-scraper/internal/metrics"
)

func NewRouter(h *Handlers, cfg config.ServerConfig, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape", h.StartScrape)
		r.Post("/scrape/stop", h.StopScrape)
		r.Get("/scrape/status", h.GetStatus)

		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{runID}", h.GetRun)

		r.Get("/events", h.ListEvents)

		r.Get("/listings", h.ListListings)
		r.Get("/listings/{externalID}", h.GetListing)
	})

	return r
}
