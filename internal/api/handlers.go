package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dcabrera/revolico-scraper/internal/events"
	"github.com/dcabrera/revolico-scraper/internal/models"
	"github.com/dcabrera/revolico-scraper/internal/scraper"
	"github.com/dcabrera/revolico-scraper/internal/storage"
)

// ListingReader exposes the persisted listings. Nil when the server
// runs without a database.
type ListingReader interface {
	GetByExternalID(ctx context.Context, externalID string) (*models.ExtractedListing, error)
	ListRecent(ctx context.Context, limit int) ([]*models.ExtractedListing, error)
}

type Handlers struct {
	runner   *scraper.Runner
	runs     *storage.RunStore
	listings ListingReader
	feed     *events.ChannelSink
	logger   *slog.Logger
}

func NewHandlers(runner *scraper.Runner, runs *storage.RunStore, listings ListingReader, feed *events.ChannelSink, logger *slog.Logger) *Handlers {
	return &Handlers{
		runner:   runner,
		runs:     runs,
		listings: listings,
		feed:     feed,
		logger:   logger,
	}
}

// StartScrapeResponse acknowledges a run launch.
type StartScrapeResponse struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StartScrape launches a run in the background. A second start while
// one is active gets 409.
func (h *Handlers) StartScrape(w http.ResponseWriter, r *http.Request) {
	if h.runner.Status().State == scraper.StateRunning {
		h.respondError(w, http.StatusConflict, "a scrape run is already in progress")
		return
	}

	go func() {
		if _, err := h.runner.Run(context.Background()); err != nil && !errors.Is(err, scraper.ErrAlreadyRunning) {
			h.logger.Error("background run failed", "error", err)
		}
	}()

	h.respondJSON(w, http.StatusAccepted, StartScrapeResponse{
		Status:  string(scraper.StateRunning),
		Message: "Scrape run started",
	})
}

// StopScrape requests the active run to wind down.
func (h *Handlers) StopScrape(w http.ResponseWriter, r *http.Request) {
	status := h.runner.Status()
	if status.State != scraper.StateRunning {
		h.respondError(w, http.StatusConflict, "no scrape run in progress")
		return
	}

	h.runner.Stop()
	h.respondJSON(w, http.StatusOK, map[string]string{
		"run_id":  status.RunID,
		"message": "Stop requested",
	})
}

// GetStatus returns the runner's lifecycle snapshot.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.runner.Status())
}

// ListRuns returns recent run results, newest first.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	h.respondJSON(w, http.StatusOK, h.runs.Recent(limit))
}

// GetRun returns one stored run result.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, ok := h.runs.Get(runID)
	if !ok {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	h.respondJSON(w, http.StatusOK, run)
}

// ListListings returns recently scraped listings from the database.
func (h *Handlers) ListListings(w http.ResponseWriter, r *http.Request) {
	if h.listings == nil {
		h.respondError(w, http.StatusNotImplemented, "listing storage is not configured")
		return
	}

	limit := queryInt(r, "limit", 50)
	result, err := h.listings.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list listings", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// GetListing returns one listing by its external ID.
func (h *Handlers) GetListing(w http.ResponseWriter, r *http.Request) {
	if h.listings == nil {
		h.respondError(w, http.StatusNotImplemented, "listing storage is not configured")
		return
	}

	externalID := chi.URLParam(r, "externalID")
	listing, err := h.listings.GetByExternalID(r.Context(), externalID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "listing not found")
		return
	}
	h.respondJSON(w, http.StatusOK, listing)
}

// ListEvents drains the buffered event feed. Consumers poll this to
// follow a run's fetch attempts live.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		h.respondJSON(w, http.StatusOK, []events.Event{})
		return
	}
	evs := h.feed.Drain()
	if evs == nil {
		evs = []events.Event{}
	}
	h.respondJSON(w, http.StatusOK, evs)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
