package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dcabrera/revolico-scraper/internal/config"
	"github.com/dcabrera/revolico-scraper/internal/events"
	"github.com/dcabrera/revolico-scraper/internal/extract"
	"github.com/dcabrera/revolico-scraper/internal/fetch"
	"github.com/dcabrera/revolico-scraper/internal/metrics"
	"github.com/dcabrera/revolico-scraper/internal/models"
)

var ErrAlreadyRunning = errors.New("a scrape run is already in progress")

// State tags where a run is in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateStopped   State = "stopped"
)

// Status is a snapshot of the runner for callers polling progress.
type Status struct {
	State         State     `json:"state"`
	RunID         string    `json:"run_id,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	ListingsFound int       `json:"listings_found"`
	Attempts      int       `json:"attempts"`
}

// Acquirer finds a working page through the strategy ladder.
type Acquirer interface {
	Acquire(ctx context.Context, strategies []fetch.Strategy, urls []string) (*models.FetchResult, error)
}

// ListingStore persists individual listings. Optional.
type ListingStore interface {
	Upsert(ctx context.Context, listing *models.ExtractedListing) error
}

// RunSaver persists finished run results. Optional.
type RunSaver interface {
	Save(runID, finishedAt string, success bool, payload any) error
}

// Runner orchestrates one scrape: find a working homepage, discover
// listing URLs, fetch and extract each one. A Runner handles one run at
// a time; concurrent Run calls get ErrAlreadyRunning.
type Runner struct {
	cfg        config.ScraperConfig
	acquirer   Acquirer
	extractor  *extract.Extractor
	strategies []fetch.Strategy
	store      ListingStore
	runs       RunSaver
	sink       events.Sink
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu       sync.Mutex
	status   Status
	cancelFn context.CancelFunc
	stopped  bool
}

// RunnerOptions carries optional collaborators.
type RunnerOptions struct {
	Strategies []fetch.Strategy
	Store      ListingStore
	Runs       RunSaver
	Sink       events.Sink
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

func NewRunner(cfg config.ScraperConfig, acquirer Acquirer, extractor *extract.Extractor, opts RunnerOptions) *Runner {
	sink := opts.Sink
	if sink == nil {
		sink = events.Discard{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = fetch.DefaultStrategies(cfg)
	}

	return &Runner{
		cfg:        cfg,
		acquirer:   acquirer,
		extractor:  extractor,
		strategies: strategies,
		store:      opts.Store,
		runs:       opts.Runs,
		sink:       sink,
		metrics:    opts.Metrics,
		logger:     logger.With("component", "runner"),
		status:     Status{State: StateIdle},
	}
}

// Status returns the current lifecycle snapshot.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Stop asks the active run to wind down. The run finishes the listing
// in flight and reports StateStopped.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.State != StateRunning {
		return
	}
	r.stopped = true
	if r.cancelFn != nil {
		r.cancelFn()
	}
}

// Run executes one full scrape and returns its result. The result is
// returned even on total protection failure so callers can inspect the
// attempt trail; an error means the run could not start or was
// misconfigured.
func (r *Runner) Run(ctx context.Context) (*models.RunResult, error) {
	runID, runCtx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}

	started := time.Now().UTC()
	result := &models.RunResult{
		Summary: models.RunSummary{
			RunID:     runID,
			StartedAt: started,
		},
	}

	r.logger.Info("run started", "run_id", runID, "max_listings", r.cfg.MaxListings)
	r.sink.Emit(events.New(events.LevelInfo, "run started", map[string]any{"run_id": runID}))

	finalState := r.execute(runCtx, result)

	finished := time.Now().UTC()
	result.Summary.FinishedAt = finished
	result.Summary.Duration = finished.Sub(started)

	r.finish(finalState, result)
	return result, nil
}

func (r *Runner) begin(ctx context.Context) (string, context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.State == StateRunning {
		return "", nil, ErrAlreadyRunning
	}

	runID := uuid.New().String()
	runCtx, cancel := context.WithCancel(ctx)

	r.status = Status{State: StateRunning, RunID: runID, StartedAt: time.Now().UTC()}
	r.cancelFn = cancel
	r.stopped = false

	return runID, runCtx, nil
}

func (r *Runner) execute(ctx context.Context, result *models.RunResult) State {
	summary := &result.Summary

	home, err := r.acquirer.Acquire(ctx, r.strategies, r.cfg.CandidateURLs)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return StateFailed
	}
	summary.Attempts = append(summary.Attempts, home.Attempts...)
	r.observeAttempts(home.Attempts)

	if !home.Success {
		if r.stopRequested() {
			return StateStopped
		}
		summary.Errors = append(summary.Errors, fmt.Sprintf("no working url found, final verdict %s", home.FinalVerdict))
		return StateFailed
	}

	summary.WorkingURL = home.URL
	summary.StrategyUsed = home.StrategyUsed

	candidates := extract.ExtractCandidates(home.Content, home.URL)
	r.logger.Info("candidates discovered", "count", len(candidates))
	if len(candidates) > r.cfg.MaxListings {
		candidates = candidates[:r.cfg.MaxListings]
	}

	// Re-fetch listing pages with the strategy that already worked.
	detailStrategies := r.detailStrategies(home.StrategyUsed)

	for _, candidate := range candidates {
		if r.stopRequested() || ctx.Err() != nil {
			return StateStopped
		}

		detail, err := r.acquirer.Acquire(ctx, detailStrategies, []string{candidate.URL})
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", candidate.URL, err))
			continue
		}
		summary.Attempts = append(summary.Attempts, detail.Attempts...)
		r.observeAttempts(detail.Attempts)

		if !detail.Success {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: blocked with %s", candidate.URL, detail.FinalVerdict))
			continue
		}

		listing := r.extractor.Extract(detail.URL, detail.Content)
		result.Listings = append(result.Listings, *listing)
		summary.ListingsFound++
		summary.PhonesFound += len(listing.PhoneNumbers)

		r.metrics.IncListings()
		r.metrics.AddPhones(len(listing.PhoneNumbers))
		r.sink.Emit(events.New(events.LevelInfo, "listing extracted", map[string]any{
			"url":    listing.SourceURL,
			"title":  listing.Title,
			"phones": len(listing.PhoneNumbers),
		}))

		if r.store != nil && listing.ExternalID != "" {
			if err := r.store.Upsert(ctx, listing); err != nil {
				r.logger.Warn("failed to persist listing", "external_id", listing.ExternalID, "error", err)
				summary.Errors = append(summary.Errors, fmt.Sprintf("persist %s: %v", listing.ExternalID, err))
			}
		}
	}

	if r.stopRequested() {
		return StateStopped
	}
	return StateCompleted
}

// detailStrategies builds the ladder for detail pages: lead with the
// strategy that cracked the homepage, keep the rest as backup.
func (r *Runner) detailStrategies(winner string) []fetch.Strategy {
	ordered := make([]fetch.Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		if s.ID == winner {
			// Detail pages get their own URL per call, never the
			// strategy's canned list.
			s.URLs = nil
			s.URLLimit = 0
			ordered = append(ordered, s)
			break
		}
	}
	if len(ordered) == 0 && len(r.strategies) > 0 {
		s := r.strategies[0]
		s.URLs = nil
		s.URLLimit = 0
		ordered = append(ordered, s)
	}
	return ordered
}

func (r *Runner) observeAttempts(attempts []models.FetchAttempt) {
	r.mu.Lock()
	r.status.Attempts += len(attempts)
	r.mu.Unlock()
}

func (r *Runner) stopRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *Runner) finish(state State, result *models.RunResult) {
	r.mu.Lock()
	r.status.State = state
	r.status.ListingsFound = result.Summary.ListingsFound
	r.cancelFn = nil
	r.mu.Unlock()

	outcome := string(state)
	r.metrics.IncRun(outcome)
	r.logger.Info("run finished",
		"run_id", result.Summary.RunID,
		"state", outcome,
		"listings", result.Summary.ListingsFound,
		"phones", result.Summary.PhonesFound,
		"attempts", len(result.Summary.Attempts),
	)
	r.sink.Emit(events.New(events.LevelInfo, "run finished", map[string]any{
		"run_id":   result.Summary.RunID,
		"state":    outcome,
		"listings": result.Summary.ListingsFound,
	}))

	if r.runs != nil {
		success := state == StateCompleted
		if err := r.runs.Save(result.Summary.RunID, result.Summary.FinishedAt.Format(time.RFC3339), success, result); err != nil {
			r.logger.Warn("failed to save run result", "run_id", result.Summary.RunID, "error", err)
		}
	}
}
