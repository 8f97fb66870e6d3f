package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcabrera/revolico-scraper/internal/config"
	"github.com/dcabrera/revolico-scraper/internal/events"
	"github.com/dcabrera/revolico-scraper/internal/extract"
	"github.com/dcabrera/revolico-scraper/internal/fetch"
	"github.com/dcabrera/revolico-scraper/internal/models"
	"github.com/dcabrera/revolico-scraper/internal/protection"
	"github.com/dcabrera/revolico-scraper/internal/scraper"
	"github.com/dcabrera/revolico-scraper/internal/storage"
)

type stubAcquirer struct {
	block chan struct{}
}

func (s *stubAcquirer) Acquire(ctx context.Context, _ []fetch.Strategy, urls []string) (*models.FetchResult, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
		}
	}
	return &models.FetchResult{
		Success:      false,
		FinalVerdict: protection.VerdictAccessDenied,
		Attempts: []models.FetchAttempt{
			{URL: urls[0], StrategyID: "mobile_main", Attempt: 1, HTTPStatus: 403, Verdict: protection.VerdictAccessDenied},
		},
	}, nil
}

func newTestServer(t *testing.T, acquirer scraper.Acquirer) (*httptest.Server, *scraper.Runner, *storage.RunStore) {
	t.Helper()

	cfg := config.ScraperConfig{
		CandidateURLs: []string{"https://m.revolico.com"},
		SiteMarker:    "revolico",
		MaxListings:   1,
		MaxRetries:    1,
	}

	runs, err := storage.NewRunStore(filepath.Join(t.TempDir(), "runs.json"), 10)
	require.NoError(t, err)

	runner := scraper.NewRunner(cfg, acquirer, extract.New(nil), scraper.RunnerOptions{Runs: runs})
	handlers := NewHandlers(runner, runs, nil, events.NewChannelSink(16), slog.Default())
	router := NewRouter(handlers, config.ServerConfig{AllowedOrigins: []string{"*"}}, nil)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, runner, runs
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubAcquirer{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusIdle(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubAcquirer{})

	resp, err := http.Get(srv.URL + "/api/scrape/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status scraper.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, scraper.StateIdle, status.State)
}

func TestStartScrapeConflict(t *testing.T) {
	block := make(chan struct{})
	srv, runner, _ := newTestServer(t, &stubAcquirer{block: block})

	resp, err := http.Post(srv.URL+"/api/scrape", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return runner.Status().State == scraper.StateRunning
	}, time.Second, 5*time.Millisecond)

	resp, err = http.Post(srv.URL+"/api/scrape", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(block)
	require.Eventually(t, func() bool {
		return runner.Status().State != scraper.StateRunning
	}, time.Second, 5*time.Millisecond)
}

func TestStopWithoutRun(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubAcquirer{})

	resp, err := http.Post(srv.URL+"/api/scrape/stop", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRunsEndpoints(t *testing.T) {
	srv, _, runs := newTestServer(t, &stubAcquirer{})

	require.NoError(t, runs.Save("run-1", time.Now().UTC().Format(time.RFC3339), true, map[string]int{"listings": 2}))

	resp, err := http.Get(srv.URL + "/api/runs")
	require.NoError(t, err)
	defer resp.Body.Close()

	var recent []*storage.StoredRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recent))
	require.Len(t, recent, 1)
	assert.Equal(t, "run-1", recent[0].RunID)

	single, err := http.Get(srv.URL + "/api/runs/run-1")
	require.NoError(t, err)
	single.Body.Close()
	assert.Equal(t, http.StatusOK, single.StatusCode)

	missing, err := http.Get(srv.URL + "/api/runs/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestEventsFeedDrains(t *testing.T) {
	feed := events.NewChannelSink(16)
	feed.Emit(events.New(events.LevelInfo, "fetch attempt", map[string]any{"strategy": "mobile_main"}))
	feed.Emit(events.New(events.LevelWarn, "fetch attempt", map[string]any{"strategy": "fallback"}))

	cfg := config.ScraperConfig{
		CandidateURLs: []string{"https://m.revolico.com"},
		SiteMarker:    "revolico",
		MaxListings:   1,
		MaxRetries:    1,
	}
	runs, err := storage.NewRunStore(filepath.Join(t.TempDir(), "runs.json"), 10)
	require.NoError(t, err)
	runner := scraper.NewRunner(cfg, &stubAcquirer{}, extract.New(nil), scraper.RunnerOptions{Runs: runs})

	handlers := NewHandlers(runner, runs, nil, feed, slog.Default())
	router := NewRouter(handlers, config.ServerConfig{AllowedOrigins: []string{"*"}}, nil)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	var evs []events.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&evs))
	require.Len(t, evs, 2)
	assert.Equal(t, "fetch attempt", evs[0].Message)

	empty, err := http.Get(srv.URL + "/api/events")
	require.NoError(t, err)
	defer empty.Body.Close()

	var drained []events.Event
	require.NoError(t, json.NewDecoder(empty.Body).Decode(&drained))
	assert.Empty(t, drained)
}

func TestListingsWithoutDatabase(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubAcquirer{})

	resp, err := http.Get(srv.URL + "/api/listings")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}
