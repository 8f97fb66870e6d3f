package fetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/dcabrera/revolico-scraper/internal/config"
	"github.com/dcabrera/revolico-scraper/internal/events"
	"github.com/dcabrera/revolico-scraper/internal/metrics"
	"github.com/dcabrera/revolico-scraper/internal/models"
	"github.com/dcabrera/revolico-scraper/internal/protection"
	"github.com/dcabrera/revolico-scraper/internal/ratelimit"
	"github.com/dcabrera/revolico-scraper/internal/session"
)

const maxBodySize = 5 << 20

// Engine walks the strategy ladder until one URL yields a clean page.
type Engine struct {
	cfg        config.ScraperConfig
	client     *http.Client
	classifier *protection.Classifier
	store      session.Store
	renderer   Renderer
	sink       events.Sink
	metrics    *metrics.Metrics
	logger     *slog.Logger
	rng        *rand.Rand
	pacer      *ratelimit.Pacer
	sleep      func(ctx context.Context, d time.Duration) error

	profile headerProfile
}

// Options carries the engine's collaborators. Every field is optional;
// zero values disable the corresponding concern.
type Options struct {
	Store    session.Store
	Renderer Renderer
	Sink     events.Sink
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// Client overrides the internal HTTP client, mainly for tests.
	Client *http.Client
	// Sleep overrides the delay function, mainly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
	// Seed fixes the random source. Zero means time-seeded.
	Seed int64
}

func New(cfg config.ScraperConfig, opts Options) *Engine {
	client := opts.Client
	if client == nil {
		jar, _ := cookiejar.New(nil)
		client = &http.Client{
			Timeout: cfg.RequestTimeout,
			Jar:     jar,
		}
	} else if client.Jar == nil {
		jar, _ := cookiejar.New(nil)
		client.Jar = jar
	}

	sink := opts.Sink
	if sink == nil {
		sink = events.Discard{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	return &Engine{
		cfg:        cfg,
		client:     client,
		classifier: protection.New(cfg.SiteMarker),
		store:      opts.Store,
		renderer:   opts.Renderer,
		sink:       sink,
		metrics:    opts.Metrics,
		logger:     logger.With("component", "fetch"),
		rng:        rand.New(rand.NewSource(seed)),
		pacer:      ratelimit.New(cfg.MinRequestDelay, cfg.MaxRequestDelay, cfg.Jitter, seed),
		sleep:      sleep,
	}
}

// Acquire tries each strategy in order against its URL list and returns
// as soon as one attempt comes back clean. An error is returned only
// for unusable input; protection failures are reported through the
// FetchResult so the caller can inspect every attempt.
func (e *Engine) Acquire(ctx context.Context, strategies []Strategy, candidates []string) (*models.FetchResult, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidate URLs given")
	}
	for _, c := range candidates {
		u, err := url.Parse(c)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("malformed candidate URL %q", c)
		}
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies(e.cfg)
	}
	for _, strat := range strategies {
		if strat.Render && e.renderer == nil {
			return nil, fmt.Errorf("strategy %q requires a browser renderer but none is configured", strat.ID)
		}
	}

	if e.cfg.TotalBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TotalBudget)
		defer cancel()
	}

	result := &models.FetchResult{}

	for _, strat := range strategies {
		if ctx.Err() != nil {
			break
		}

		e.logger.Info("trying strategy", "strategy", strat.ID, "mobile", strat.Mobile)
		e.sink.Emit(events.New(events.LevelInfo, "strategy started", map[string]any{"strategy": strat.ID}))
		e.profile = newHeaderProfile(e.rng, strat.Mobile)

		if strat.RefererWarmup {
			if !e.warmup(ctx) {
				e.logger.Warn("referer warmup failed, skipping strategy", "strategy", strat.ID)
				continue
			}
		}

		for _, target := range strat.urlsFor(candidates) {
			if ctx.Err() != nil {
				break
			}
			if e.tryURL(ctx, strat, target, result) {
				result.Success = true
				result.URL = target
				result.StrategyUsed = strat.ID
				result.FinalVerdict = protection.VerdictClean
				e.sink.Emit(events.New(events.LevelInfo, "working url found", map[string]any{
					"url":      target,
					"strategy": strat.ID,
				}))
				return result, nil
			}
		}
	}

	if len(result.Attempts) > 0 {
		result.FinalVerdict = result.Attempts[len(result.Attempts)-1].Verdict
	}
	e.sink.Emit(events.New(events.LevelError, "all strategies exhausted", map[string]any{
		"attempts": len(result.Attempts),
	}))
	return result, nil
}

// tryURL runs the retry loop for a single URL. It reports success; on
// false the caller moves to the next URL.
func (e *Engine) tryURL(ctx context.Context, strat Strategy, target string, result *models.FetchResult) bool {
	urlCtx := ctx
	if e.cfg.PerURLBudget > 0 {
		var cancel context.CancelFunc
		urlCtx, cancel = context.WithTimeout(ctx, e.cfg.PerURLBudget)
		defer cancel()
	}

	e.loadCookies(urlCtx, target)

	retries := strat.MaxRetries
	if retries < 1 {
		retries = 1
	}

	for attempt := 1; attempt <= retries; attempt++ {
		if err := e.pace(urlCtx, attempt); err != nil {
			return false
		}
		if attempt > 1 {
			e.metrics.IncRetries()
		}

		verdict, body, status, elapsed, err := e.request(urlCtx, strat, target)

		record := models.FetchAttempt{
			URL:        target,
			StrategyID: strat.ID,
			Attempt:    attempt,
			HTTPStatus: status,
			Verdict:    verdict,
			ElapsedMs:  elapsed.Milliseconds(),
		}
		if err != nil {
			record.Error = err.Error()
		}
		result.Attempts = append(result.Attempts, record)
		e.metrics.IncAttempt(strat.ID, string(verdict))
		e.metrics.ObserveDuration(elapsed)
		e.emitAttempt(record)

		if err != nil {
			if urlCtx.Err() != nil {
				return false
			}
			continue
		}

		switch verdict {
		case protection.VerdictClean:
			e.pacer.RecordClean()
			result.Content = body
			e.saveCookies(urlCtx, target)
			return true

		case protection.VerdictCaptchaRequired:
			// No automated way through a CAPTCHA. Abandon this URL.
			e.pacer.RecordBlocked()
			e.logger.Warn("captcha required, abandoning url", "url", target)
			return false

		case protection.VerdictCloudflareChallenge:
			e.pacer.RecordBlocked()
			if attempt < retries {
				if err := e.sleep(urlCtx, e.cfg.ChallengeCooldown); err != nil {
					return false
				}
				// A challenged fingerprint is burned. Come back as a
				// different visitor.
				e.profile = newHeaderProfile(e.rng, strat.Mobile)
				if strat.RefererWarmup {
					e.warmup(urlCtx)
				}
			}

		case protection.VerdictRateLimited:
			e.pacer.RecordBlocked()
			if attempt < retries {
				if err := e.sleep(urlCtx, 2*e.cfg.RetryBackoff); err != nil {
					return false
				}
			}

		default:
			// Access denied and unknown blocks just ride the normal
			// backoff schedule.
			e.pacer.RecordBlocked()
		}
	}

	return false
}

func (e *Engine) request(ctx context.Context, strat Strategy, target string) (protection.Verdict, string, int, time.Duration, error) {
	start := time.Now()

	if strat.Render {
		page, err := e.renderer.Render(ctx, target)
		elapsed := time.Since(start)
		if err != nil {
			return protection.VerdictUnknownBlock, "", 0, elapsed, fmt.Errorf("render failed: %w", err)
		}
		verdict := e.classifier.Classify(protection.FromRenderedPage(page.HTML))
		return verdict, page.HTML, http.StatusOK, elapsed, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return protection.VerdictUnknownBlock, "", 0, time.Since(start), err
	}
	e.profile.apply(e.rng, req)

	resp, err := e.client.Do(req)
	if err != nil {
		return protection.VerdictUnknownBlock, "", 0, time.Since(start), fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	elapsed := time.Since(start)
	if err != nil {
		return protection.VerdictUnknownBlock, "", resp.StatusCode, elapsed, fmt.Errorf("failed to read body: %w", err)
	}

	verdict := e.classifier.Classify(protection.FromResponse(resp, []byte(body)))
	return verdict, body, resp.StatusCode, elapsed, nil
}

// pace sleeps before an attempt. First attempts get the pacer's
// human-speed browsing delay, retries get jittered exponential backoff
// so the request cadence never forms a pattern.
func (e *Engine) pace(ctx context.Context, attempt int) error {
	if attempt == 1 {
		return e.sleep(ctx, e.pacer.Delay())
	}

	delay := e.cfg.RetryBackoff * (1 << (attempt - 2))
	if e.cfg.Jitter > 0 {
		delay += time.Duration(e.rng.Int63n(int64(2*e.cfg.Jitter))) - e.cfg.Jitter
	}
	if delay < 0 {
		delay = 0
	}
	return e.sleep(ctx, delay)
}

// warmup visits a search engine so the session carries history and a
// plausible referer before touching the target site.
func (e *Engine) warmup(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://www.google.com/search?q=revolico+cuba+clasificados", nil)
	if err != nil {
		return false
	}
	e.profile.apply(e.rng, req)

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn("warmup request failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode != http.StatusOK {
		e.logger.Warn("warmup returned non-200", "status", resp.StatusCode)
		return false
	}

	jitter := time.Duration(e.rng.Int63n(int64(2 * time.Second)))
	return e.sleep(ctx, 2*time.Second+jitter) == nil
}

func (e *Engine) loadCookies(ctx context.Context, target string) {
	if e.store == nil || e.client.Jar == nil {
		return
	}
	u, err := url.Parse(target)
	if err != nil {
		return
	}
	cookies, err := e.store.Load(ctx, u.Hostname())
	if err != nil {
		e.logger.Warn("failed to load cookies", "domain", u.Hostname(), "error", err)
		return
	}
	if len(cookies) > 0 {
		e.client.Jar.SetCookies(u, session.ToHTTPCookies(cookies))
	}
}

func (e *Engine) saveCookies(ctx context.Context, target string) {
	if e.store == nil || e.client.Jar == nil {
		return
	}
	u, err := url.Parse(target)
	if err != nil {
		return
	}
	cookies := e.client.Jar.Cookies(u)
	if len(cookies) == 0 {
		return
	}
	if err := e.store.Save(ctx, u.Hostname(), session.FromHTTPCookies(cookies, u.Hostname())); err != nil {
		e.logger.Warn("failed to save cookies", "domain", u.Hostname(), "error", err)
	}
}

func (e *Engine) emitAttempt(a models.FetchAttempt) {
	level := events.LevelInfo
	if a.Verdict != protection.VerdictClean {
		level = events.LevelWarn
	}
	e.sink.Emit(events.New(level, "fetch attempt", map[string]any{
		"url":      a.URL,
		"strategy": a.StrategyID,
		"attempt":  a.Attempt,
		"status":   a.HTTPStatus,
		"verdict":  string(a.Verdict),
	}))
}

// readBody decompresses and reads the response body. The engine sets
// Accept-Encoding by hand, which turns off the transport's transparent
// gzip handling.
func readBody(resp *http.Response) (string, error) {
	var reader io.Reader = resp.Body

	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxBodySize))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
