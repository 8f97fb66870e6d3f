package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper. A nil *Metrics
// is valid and disables collection, so tests can pass nil.
type Metrics struct {
	Registry        *prometheus.Registry
	AttemptsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RetriesTotal    prometheus.Counter
	ListingsTotal   prometheus.Counter
	PhonesTotal     prometheus.Counter
	RunsTotal       *prometheus.CounterVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fetch_attempts_total",
			Help: "Fetch attempts by escalation strategy and protection verdict.",
		},
		[]string{"strategy", "verdict"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	listings := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_listings_extracted_total",
			Help: "Total number of listings extracted.",
		},
	)
	phones := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_phones_found_total",
			Help: "Total number of phone numbers extracted from listings.",
		},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Completed scrape runs by outcome.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(attempts, requestDuration, retries, listings, phones, runs)

	return &Metrics{
		Registry:        registry,
		AttemptsTotal:   attempts,
		RequestDuration: requestDuration,
		RetriesTotal:    retries,
		ListingsTotal:   listings,
		PhonesTotal:     phones,
		RunsTotal:       runs,
	}
}

// IncAttempt records one fetch attempt.
func (m *Metrics) IncAttempt(strategy, verdict string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(strategy, verdict).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncListings increments the listings extracted counter.
func (m *Metrics) IncListings() {
	if m == nil {
		return
	}
	m.ListingsTotal.Inc()
}

// AddPhones adds to the phone numbers counter.
func (m *Metrics) AddPhones(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PhonesTotal.Add(float64(n))
}

// IncRun records a completed run outcome.
func (m *Metrics) IncRun(outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
}
