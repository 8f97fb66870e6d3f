package fetch

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dcabrera/revolico-scraper/internal/config"
)

// Strategy describes one rung of the escalation ladder. Strategies are
// plain data so the ladder can be reordered or extended from a YAML
// file without code changes.
type Strategy struct {
	ID string `yaml:"id"`
	// Mobile selects the mobile user agent pool and client hints.
	Mobile bool `yaml:"mobile"`
	// RefererWarmup visits a search engine before the first target
	// request so the session arrives with believable history.
	RefererWarmup bool `yaml:"referer_warmup"`
	// Render sends the URL through the headless browser instead of the
	// plain HTTP client.
	Render     bool `yaml:"render"`
	MaxRetries int  `yaml:"max_retries"`
	// URLLimit caps how many of the candidate URLs this strategy tries.
	// Zero means no cap.
	URLLimit int `yaml:"url_limit"`
	// URLs overrides the caller's candidate list when non-empty.
	URLs []string `yaml:"urls,omitempty"`
}

// DefaultStrategies builds the standard four-rung ladder: mobile
// homepage, desktop with warmed referer, fallback paths on the primary
// site, then alternate sites.
func DefaultStrategies(cfg config.ScraperConfig) []Strategy {
	return []Strategy{
		{
			ID:         "mobile_main",
			Mobile:     true,
			MaxRetries: cfg.MaxRetries,
		},
		{
			ID:            "desktop_google",
			RefererWarmup: true,
			MaxRetries:    2,
			URLLimit:      2,
		},
		{
			ID:         "fallback",
			MaxRetries: 2,
			URLs:       cfg.FallbackURLs,
		},
		{
			ID:         "alternative",
			MaxRetries: 1,
			URLs:       cfg.AlternateURLs,
		},
	}
}

// LoadStrategies reads a YAML strategy ladder from disk.
func LoadStrategies(path string) ([]Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategy file: %w", err)
	}

	var doc struct {
		Strategies []Strategy `yaml:"strategies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse strategy file: %w", err)
	}

	if len(doc.Strategies) == 0 {
		return nil, fmt.Errorf("strategy file %s defines no strategies", path)
	}

	for i, s := range doc.Strategies {
		if s.ID == "" {
			return nil, fmt.Errorf("strategy %d has no id", i)
		}
		if s.MaxRetries < 1 {
			doc.Strategies[i].MaxRetries = 1
		}
	}

	return doc.Strategies, nil
}

// urlsFor resolves the URL list a strategy should walk.
func (s Strategy) urlsFor(candidates []string) []string {
	urls := candidates
	if len(s.URLs) > 0 {
		urls = s.URLs
	}
	if s.URLLimit > 0 && len(urls) > s.URLLimit {
		urls = urls[:s.URLLimit]
	}
	return urls
}
