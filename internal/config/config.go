package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Store    StoreConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type ScraperConfig struct {
	// Homepage URLs in priority order. Mobile hosts first because they
	// sit behind lighter protection tiers.
	CandidateURLs []string
	// Secondary paths on the primary site tried when every homepage
	// fails, RSS feeds and sitemaps included.
	FallbackURLs []string
	// Alternate classifieds sites tried once every candidate URL has
	// been exhausted.
	AlternateURLs []string
	SiteMarker    string
	MaxListings   int

	MinRequestDelay   time.Duration
	MaxRequestDelay   time.Duration
	Jitter            time.Duration
	RetryBackoff      time.Duration
	ChallengeCooldown time.Duration
	RequestTimeout    time.Duration
	MaxRetries        int
	PerURLBudget      time.Duration
	TotalBudget       time.Duration

	// Optional YAML file overriding the built-in escalation strategies.
	StrategyFile string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
}

type StoreConfig struct {
	// Type selects the session cookie backend: "file" or "redis".
	Type      string
	FilePath  string
	RedisAddr string
	RedisDB   int
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Scraper: ScraperConfig{
			CandidateURLs: getStringSliceOrDefault("SCRAPER_CANDIDATE_URLS", defaultCandidateURLs()),
			FallbackURLs:  getStringSliceOrDefault("SCRAPER_FALLBACK_URLS", defaultFallbackURLs()),
			AlternateURLs: getStringSliceOrDefault("SCRAPER_ALTERNATE_URLS", defaultAlternateURLs()),
			SiteMarker:    getEnvOrDefault("SCRAPER_SITE_MARKER", "revolico"),
			MaxListings:   getIntOrDefault("SCRAPER_MAX_LISTINGS", 3),

			MinRequestDelay:   getDurationOrDefault("SCRAPER_MIN_REQUEST_DELAY", 12*time.Second),
			MaxRequestDelay:   getDurationOrDefault("SCRAPER_MAX_REQUEST_DELAY", 18*time.Second),
			Jitter:            getDurationOrDefault("SCRAPER_JITTER", 4*time.Second),
			RetryBackoff:      getDurationOrDefault("SCRAPER_RETRY_BACKOFF", 15*time.Second),
			ChallengeCooldown: getDurationOrDefault("SCRAPER_CHALLENGE_COOLDOWN", 5*time.Second),
			RequestTimeout:    getDurationOrDefault("SCRAPER_REQUEST_TIMEOUT", 20*time.Second),
			MaxRetries:        getIntOrDefault("SCRAPER_MAX_RETRIES", 3),
			PerURLBudget:      getDurationOrDefault("SCRAPER_PER_URL_BUDGET", 3*time.Minute),
			TotalBudget:       getDurationOrDefault("SCRAPER_TOTAL_BUDGET", 15*time.Minute),

			StrategyFile: getEnvOrDefault("SCRAPER_STRATEGY_FILE", ""),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 45*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "es-ES,es;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/Havana"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "es-ES"),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Store: StoreConfig{
			Type:      getEnvOrDefault("STORE_TYPE", "file"),
			FilePath:  getEnvOrDefault("STORE_FILE_PATH", "session_cookies.json"),
			RedisAddr: getEnvOrDefault("STORE_REDIS_ADDR", "localhost:6379"),
			RedisDB:   getIntOrDefault("STORE_REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "revolico_scraper"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Scraper.CandidateURLs) == 0 {
		return fmt.Errorf("SCRAPER_CANDIDATE_URLS must not be empty")
	}

	if c.Scraper.MinRequestDelay > c.Scraper.MaxRequestDelay {
		return fmt.Errorf("SCRAPER_MIN_REQUEST_DELAY cannot be greater than SCRAPER_MAX_REQUEST_DELAY")
	}

	if c.Scraper.MaxListings < 1 {
		return fmt.Errorf("SCRAPER_MAX_LISTINGS must be at least 1")
	}

	if c.Store.Type != "file" && c.Store.Type != "redis" {
		return fmt.Errorf("STORE_TYPE must be \"file\" or \"redis\", got %q", c.Store.Type)
	}

	return nil
}

func defaultCandidateURLs() []string {
	return []string{
		"https://m.revolico.com",
		"https://mobile.revolico.com",
		"https://www.revolico.com",
		"https://revolico.com",
	}
}

func defaultFallbackURLs() []string {
	return []string{
		"https://www.revolico.com/rss",
		"https://www.revolico.com/feed.xml",
		"https://www.revolico.com/sitemap.xml",
		"https://www.revolico.com/clasificados",
		"https://www.revolico.com/anuncios",
	}
}

func defaultAlternateURLs() []string {
	return []string{
		"https://www.porlalivre.com",
		"https://www.encuentra24.com/cuba-es",
		"https://cuba.clasificados.com",
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
