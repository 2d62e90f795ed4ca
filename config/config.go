package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MaxJobTimeout is the client's polling budget (30 polls, 2s apart)
const MaxJobTimeout = 60 * time.Second

// Store kinds
const (
	StoreKindScrapingBee = "scrapingbee"
	StoreKindPriceList   = "pricelist"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Scrape      ScrapeConfig
	ScrapingBee ScrapingBeeConfig
	Stores      []StoreConfig
	Cache       CacheConfig
	JobStore    JobStoreConfig
	OCR         OCRConfig
	RateLimit   RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ScrapeConfig holds job orchestration settings
type ScrapeConfig struct {
	AdapterTimeout time.Duration `mapstructure:"adapter_timeout"`
	JobTimeout     time.Duration `mapstructure:"job_timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	MaxQueryLength int           `mapstructure:"max_query_length"`
	EnabledStores  []string      `mapstructure:"enabled_stores"` // overrides per-store enabled flags when set
}

// ScrapingBeeConfig holds ScrapingBee proxy API configuration
type ScrapingBeeConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// StoreConfig describes one retailer
type StoreConfig struct {
	ID        string `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	Kind      string `mapstructure:"kind"`       // "scrapingbee" or "pricelist"
	SearchURL string `mapstructure:"search_url"` // {query} is replaced with the escaped query
	Currency  string `mapstructure:"currency"`
	RenderJS  bool   `mapstructure:"render_js"`
	WaitMS    int    `mapstructure:"wait_ms"`
	PriceList string `mapstructure:"price_list"` // YAML leaflet path for pricelist stores
	Enabled   bool   `mapstructure:"enabled"`
}

// CacheConfig holds quote cache configuration
type CacheConfig struct {
	Type string        `mapstructure:"type"` // "memory" or "none"
	TTL  time.Duration `mapstructure:"ttl"`
}

// JobStoreConfig selects where jobs live and how long they are kept
type JobStoreConfig struct {
	Type          string        `mapstructure:"type"` // "memory" or "postgres"
	DatabaseURL   string        `mapstructure:"database_url"`
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// OCRConfig holds OCR.space configuration
type OCRConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	FallbackName string `mapstructure:"fallback_name"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP    int     `mapstructure:"per_ip"`    // requests per minute, 0 disables
	PerStore float64 `mapstructure:"per_store"` // upstream requests per second, 0 disables
	Burst    int     `mapstructure:"burst"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/discounthunter/")

	// DISCOUNTHUNTER_SCRAPE_JOB_TIMEOUT -> scrape.job_timeout
	v.SetEnvPrefix("DISCOUNTHUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	applyEnabledStores(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory when present.
// Variables already set in the environment win.
func loadEnvFile() error {
	err := godotenv.Load(".env")
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost:8081",
		"http://localhost:19006",
		"http://127.0.0.1:8081",
		"http://127.0.0.1:19006",
	})

	// Scrape defaults
	v.SetDefault("scrape.adapter_timeout", "8s")
	v.SetDefault("scrape.job_timeout", "45s")
	v.SetDefault("scrape.max_concurrency", 0)
	v.SetDefault("scrape.max_query_length", 120)
	v.SetDefault("scrape.enabled_stores", []string{})

	// ScrapingBee defaults
	v.SetDefault("scrapingbee.api_key", "")
	v.SetDefault("scrapingbee.base_url", "https://app.scrapingbee.com/api/v1/")
	v.SetDefault("scrapingbee.max_attempts", 3)

	v.SetDefault("stores", defaultStores())

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "15m")

	// Job store defaults
	v.SetDefault("jobstore.type", "memory")
	v.SetDefault("jobstore.database_url", "")
	v.SetDefault("jobstore.retention", "1h")
	v.SetDefault("jobstore.sweep_interval", "5m")

	// OCR defaults
	v.SetDefault("ocr.api_key", "")
	v.SetDefault("ocr.base_url", "https://api.ocr.space/parse/image")
	v.SetDefault("ocr.fallback_name", "Wireless Bluetooth Headphones")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 120)
	v.SetDefault("ratelimit.per_store", 2)
	v.SetDefault("ratelimit.burst", 5)
}

func defaultStores() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"id":         "maxima",
			"name":       "Maxima",
			"kind":       StoreKindScrapingBee,
			"search_url": "https://www.barbora.lt/paieska?q={query}",
			"currency":   "EUR",
			"render_js":  true,
			"wait_ms":    2000,
			"enabled":    true,
		},
		{
			"id":         "rimi",
			"name":       "Rimi",
			"kind":       StoreKindScrapingBee,
			"search_url": "https://www.rimi.lt/e-parduotuve/lt/paieska?query={query}",
			"currency":   "EUR",
			"render_js":  true,
			"wait_ms":    4000,
			"enabled":    true,
		},
		{
			"id":         "lidl",
			"name":       "Lidl",
			"kind":       StoreKindScrapingBee,
			"search_url": "https://www.lidl.lt/c/search?q={query}",
			"currency":   "EUR",
			"render_js":  true,
			"wait_ms":    2000,
			"enabled":    true,
		},
		{
			"id":         "aibe",
			"name":       "Aibė",
			"kind":       StoreKindPriceList,
			"currency":   "EUR",
			"price_list": "data/aibe.yaml",
			"enabled":    false,
		},
	}
}

// applyEnabledStores replaces per-store enabled flags with the scrape.enabled_stores list
func applyEnabledStores(config *Config) {
	if len(config.Scrape.EnabledStores) == 0 {
		return
	}
	enabled := make(map[string]bool, len(config.Scrape.EnabledStores))
	for _, id := range config.Scrape.EnabledStores {
		enabled[strings.TrimSpace(id)] = true
	}
	for i := range config.Stores {
		config.Stores[i].Enabled = enabled[config.Stores[i].ID]
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Scrape.AdapterTimeout <= 0 {
		return fmt.Errorf("scrape adapter timeout must be positive, got: %s", config.Scrape.AdapterTimeout)
	}
	if config.Scrape.JobTimeout < config.Scrape.AdapterTimeout {
		return fmt.Errorf("scrape job timeout (%s) must not be shorter than adapter timeout (%s)",
			config.Scrape.JobTimeout, config.Scrape.AdapterTimeout)
	}
	if config.Scrape.JobTimeout > MaxJobTimeout {
		return fmt.Errorf("scrape job timeout (%s) exceeds client polling budget of %s", config.Scrape.JobTimeout, MaxJobTimeout)
	}
	if config.Scrape.MaxConcurrency < 0 {
		return fmt.Errorf("scrape max concurrency must not be negative, got: %d", config.Scrape.MaxConcurrency)
	}
	if config.Scrape.MaxQueryLength <= 0 {
		return fmt.Errorf("scrape max query length must be positive, got: %d", config.Scrape.MaxQueryLength)
	}

	seen := make(map[string]bool, len(config.Stores))
	for _, store := range config.Stores {
		if store.ID == "" {
			return fmt.Errorf("store id is required")
		}
		if seen[store.ID] {
			return fmt.Errorf("duplicate store id: %s", store.ID)
		}
		seen[store.ID] = true

		switch store.Kind {
		case StoreKindScrapingBee:
			if !strings.Contains(store.SearchURL, "{query}") {
				return fmt.Errorf("store %s: search_url must contain {query}", store.ID)
			}
		case StoreKindPriceList:
			if store.PriceList == "" {
				return fmt.Errorf("store %s: price_list path is required", store.ID)
			}
		default:
			return fmt.Errorf("store %s: kind must be '%s' or '%s', got: %s",
				store.ID, StoreKindScrapingBee, StoreKindPriceList, store.Kind)
		}
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "none" {
		return fmt.Errorf("cache type must be 'memory' or 'none', got: %s", config.Cache.Type)
	}

	if config.JobStore.Type != "memory" && config.JobStore.Type != "postgres" {
		return fmt.Errorf("jobstore type must be 'memory' or 'postgres', got: %s", config.JobStore.Type)
	}
	if config.JobStore.Type == "postgres" && config.JobStore.DatabaseURL == "" {
		return fmt.Errorf("database URL is required when jobstore type is 'postgres'")
	}

	if config.RateLimit.PerIP < 0 || config.RateLimit.PerStore < 0 || config.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}

	return nil
}
