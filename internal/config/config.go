// Package config loads runtime settings from the environment. A .env file in
// the working directory is read first when present; real environment
// variables always win.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Oracle resolution modes.
const (
	OracleModeLocal  = "local"
	OracleModeRemote = "remote"
	OracleModeAPI    = "api"
)

type Config struct {
	Port         string
	ResolverPort string
	DataDir      string
	DBPath       string
	FrontendPath string

	OracleMode  string
	ResolverURL string

	AllowedOrigins []string

	ListingCacheTTL     time.Duration
	HTTPTimeout         time.Duration
	BulkDownloadTimeout time.Duration
	BulkRefreshSchedule string

	ScryfallRateLimit float64
	ListingRateLimit  float64

	Debug bool
}

// Load reads the configuration. It loads .env when the file exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to read .env: %v", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		ResolverPort:        getEnv("RESOLVER_PORT", "4000"),
		DataDir:             getEnv("DATA_DIR", "./data"),
		DBPath:              os.Getenv("DB_PATH"),
		FrontendPath:        os.Getenv("FRONTEND_DIST_PATH"),
		ResolverURL:         strings.TrimRight(strings.TrimSpace(os.Getenv("ORACLE_RESOLVER_URL")), "/"),
		BulkRefreshSchedule: getEnv("BULK_REFRESH_SCHEDULE", "@daily"),
		Debug:               strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug"),
	}

	// CORS_ALLOWED_ORIGINS is a comma separated list. ALLOWED_ORIGIN is the
	// resolver's single-origin setting and is used when the list is unset.
	origins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if origins == "" {
		origins = getEnv("ALLOWED_ORIGIN", "*")
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	var err error
	if cfg.ListingCacheTTL, err = getDuration("LISTING_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.BulkDownloadTimeout, err = getDuration("BULK_DOWNLOAD_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ScryfallRateLimit, err = getFloat("SCRYFALL_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.ListingRateLimit, err = getFloat("LISTING_RATE_LIMIT", 2); err != nil {
		return nil, err
	}

	cfg.OracleMode = resolveOracleMode(os.Getenv("ORACLE_MODE"), cfg.ResolverURL, os.Getenv("SCRYFALL_MODE"))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected oracle mode is usable.
func (c *Config) Validate() error {
	switch c.OracleMode {
	case OracleModeLocal, OracleModeAPI:
	case OracleModeRemote:
		if c.ResolverURL == "" {
			return fmt.Errorf("oracle mode %q requires ORACLE_RESOLVER_URL", c.OracleMode)
		}
	default:
		return fmt.Errorf("unknown oracle mode %q", c.OracleMode)
	}
	if c.ListingCacheTTL <= 0 {
		return fmt.Errorf("LISTING_CACHE_TTL must be positive")
	}
	return nil
}

// AllowsAllOrigins reports whether CORS is open to every origin.
func (c *Config) AllowsAllOrigins() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return len(c.AllowedOrigins) == 0
}

func resolveOracleMode(explicit, resolverURL, scryfallMode string) string {
	if explicit != "" {
		return strings.ToLower(strings.TrimSpace(explicit))
	}
	if resolverURL != "" {
		return OracleModeRemote
	}
	if strings.EqualFold(scryfallMode, "api") {
		return OracleModeAPI
	}
	return OracleModeLocal
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return f, nil
}
