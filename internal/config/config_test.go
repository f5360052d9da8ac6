package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "RESOLVER_PORT", "DATA_DIR", "DB_PATH", "ORACLE_MODE", "ORACLE_RESOLVER_URL",
		"SCRYFALL_MODE", "ALLOWED_ORIGIN", "CORS_ALLOWED_ORIGINS", "LISTING_CACHE_TTL",
		"HTTP_TIMEOUT", "BULK_DOWNLOAD_TIMEOUT", "BULK_REFRESH_SCHEDULE", "LOG_LEVEL", "SCRYFALL_RATE_LIMIT", "LISTING_RATE_LIMIT",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" || cfg.ResolverPort != "4000" {
		t.Errorf("unexpected ports %s/%s", cfg.Port, cfg.ResolverPort)
	}
	if cfg.OracleMode != OracleModeLocal {
		t.Errorf("expected local mode, got %s", cfg.OracleMode)
	}
	if cfg.ListingCacheTTL != 5*time.Minute {
		t.Errorf("expected 5m TTL, got %v", cfg.ListingCacheTTL)
	}
	if cfg.HTTPTimeout != 20*time.Second || cfg.BulkDownloadTimeout != 30*time.Minute {
		t.Errorf("unexpected timeouts %v/%v", cfg.HTTPTimeout, cfg.BulkDownloadTimeout)
	}
	if !cfg.AllowsAllOrigins() {
		t.Error("expected wildcard CORS by default")
	}
}

func TestFromEnv_OracleModeSelection(t *testing.T) {
	tests := []struct {
		name        string
		explicit    string
		resolverURL string
		scryfall    string
		want        string
		wantErr     bool
	}{
		{name: "default local", want: OracleModeLocal},
		{name: "resolver url implies remote", resolverURL: "http://resolver:4000/", want: OracleModeRemote},
		{name: "scryfall api mode", scryfall: "api", want: OracleModeAPI},
		{name: "explicit wins", explicit: "local", resolverURL: "http://resolver:4000", want: OracleModeLocal},
		{name: "remote without url", explicit: "remote", wantErr: true},
		{name: "unknown mode", explicit: "fuzzy", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("ORACLE_MODE", tt.explicit)
			t.Setenv("ORACLE_RESOLVER_URL", tt.resolverURL)
			t.Setenv("SCRYFALL_MODE", tt.scryfall)

			cfg, err := FromEnv()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.OracleMode != tt.want {
				t.Errorf("mode = %s, want %s", cfg.OracleMode, tt.want)
			}
		})
	}
}

func TestFromEnv_TrimsResolverURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("ORACLE_RESOLVER_URL", "http://resolver:4000/")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ResolverURL != "http://resolver:4000" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.ResolverURL)
	}
}

func TestFromEnv_Origins(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOWED_ORIGIN", "https://a.example")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://b.example, https://c.example")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.AllowsAllOrigins() {
		t.Error("expected restricted origins")
	}
}

func TestFromEnv_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("LISTING_CACHE_TTL", "five minutes")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestFromEnv_BulkDownloadTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("BULK_DOWNLOAD_TIMEOUT", "1h")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPTimeout != 5*time.Second || cfg.BulkDownloadTimeout != time.Hour {
		t.Errorf("unexpected timeouts %v/%v", cfg.HTTPTimeout, cfg.BulkDownloadTimeout)
	}

	t.Setenv("BULK_DOWNLOAD_TIMEOUT", "forever")
	if _, err := FromEnv(); err == nil {
		t.Error("expected error for invalid BULK_DOWNLOAD_TIMEOUT")
	}
}
