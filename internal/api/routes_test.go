package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/priboy68rus/topdeck-compare/internal/config"
	"github.com/priboy68rus/topdeck-compare/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopOracle struct{}

func (nopOracle) Resolve(ctx context.Context, name string) (models.OracleData, error) {
	return models.Unresolved(), nil
}

func (nopOracle) ResolveBatch(ctx context.Context, names []string) (map[string]models.OracleData, error) {
	return map[string]models.OracleData{}, nil
}

func (nopOracle) Prime(ctx context.Context, names []string) error { return nil }
func (nopOracle) MissCount() int { return 0 }
func (nopOracle) Mode() string { return "local" }

type nopComparer struct{}

func (nopComparer) Compare(ctx context.Context, wishlistURL, listingURL string) (*models.ComparisonResult, error) {
	return &models.ComparisonResult{Rows: []models.CardComparison{}}, nil
}

func (nopComparer) DebugListing(ctx context.Context, listingURL string) (*models.ListingDebug, error) {
	return &models.ListingDebug{Entries: []models.ResolvedListingEntry{}}, nil
}

func request(router *gin.Engine, method, path, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", "GET")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetupRouterHealth(t *testing.T) {
	router := SetupRouter(&config.Config{AllowedOrigins: []string{"*"}}, nopComparer{}, nil, nopOracle{}, nil)

	w := request(router, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, `"status":"ok"`) || !strings.Contains(body, `"oracle_mode":"local"`) {
		t.Errorf("unexpected health body %s", body)
	}

	if w := request(router, "GET", "/metrics", ""); w.Code != http.StatusOK {
		t.Errorf("/metrics status = %d", w.Code)
	}
	if w := request(router, "GET", "/api/compare?wishlistUrl=a&listingUrl=b", ""); w.Code != http.StatusOK {
		t.Errorf("/api/compare status = %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		wantStatus int
		wantHeader string
	}{
		{"any origin preflight", []string{"*"}, "http://localhost:5173", http.StatusNoContent, "*"},
		{"listed origin preflight", []string{"http://localhost:5173"}, "http://localhost:5173", http.StatusNoContent, "http://localhost:5173"},
		{"unlisted origin", []string{"http://localhost:5173"}, "http://evil.example", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := SetupRouter(&config.Config{AllowedOrigins: tt.origins}, nopComparer{}, nil, nopOracle{}, nil)
			w := request(router, "OPTIONS", "/api/compare", tt.origin)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestResolverCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		method     string
		path       string
		origin     string
		wantStatus int
		wantHeader string
	}{
		{"preflight without origin", []string{"*"}, "OPTIONS", "/resolve", "", http.StatusNoContent, "*"},
		{"get without origin", []string{"*"}, "GET", "/resolve?name=Sol+Ring", "", http.StatusOK, "*"},
		{"batch preflight", []string{"*"}, "OPTIONS", "/resolve-batch", "http://localhost:5173", http.StatusNoContent, "*"},
		{"configured origin without origin header", []string{"https://cards.example"}, "GET", "/resolve?name=Sol+Ring", "", http.StatusOK, "https://cards.example"},
		{"listed origin echoed", []string{"https://cards.example", "http://localhost:5173"}, "OPTIONS", "/resolve", "http://localhost:5173", http.StatusNoContent, "http://localhost:5173"},
		{"other origin still answered", []string{"https://cards.example"}, "OPTIONS", "/resolve", "http://evil.example", http.StatusNoContent, "https://cards.example"},
		{"not found keeps headers", []string{"*"}, "GET", "/nope", "", http.StatusNotFound, "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := SetupResolverRouter(&config.Config{AllowedOrigins: tt.origins}, nopOracle{})
			w := request(router, tt.method, tt.path, tt.origin)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
			if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
				t.Errorf("Access-Control-Allow-Methods = %q", got)
			}
			if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
				t.Errorf("Access-Control-Allow-Headers = %q", got)
			}
			if tt.method == "OPTIONS" && w.Body.Len() != 0 {
				t.Errorf("preflight body = %q, want empty", w.Body.String())
			}
		})
	}
}

func TestResolverRouterNotFound(t *testing.T) {
	router := SetupResolverRouter(&config.Config{AllowedOrigins: []string{"*"}}, nopOracle{})
	w := request(router, "GET", "/nope", "")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "Not found") {
		t.Errorf("got %d %s", w.Code, w.Body.String())
	}
}

func TestFrontendFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	router := SetupRouter(&config.Config{AllowedOrigins: []string{"*"}, FrontendPath: dir}, nopComparer{}, nil, nopOracle{}, nil)

	if w := request(router, "GET", "/compare/some/view", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "app") {
		t.Errorf("SPA route got %d %s", w.Code, w.Body.String())
	}
	if w := request(router, "GET", "/api/unknown", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown API route status = %d, want 404", w.Code)
	}
}
