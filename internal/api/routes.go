package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/priboy68rus/topdeck-compare/internal/api/handlers"
	"github.com/priboy68rus/topdeck-compare/internal/config"
	"github.com/priboy68rus/topdeck-compare/internal/services"
)

// SetupRouter builds the compare server. history and refresher may be nil.
func SetupRouter(cfg *config.Config, compareService handlers.Comparer, history handlers.RunHistory, oracle services.OracleResolver, refresher *services.BulkRefresher) *gin.Engine {
	router := gin.Default()

	serveFrontend := cfg.FrontendPath != "" && dirExists(cfg.FrontendPath)

	router.Use(corsMiddleware(cfg))
	router.Use(metricsMiddleware())

	// Initialize handlers
	compareHandler := handlers.NewCompareHandler(compareService, history)

	// API routes
	api := router.Group("/api")
	{
		api.GET("/compare", compareHandler.Compare)
		api.GET("/comparisons", compareHandler.GetComparisons)

		listing := api.Group("/listing")
		{
			listing.GET("/debug", compareHandler.DebugListing)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok", "oracle_mode": oracle.Mode()}
		if refresher != nil {
			body["bulk_refresh"] = refresher.GetStatus()
		}
		c.JSON(http.StatusOK, body)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Serve frontend static files
	if serveFrontend {
		indexPath := filepath.Join(cfg.FrontendPath, "index.html")

		router.Static("/assets", filepath.Join(cfg.FrontendPath, "assets"))

		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.File(indexPath)
		})
	}

	return router
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
