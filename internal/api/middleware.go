package api

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/priboy68rus/topdeck-compare/internal/config"
	"github.com/priboy68rus/topdeck-compare/internal/metrics"
)

// corsMiddleware allows the configured origins. Requests without an Origin
// header pass through untouched.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if cfg.AllowsAllOrigins() {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsConfig.AllowCredentials = false
	return cors.New(corsConfig)
}

// resolverCORSMiddleware puts the allowed-origin headers on every response,
// whether or not the request carried an Origin, and answers preflights with
// 204. A request from a listed origin gets that origin echoed back; anything
// else gets the first configured origin.
func resolverCORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowOrigin := "*"
		if !cfg.AllowsAllOrigins() {
			allowOrigin = cfg.AllowedOrigins[0]
			if origin := c.GetHeader("Origin"); slices.Contains(cfg.AllowedOrigins, origin) {
				allowOrigin = origin
			}
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Origin", allowOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// metricsMiddleware records request counts and latency per route template.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
