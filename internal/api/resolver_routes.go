package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/priboy68rus/topdeck-compare/internal/api/handlers"
	"github.com/priboy68rus/topdeck-compare/internal/config"
)

// SetupResolverRouter builds the standalone name resolver service.
func SetupResolverRouter(cfg *config.Config, oracle handlers.NameResolver) *gin.Engine {
	router := gin.Default()

	router.Use(resolverCORSMiddleware(cfg))
	router.Use(metricsMiddleware())

	resolverHandler := handlers.NewResolverHandler(oracle)

	router.GET("/resolve", resolverHandler.Resolve)
	router.POST("/resolve-batch", resolverHandler.ResolveBatch)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return router
}
