package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/priboy68rus/topdeck-compare/internal/models"
	"github.com/priboy68rus/topdeck-compare/internal/services"
)

// NameResolver is the part of the oracle the resolver endpoints need.
type NameResolver interface {
	Resolve(ctx context.Context, name string) (models.OracleData, error)
	ResolveBatch(ctx context.Context, names []string) (map[string]models.OracleData, error)
}

type ResolverHandler struct {
	oracle NameResolver
}

func NewResolverHandler(oracle NameResolver) *ResolverHandler {
	return &ResolverHandler{
		oracle: oracle,
	}
}

type resolveBatchRequest struct {
	Names []string `json:"names"`
}

// Resolve returns the identity for one listing name
func (h *ResolverHandler) Resolve(c *gin.Context) {
	raw, ok := c.GetQuery("name")
	if !ok || raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing name query param"})
		return
	}
	name := services.SanitizeListingName(raw)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty name after sanitization"})
		return
	}

	data, err := h.oracle.Resolve(c.Request.Context(), name)
	if err != nil {
		log.Printf("Resolver error for %q: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve card"})
		return
	}

	c.JSON(http.StatusOK, data)
}

// ResolveBatch resolves many listing names at once. Only resolved names are
// returned unless include_misses=true.
func (h *ResolverHandler) ResolveBatch(c *gin.Context) {
	var req resolveBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid batch request"})
		return
	}
	includeMisses := c.Query("include_misses") == "true"

	names := make([]string, 0, len(req.Names))
	seen := make(map[string]bool)
	for _, raw := range req.Names {
		name := services.SanitizeListingName(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	resolved, err := h.oracle.ResolveBatch(c.Request.Context(), names)
	if err != nil {
		log.Printf("Resolver batch error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve cards"})
		return
	}

	results := make([]models.NamedOracleData, 0, len(names))
	for _, name := range names {
		data, ok := resolved[name]
		if !ok {
			data = models.Unresolved()
		}
		if !data.Resolved() && !includeMisses {
			continue
		}
		results = append(results, models.NamedOracleData{Name: name, OracleData: data})
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}
