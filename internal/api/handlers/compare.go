package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/priboy68rus/topdeck-compare/internal/models"
	"github.com/priboy68rus/topdeck-compare/internal/services"
)

// Comparer runs wishlist vs listing comparisons.
type Comparer interface {
	Compare(ctx context.Context, wishlistURL, listingURL string) (*models.ComparisonResult, error)
	DebugListing(ctx context.Context, listingURL string) (*models.ListingDebug, error)
}

// RunHistory lists stored comparison runs.
type RunHistory interface {
	RecentRuns(ctx context.Context, limit int) ([]models.ComparisonRun, error)
	RunsForListing(ctx context.Context, listingURL string) ([]models.ComparisonRun, error)
}

type CompareHandler struct {
	compare Comparer
	history RunHistory
}

// NewCompareHandler creates the handler. history may be nil when run history
// is disabled.
func NewCompareHandler(compare Comparer, history RunHistory) *CompareHandler {
	return &CompareHandler{
		compare: compare,
		history: history,
	}
}

// Compare matches a Moxfield wishlist against a Topdeck listing
func (h *CompareHandler) Compare(c *gin.Context) {
	wishlistURL := strings.TrimSpace(c.Query("wishlistUrl"))
	listingURL := strings.TrimSpace(c.Query("listingUrl"))
	if wishlistURL == "" || listingURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wishlistUrl and listingUrl are required"})
		return
	}

	result, err := h.compare.Compare(c.Request.Context(), wishlistURL, listingURL)
	if err != nil {
		if errors.Is(err, services.ErrInvalidDeckURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("Compare failed for %s vs %s: %v", wishlistURL, listingURL, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// DebugListing shows the parsed lines of a listing with their resolved ids
func (h *CompareHandler) DebugListing(c *gin.Context) {
	listingURL := strings.TrimSpace(c.Query("listingUrl"))
	if listingURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listingUrl is required"})
		return
	}

	debug, err := h.compare.DebugListing(c.Request.Context(), listingURL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, debug)
}

// GetComparisons returns recent comparison runs, optionally for one listing
func (h *CompareHandler) GetComparisons(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []models.ComparisonRun{}})
		return
	}

	var (
		runs []models.ComparisonRun
		err  error
	)
	if listingURL := strings.TrimSpace(c.Query("listingUrl")); listingURL != "" {
		runs, err = h.history.RunsForListing(c.Request.Context(), listingURL)
	} else {
		limit := 20
		if l := c.Query("limit"); l != "" {
			parsed, perr := strconv.Atoi(l)
			if perr != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}
		runs, err = h.history.RecentRuns(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []models.ComparisonRun{}
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
