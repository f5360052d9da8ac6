package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/priboy68rus/topdeck-compare/internal/models"
)

const defaultRecentRuns = 20

// ComparisonRepository stores finished comparison summaries.
type ComparisonRepository struct {
	db *gorm.DB
}

func NewComparisonRepository(db *gorm.DB) *ComparisonRepository {
	return &ComparisonRepository{db: db}
}

// SaveRun inserts a run, assigning an id and timestamp when missing.
func (r *ComparisonRepository) SaveRun(ctx context.Context, run *models.ComparisonRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to save comparison run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (r *ComparisonRepository) RecentRuns(ctx context.Context, limit int) ([]models.ComparisonRun, error) {
	if limit <= 0 || limit > maxHistoryRuns {
		limit = defaultRecentRuns
	}
	runs := []models.ComparisonRun{}
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load comparison runs: %w", err)
	}
	return runs, nil
}

// RunsForListing returns every stored run for one listing URL, newest first.
func (r *ComparisonRepository) RunsForListing(ctx context.Context, listingURL string) ([]models.ComparisonRun, error) {
	runs := []models.ComparisonRun{}
	err := r.db.WithContext(ctx).
		Where("listing_url = ?", listingURL).
		Order("created_at DESC").
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load comparison runs: %w", err)
	}
	return runs, nil
}
