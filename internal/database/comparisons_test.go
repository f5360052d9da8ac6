package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/priboy68rus/topdeck-compare/internal/models"
)

func openTestDB(t *testing.T) *ComparisonRepository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history", "test.db"), false)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return NewComparisonRepository(db)
}

func TestSaveAndListRuns(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, listing := range []string{"https://topdeck.ru/a", "https://topdeck.ru/b", "https://topdeck.ru/a"} {
		run := &models.ComparisonRun{
			WishlistURL: "https://moxfield.com/decks/abc",
			ListingURL:  listing,
			TotalCards:  10 + i,
			OracleMode:  "local",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
		if run.ID == "" {
			t.Error("SaveRun() should assign an id")
		}
	}

	runs, err := repo.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].TotalCards != 12 || runs[1].TotalCards != 11 {
		t.Errorf("runs not ordered newest first: %d, %d", runs[0].TotalCards, runs[1].TotalCards)
	}

	forA, err := repo.RunsForListing(ctx, "https://topdeck.ru/a")
	if err != nil {
		t.Fatalf("RunsForListing() error = %v", err)
	}
	if len(forA) != 2 {
		t.Errorf("got %d runs for listing a, want 2", len(forA))
	}
}

func TestPruneComparisonRuns(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		run := &models.ComparisonRun{
			WishlistURL: "w",
			ListingURL:  "l",
			TotalCards:  i,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	if err := RunMigrations(repo.db); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if err := pruneComparisonRuns(repo.db, 3); err != nil {
		t.Fatalf("pruneComparisonRuns() error = %v", err)
	}

	runs, err := repo.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs after pruning, want 3", len(runs))
	}
	if runs[2].TotalCards != 2 {
		t.Errorf("oldest kept run = %d, want 2", runs[2].TotalCards)
	}
	if runs[0].OracleMode != "local" {
		t.Errorf("OracleMode = %q, want backfilled local", runs[0].OracleMode)
	}
}
