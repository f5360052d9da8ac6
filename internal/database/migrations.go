package database

import (
	"log"

	"gorm.io/gorm"
)

// maxHistoryRuns bounds the comparison history table.
const maxHistoryRuns = 1000

// RunMigrations runs data migrations after AutoMigrate. Safe to run on every
// start.
func RunMigrations(db *gorm.DB) error {
	// Runs recorded before the oracle mode column existed were all local.
	result := db.Exec(`UPDATE comparison_runs SET oracle_mode = 'local' WHERE oracle_mode IS NULL OR oracle_mode = ''`)
	if result.Error != nil {
		log.Printf("Warning: failed to backfill oracle_mode: %v", result.Error)
	} else if result.RowsAffected > 0 {
		log.Printf("Backfilled oracle_mode on %d comparison runs", result.RowsAffected)
	}

	return pruneComparisonRuns(db, maxHistoryRuns)
}

// pruneComparisonRuns keeps only the newest keep runs.
func pruneComparisonRuns(db *gorm.DB, keep int) error {
	result := db.Exec(`
		DELETE FROM comparison_runs
		WHERE id NOT IN (
			SELECT id FROM comparison_runs
			ORDER BY created_at DESC
			LIMIT ?
		)
	`, keep)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		log.Printf("Pruned %d old comparison runs", result.RowsAffected)
	}
	return nil
}
