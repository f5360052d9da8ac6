package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type bulkUpdater interface {
	EnsureUpToDate(ctx context.Context) (bool, error)
}

// RefreshStatus reports the outcome of the last scheduled dataset check.
type RefreshStatus struct {
	Schedule  string    `json:"schedule"`
	LastRun   time.Time `json:"last_run,omitempty"`
	Updated   bool      `json:"updated"`
	LastError string    `json:"last_error,omitempty"`
}

// BulkRefresher keeps the on-disk Scryfall dataset current on a cron
// schedule. A loaded oracle index is not rebuilt; new data is used from the
// next process start.
type BulkRefresher struct {
	store    bulkUpdater
	schedule string

	mu      sync.RWMutex
	lastRun time.Time
	updated bool
	lastErr string
}

// NewBulkRefresher validates the cron schedule (standard five fields or a
// descriptor such as @daily).
func NewBulkRefresher(store bulkUpdater, schedule string) (*BulkRefresher, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid bulk refresh schedule %q: %w", schedule, err)
	}
	return &BulkRefresher{store: store, schedule: schedule}, nil
}

// Start runs the schedule until ctx is cancelled.
func (r *BulkRefresher) Start(ctx context.Context) {
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() { r.Refresh(ctx) }); err != nil {
		log.Printf("Warning: bulk refresher not started: %v", err)
		return
	}
	c.Start()
	log.Printf("Bulk refresher started: checking Scryfall data %s", r.schedule)

	<-ctx.Done()
	log.Println("Bulk refresher stopping...")
	<-c.Stop().Done()
}

// Refresh checks for a newer dataset and downloads it if there is one.
func (r *BulkRefresher) Refresh(ctx context.Context) (bool, error) {
	updated, err := r.store.EnsureUpToDate(ctx)

	r.mu.Lock()
	r.lastRun = time.Now()
	r.updated = updated
	r.lastErr = ""
	if err != nil {
		r.lastErr = err.Error()
	}
	r.mu.Unlock()

	if err != nil {
		log.Printf("Bulk refresher: failed to update Scryfall data: %v", err)
		return false, err
	}
	if updated {
		log.Println("Bulk refresher: new Scryfall data downloaded, it will be used after restart")
	}
	return updated, nil
}

func (r *BulkRefresher) GetStatus() RefreshStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RefreshStatus{
		Schedule:  r.schedule,
		LastRun:   r.lastRun,
		Updated:   r.updated,
		LastError: r.lastErr,
	}
}
