package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/priboy68rus/topdeck-compare/internal/api"
	"github.com/priboy68rus/topdeck-compare/internal/api/handlers"
	"github.com/priboy68rus/topdeck-compare/internal/config"
	"github.com/priboy68rus/topdeck-compare/internal/database"
	"github.com/priboy68rus/topdeck-compare/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize services
	bulkStore := services.NewBulkDataStore(cfg.DataDir, cfg.HTTPTimeout, cfg.BulkDownloadTimeout)
	oracle, err := services.NewOracleResolver(cfg, bulkStore)
	if err != nil {
		log.Fatalf("Failed to initialize oracle resolver: %v", err)
	}
	log.Printf("Oracle resolver mode: %s", oracle.Mode())

	topdeckService := services.NewTopdeckService(cfg.HTTPTimeout, cfg.ListingCacheTTL, cfg.ListingRateLimit)
	moxfieldService := services.NewMoxfieldService(cfg.HTTPTimeout)

	// Comparison history is optional
	var (
		recorder services.RunRecorder
		history  handlers.RunHistory
	)
	if cfg.DBPath != "" {
		db, err := database.Open(cfg.DBPath, cfg.Debug)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		repo := database.NewComparisonRepository(db)
		recorder, history = repo, repo
		log.Printf("Comparison history stored in %s", cfg.DBPath)
	}

	compareService := services.NewCompareService(moxfieldService, topdeckService, oracle, recorder)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The bulk dataset only matters when the index is built locally
	var refresher *services.BulkRefresher
	if cfg.OracleMode == config.OracleModeLocal {
		refresher, err = services.NewBulkRefresher(bulkStore, cfg.BulkRefreshSchedule)
		if err != nil {
			log.Fatalf("Failed to initialize bulk refresher: %v", err)
		}
		go refresher.Start(ctx)

		// Warm the index in the background so the first comparison is fast
		if local, ok := oracle.(*services.LocalOracle); ok {
			go func() {
				if _, err := local.Index(ctx); err != nil {
					log.Printf("Warning: failed to preload oracle index: %v", err)
				}
			}()
		}
	}

	// Setup router
	router := api.SetupRouter(cfg, compareService, history, oracle, refresher)

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the bulk refresher
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
