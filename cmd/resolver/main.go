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
	"github.com/priboy68rus/topdeck-compare/internal/config"
	"github.com/priboy68rus/topdeck-compare/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.OracleMode == config.OracleModeRemote {
		log.Fatalf("The resolver service must resolve names itself, ORACLE_MODE=%s is not supported", cfg.OracleMode)
	}

	bulkStore := services.NewBulkDataStore(cfg.DataDir, cfg.HTTPTimeout, cfg.BulkDownloadTimeout)
	oracle, err := services.NewOracleResolver(cfg, bulkStore)
	if err != nil {
		log.Fatalf("Failed to initialize oracle resolver: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if local, ok := oracle.(*services.LocalOracle); ok {
		refresher, err := services.NewBulkRefresher(bulkStore, cfg.BulkRefreshSchedule)
		if err != nil {
			log.Fatalf("Failed to initialize bulk refresher: %v", err)
		}
		go refresher.Start(ctx)

		go func() {
			idx, err := local.Index(ctx)
			if err != nil {
				log.Printf("Warning: failed to preload oracle index: %v", err)
				return
			}
			log.Printf("Oracle index ready: %d identities, %d names", idx.Size(), idx.NameCount())
		}()
	}

	router := api.SetupResolverRouter(cfg, oracle)

	srv := &http.Server{
		Addr:    ":" + cfg.ResolverPort,
		Handler: router,
	}

	go func() {
		log.Printf("Oracle resolver listening on :%s (%s mode)", cfg.ResolverPort, oracle.Mode())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start resolver: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down resolver...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Resolver forced to shutdown: %v", err)
	}

	log.Println("Resolver exited")
}
