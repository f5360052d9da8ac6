// Package cli implements cardctl, a command-line tool for checking how card
// names resolve and how listings parse without running the servers.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/priboy68rus/topdeck-compare/internal/config"
	"github.com/priboy68rus/topdeck-compare/internal/services"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "cardctl",
	Short: "Inspect card name resolution and Topdeck listing parsing",
	Long: `cardctl runs the same resolver and listing parser as the compare server.
Configuration comes from the environment and an optional .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var oracleModeFlag string

func init() {
	RootCmd.PersistentFlags().StringVar(&oracleModeFlag, "mode", "", "Oracle mode override (local, remote or api)")

	RootCmd.AddCommand(resolveCmd)
	RootCmd.AddCommand(listingCmd)
	RootCmd.AddCommand(compareCmd)
	RootCmd.AddCommand(refreshCmd)
}

// Execute runs the root command. An interrupt cancels in-flight requests.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return RootCmd.ExecuteContext(ctx)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if oracleModeFlag != "" {
		cfg.OracleMode = strings.ToLower(oracleModeFlag)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newOracle(cfg *config.Config) (services.OracleResolver, error) {
	oracle, err := services.NewOracleResolver(cfg, services.NewBulkDataStore(cfg.DataDir, cfg.HTTPTimeout, cfg.BulkDownloadTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oracle resolver: %w", err)
	}
	return oracle, nil
}
