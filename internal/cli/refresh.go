package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/priboy68rus/topdeck-compare/internal/services"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Download the Scryfall bulk dataset if a newer one is published",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := services.NewBulkDataStore(cfg.DataDir, cfg.HTTPTimeout, cfg.BulkDownloadTimeout)
		updated, err := store.EnsureUpToDate(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to refresh Scryfall data: %w", err)
		}

		out := cmd.OutOrStdout()
		if updated {
			fmt.Fprintln(out, color.GreenString("Downloaded new Scryfall data"))
		} else {
			fmt.Fprintln(out, "Scryfall data is up to date")
		}
		if meta := store.StoredMeta(); meta != nil {
			fmt.Fprintf(out, "Dataset updated %s, downloaded %s\n",
				meta.UpdatedAt.Format("2006-01-02 15:04"), meta.DownloadedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}
