package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/priboy68rus/topdeck-compare/internal/models"
	"github.com/priboy68rus/topdeck-compare/internal/services"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [name...]",
	Short: "Resolve card names to Scryfall oracle ids",
	Long: `Resolve prints the oracle id, image and reference EUR price for each name.
Names are cleaned the same way listing lines are before lookup.

Examples:
  cardctl resolve "Lightning Bolt"
  cardctl resolve --mode api "Молния (M10) NM" "Sol Ring"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		oracle, err := newOracle(cfg)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(args))
		for _, arg := range args {
			if name := services.SanitizeListingName(arg); name != "" {
				names = append(names, name)
			}
		}

		if err := oracle.Prime(cmd.Context(), names); err != nil {
			return fmt.Errorf("failed to resolve names: %w", err)
		}
		resolved, err := oracle.ResolveBatch(cmd.Context(), names)
		if err != nil {
			return fmt.Errorf("failed to resolve names: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, name := range names {
			printResolution(out, name, resolved[name])
		}
		fmt.Fprintf(out, "%d of %d unresolved (%s mode)\n", oracle.MissCount(), len(names), oracle.Mode())
		return nil
	},
}

func printResolution(out io.Writer, name string, data models.OracleData) {
	if !data.Resolved() {
		fmt.Fprintf(out, "%s  %s\n", color.RedString("✗"), name)
		return
	}

	details := []string{color.CyanString(data.OracleID)}
	if data.EURPrice != nil {
		details = append(details, fmt.Sprintf("€%.2f", *data.EURPrice))
	}
	if img := data.ImageURL(); img != "" {
		details = append(details, img)
	}
	fmt.Fprintf(out, "%s  %s  %s\n", color.GreenString("✓"), name, strings.Join(details, "  "))
}
