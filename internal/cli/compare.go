package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/priboy68rus/topdeck-compare/internal/models"
	"github.com/priboy68rus/topdeck-compare/internal/services"
)

var compareCmd = &cobra.Command{
	Use:   "compare [wishlist-url] [listing-url]",
	Short: "Match a Moxfield wishlist against a Topdeck listing",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		onlyListed, _ := cmd.Flags().GetBool("listed")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		oracle, err := newOracle(cfg)
		if err != nil {
			return err
		}

		compare := services.NewCompareService(
			services.NewMoxfieldService(cfg.HTTPTimeout),
			services.NewTopdeckService(cfg.HTTPTimeout, cfg.ListingCacheTTL, cfg.ListingRateLimit),
			oracle,
			nil,
		)
		result, err := compare.Compare(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		printComparison(cmd.OutOrStdout(), result, onlyListed)
		return nil
	},
}

func init() {
	compareCmd.Flags().Bool("listed", false, "Only print wishlist cards that the listing offers")
}

func printComparison(out io.Writer, result *models.ComparisonResult, onlyListed bool) {
	fmt.Fprintf(out, "%s by %s vs %s by %s\n",
		color.HiWhiteString(result.DeckName), result.DeckAuthor,
		color.HiWhiteString(result.ListingTitle), result.ListingAuthor)

	for _, row := range result.Rows {
		cheapest, listed := row.CheapestListing()
		if onlyListed && !listed {
			continue
		}
		switch {
		case listed:
			fmt.Fprintf(out, "%s  %dx %s  %s (%d offers)\n",
				color.GreenString("✓"), row.WishlistQty, row.Name, color.YellowString("%g ₽", cheapest), len(row.Listings))
		case row.OracleID == "":
			fmt.Fprintf(out, "%s  %dx %s  %s\n", color.RedString("?"), row.WishlistQty, row.Name, color.RedString("unresolved"))
		default:
			fmt.Fprintf(out, "   %dx %s\n", row.WishlistQty, row.Name)
		}
	}

	fmt.Fprintf(out, "%d of %d cards listed, %d unresolved, %d resolver misses, total %s\n",
		result.ListedCards, result.TotalCards, result.UnresolvedCards, result.ResolverMisses,
		color.YellowString("%.2f ₽", result.ListingTotal))
}
