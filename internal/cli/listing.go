package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/priboy68rus/topdeck-compare/internal/models"
	"github.com/priboy68rus/topdeck-compare/internal/services"
)

var listingCmd = &cobra.Command{
	Use:   "listing [url|file]",
	Short: "Parse a Topdeck listing and print the extracted entries",
	Long: `Listing fetches a Topdeck topic, or reads a saved page or plain text file,
and prints every priced line the parser found.

Examples:
  cardctl listing https://topdeck.ru/apps/toptrade/singles/12345
  cardctl listing --resolve ./saved-topic.html
  cardctl listing --text ./post.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asText, _ := cmd.Flags().GetBool("text")
		resolve, _ := cmd.Flags().GetBool("resolve")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		source := args[0]
		var page *models.ListingPage
		if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
			topdeck := services.NewTopdeckService(cfg.HTTPTimeout, cfg.ListingCacheTTL, cfg.ListingRateLimit)
			page, err = topdeck.FetchListing(cmd.Context(), source)
		} else {
			page, err = readListingFile(source, asText)
		}
		if err != nil {
			return err
		}

		var resolved map[string]models.OracleData
		if resolve {
			oracle, err := newOracle(cfg)
			if err != nil {
				return err
			}
			names := make([]string, len(page.Entries))
			for i, e := range page.Entries {
				names[i] = e.Name
			}
			if resolved, err = oracle.ResolveBatch(cmd.Context(), names); err != nil {
				return fmt.Errorf("failed to resolve listing names: %w", err)
			}
		}

		printListing(cmd.OutOrStdout(), page, resolved)
		return nil
	},
}

func init() {
	listingCmd.Flags().Bool("text", false, "Treat a local file as plain post text instead of HTML")
	listingCmd.Flags().Bool("resolve", false, "Resolve every entry name to an oracle id")
}

func readListingFile(path string, asText bool) (*models.ListingPage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read listing file: %w", err)
	}
	if asText || strings.EqualFold(filepath.Ext(path), ".txt") {
		return &models.ListingPage{URL: path, Entries: services.ParseListingText(string(data))}, nil
	}
	page, err := services.ParseListingPage(string(data))
	if err != nil {
		return nil, err
	}
	page.URL = path
	return page, nil
}

func printListing(out io.Writer, page *models.ListingPage, resolved map[string]models.OracleData) {
	if page.Title != "" {
		fmt.Fprintln(out, color.HiWhiteString(page.Title))
	}
	if page.Author != "" {
		fmt.Fprintf(out, "%s %s\n", color.CyanString("Seller:"), page.Author)
	}

	for _, e := range page.Entries {
		qty := ""
		if e.Quantity != nil {
			qty = fmt.Sprintf("%dx ", *e.Quantity)
		}
		line := fmt.Sprintf("%s%s  %s", qty, e.Name, color.YellowString("%g ₽", e.Price))
		if resolved != nil {
			data := resolved[strings.TrimSpace(e.Name)]
			if data.Resolved() {
				line += "  " + color.GreenString(data.OracleID)
			} else {
				line += "  " + color.RedString("unresolved")
			}
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "%d entries\n", len(page.Entries))
}
