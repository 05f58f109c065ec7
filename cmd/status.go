package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"invoicepipe/internal/config"
	"invoicepipe/internal/store"
)

var (
	statusFilter string
	statusLimit  int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List processed invoices and their review status",
	Example: `  # Show all processed invoices
  invoicepipe status

  # Only invoices waiting for review
  invoicepipe status --filter needs_review`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFilter, "filter", "", "Filter by status (needs_review, ready, exported)")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 50, "Maximum rows to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	records, err := db.List(ctx, statusFilter, statusLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No processed invoices found.")
		return nil
	}

	fmt.Printf("%-24s %-16s %-24s %-12s %-14s %6s %6s\n",
		"FILE", "INVOICE", "SUPPLIER", "PO", "STATUS", "ERR", "WARN")
	for _, r := range records {
		supplier := r.MatchedSupplier
		if supplier == "" {
			supplier = r.SupplierName
		}
		fmt.Printf("%-24s %-16s %-24s %-12s %-14s %6d %6d\n",
			truncate(r.Stem, 24), truncate(r.InvoiceNumber, 16), truncate(supplier, 24),
			truncate(r.PONumber, 12), r.Status, r.ErrorCount, r.WarningCount)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n%d needs review, %d ready, %d exported\n",
		stats[store.StatusNeedsReview], stats[store.StatusReady], stats[store.StatusExported])
	return nil
}

// truncate shortens s to at most n runes, ending with an ellipsis.
// Rune-based so multi-byte supplier names are never cut mid-character.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
