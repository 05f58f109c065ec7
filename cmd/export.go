package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"invoicepipe/internal/config"
	"invoicepipe/internal/export"
	"invoicepipe/internal/store"
	"invoicepipe/pkg/models"
)

var (
	exportStem     string
	exportAllReady bool
	exportToSheet  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export reviewed invoices to the configured webhook and/or Google Sheet",
	Long: `Deliver processing results to external systems. By default only
invoices with status ready are exported; use --stem to force a specific
invoice regardless of status.

The webhook target is configured with WEBHOOK_EXPORT_URL (plus optional
WEBHOOK_EXPORT_METHOD and WEBHOOK_EXPORT_HEADERS). Google Sheets export
needs GOOGLE_SHEET_URL and service account credentials.

Successfully exported invoices are marked exported and kept for audit.`,
	Example: `  # Export everything marked ready
  invoicepipe export --all-ready

  # Export one invoice by file stem
  invoicepipe export --stem INV-1042

  # Also append rows to the configured Google Sheet
  invoicepipe export --all-ready --sheet`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportStem, "stem", "", "Export a single invoice by file stem")
	exportCmd.Flags().BoolVar(&exportAllReady, "all-ready", false, "Export every invoice with status ready")
	exportCmd.Flags().BoolVar(&exportToSheet, "sheet", false, "Also append results to the configured Google Sheet")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportStem == "" && !exportAllReady {
		return fmt.Errorf("nothing to export: pass --stem or --all-ready")
	}

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

	var stems []string
	if exportStem != "" {
		stems = []string{exportStem}
	} else {
		records, err := db.List(ctx, store.StatusReady, 0)
		if err != nil {
			return err
		}
		for _, r := range records {
			stems = append(stems, r.Stem)
		}
	}
	if len(stems) == 0 {
		fmt.Println("No invoices ready for export.")
		return nil
	}

	webhook, err := export.NewWebhookExporter(export.WebhookConfig{
		URL:         cfg.WebhookURL,
		Method:      cfg.WebhookMethod,
		HeadersJSON: cfg.WebhookHeaders,
	})
	if err != nil {
		return err
	}

	var exported []*models.ProcessingResult
	for _, stem := range stems {
		result, err := db.Get(ctx, stem)
		if err != nil {
			return err
		}
		if result == nil {
			fmt.Printf("  %-24s not found, skipping\n", stem)
			continue
		}

		if cfg.WebhookEnabled {
			delivery := webhook.Send(ctx, stem, result, result.SourceFile)
			if delivery.Status == "failed" {
				fmt.Printf("  %-24s webhook failed: %s\n", stem, delivery.Error)
				continue
			}
		}

		if _, err := db.UpdateStatus(ctx, stem, store.StatusExported); err != nil {
			return err
		}
		exported = append(exported, result)
		fmt.Printf("  %-24s exported\n", stem)
	}

	if exportToSheet && len(exported) > 0 {
		if cfg.GoogleSheetURL == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL is not configured")
		}
		sheets, err := export.NewSheetsExporter(ctx, cfg.GoogleSheetURL)
		if err != nil {
			return err
		}
		if err := sheets.AppendResults(ctx, exported, cfg.GoogleSheetWorksheet); err != nil {
			return err
		}
		fmt.Printf("Appended %d row(s) to Google Sheet\n", len(exported))
	}

	fmt.Printf("Exported %d invoice(s)\n", len(exported))
	return nil
}
