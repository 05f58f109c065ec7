package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"invoicepipe/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "invoicepipe",
	Short: "Invoice processing pipeline - extract, match, and validate supplier invoices",
	Long: `invoicepipe processes supplier invoice PDFs end to end: document
extraction (Google Document AI or Vision OCR), structured field parsing
via an OpenAI-compatible LLM, supplier identification against a master
list, purchase order matching with line-level reconciliation, and a
validation pass that flags every discrepancy for review.

Results are persisted to a local SQLite database and can be exported to
a configured webhook or a Google Sheet once approved.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("invoicepipe - supplier invoice processing pipeline")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
