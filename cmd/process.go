package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"invoicepipe/internal/config"
	"invoicepipe/internal/pipeline"
)

var processOutput string

var processCmd = &cobra.Command{
	Use:   "process [pdf-file-or-directory]",
	Short: "Process one invoice PDF or a directory of PDFs",
	Long: `Run the full pipeline on a single invoice PDF, or on every PDF in a
directory (batch mode). Batch mode skips files that were already
processed with an unchanged modification time.

Each result is written to the SQLite state database. Invoices with
errors or warnings are marked needs_review; clean ones are marked ready.

Required environment variables:
  OPENAI_API_KEY - OpenAI-compatible API key for field extraction
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - Google Cloud auth
  GOOGLE_CLOUD_PROJECT - Google Cloud project (Document AI mode)
  DOCUMENT_AI_PROCESSOR_ID - Document AI processor (Document AI mode)`,
	Example: `  # Process a single invoice and print the result
  invoicepipe process invoices/INV-1042.pdf

  # Save the result JSON to a file
  invoicepipe process invoices/INV-1042.pdf -o result.json

  # Batch process a directory
  invoicepipe process invoices/`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "Write result JSON to file instead of stdout")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	target := args[0]
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", target, err)
	}

	if info.IsDir() {
		results, err := p.ProcessBatch(ctx, target)
		if err != nil {
			return err
		}
		fmt.Printf("Processed %d invoice(s)\n", len(results))
		for _, r := range results {
			status := "ready"
			if r.RequiresReview {
				status = "needs review"
			}
			fmt.Printf("  %-30s %s (%d errors, %d warnings)\n",
				r.ExtractedInvoice.InvoiceNumber, status, r.ErrorCount, r.WarningCount)
		}
		return nil
	}

	result, err := p.Process(ctx, target)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if processOutput != "" {
		if err := os.WriteFile(processOutput, out, 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Printf("Result written to %s\n", processOutput)
		return nil
	}
	fmt.Println(string(out))
	return nil
}
