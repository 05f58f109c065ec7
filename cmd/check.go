package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"invoicepipe/internal/config"
	"invoicepipe/internal/pipeline"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify configuration, credentials, and reference data",
	Long: `Run pre-flight diagnostics: confirm the LLM endpoint is reachable and
the configured model is available, and report on the supplier CSV,
purchase order CSVs, state database, and invoice directory.`,
	Example: `  invoicepipe check`,
	Args:    cobra.NoArgs,
	RunE:    runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	status := p.CheckSetup(ctx)
	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !status.LLM.OK {
		return fmt.Errorf("LLM endpoint check failed: %s", status.LLM.Error)
	}
	return nil
}
