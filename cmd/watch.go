package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"invoicepipe/internal/config"
	"invoicepipe/internal/pipeline"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Continuously watch a directory for new invoice PDFs",
	Long: `Poll a directory for new or changed invoice PDFs and process each one
as it appears. Processing state lives in SQLite, so the watcher can be
stopped and restarted without reprocessing anything.

Supplier and purchase order CSVs are checked before every scan; editing
them takes effect without a restart.

Press Ctrl-C (or send SIGTERM) for a graceful shutdown: the current
invoice finishes, remaining files are deferred to the next run.`,
	Example: `  # Watch the configured invoices directory
  invoicepipe watch

  # Watch a specific directory, scanning every 10 seconds
  invoicepipe watch /srv/invoices/inbox --interval 10s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Seconds between scans (default from POLL_INTERVAL)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dir := cfg.InvoicesDir
	if len(args) > 0 {
		dir = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	return p.Watch(ctx, dir, watchInterval)
}
