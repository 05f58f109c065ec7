package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Watch polls dir for new or changed PDF files until ctx is cancelled.
// Reference data CSVs are checked for changes before every scan, so an
// updated supplier list takes effect without a restart.
func (p *Processor) Watch(ctx context.Context, dir string, interval time.Duration) error {
	const op = "Watch"

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s: watch target is not a directory: %s", op, dir)
	}
	if interval <= 0 {
		interval = p.cfg.PollInterval
	}

	p.log.Info().
		Str("dir", dir).
		Dur("interval", interval).
		Str("db", p.cfg.DBPath).
		Msg("Watch mode started")

	totalProcessed := 0
	totalErrors := 0
	defer func() {
		p.log.Info().
			Int("processed", totalProcessed).
			Int("errors", totalErrors).
			Msg("Watch mode stopped")
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p.refdata.ReloadIfChanged()

		newPDFs, err := p.findNewPDFs(ctx, dir)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if len(newPDFs) > 0 {
			p.log.Info().Int("count", len(newPDFs)).Msg("Found new invoices to process")
		}

		for i, pdf := range newPDFs {
			if ctx.Err() != nil {
				p.log.Info().
					Int("deferred", len(newPDFs)-i).
					Msg("Shutdown requested, deferring remaining files")
				return nil
			}
			stem := stemOf(pdf)
			if _, err := p.Process(ctx, pdf); err != nil {
				p.log.Error().Err(err).Str("file", filepath.Base(pdf)).Msg("Processing failed")
				if dbErr := p.db.RecordFailure(ctx, stem, pdf, fileMTime(pdf), err); dbErr != nil {
					p.log.Error().Err(dbErr).Msg("Could not record failure")
				}
				totalErrors++
				continue
			}
			totalProcessed++
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// findNewPDFs returns PDFs in dir not yet processed, or whose mtime has
// changed since last processing.
func (p *Processor) findNewPDFs(ctx context.Context, dir string) ([]string, error) {
	pdfs, err := listPDFs(dir)
	if err != nil {
		return nil, err
	}
	var fresh []string
	for _, pdf := range pdfs {
		processed, err := p.db.IsProcessed(ctx, stemOf(pdf), fileMTime(pdf))
		if err != nil {
			return nil, err
		}
		if !processed {
			fresh = append(fresh, pdf)
		}
	}
	return fresh, nil
}
