package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/spoilerguard/internal/model"
	"golang.org/x/sync/errgroup"
)

// ScanFunc scans one target and returns its report. A non-nil report
// should be returned even on error so that the failure can be shown.
type ScanFunc func(ctx context.Context, target string) (*model.ScanReport, error)

// BatchProcessor scans multiple targets concurrently.
type BatchProcessor struct {
	// scan runs one target.
	scan ScanFunc

	// concurrency is the maximum number of concurrent scans.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	mu sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent scans.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(scan ScanFunc, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		scan:        scan,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch scans every target, at most concurrency at a time, and
// returns the reports in target order. Failed scans still produce a
// report carrying the error.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.ScanReport, error) {
	results := make([]*model.ScanReport, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(report *model.ScanReport, index int) {
		bp.mu.Lock()
		results[index] = report
		bp.mu.Unlock()
	})
	return results, err
}

// ProcessBatchWithCallback scans every target and calls callback from the
// goroutine that finished each scan.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(report *model.ScanReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("scanning page",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			report, err := bp.scan(ctx, target)
			if report == nil {
				report = model.NewScanReport(target, "")
			}
			if err != nil {
				bp.logger.Warn("scan failed", "target", target, "error", err)
				if report.Error == nil {
					report.Error = err
					report.ErrorMessage = err.Error()
				}
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)
	return err
}
