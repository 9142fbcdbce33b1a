package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/spoilerguard/internal/config"
	"github.com/nao1215/spoilerguard/internal/dom"
	"github.com/nao1215/spoilerguard/internal/engine"
	"github.com/nao1215/spoilerguard/internal/model"
	"github.com/nao1215/spoilerguard/internal/pipeline"
	"github.com/nao1215/spoilerguard/internal/report"
	"github.com/nao1215/spoilerguard/internal/source"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url-or-file]...",
		Short: "Find and redact spoilers in web pages",
		Long: `Scan loads each page, runs the spoiler detectors over it and reports
every redaction. The redacted markup can be written to a directory.

Scans never change the stored ignore list or detection mode; use
--mode and --keyword for one-off overrides.

Examples:
  # Scan a page with the stored keywords
  spoilerguard scan https://example.com/forum/finale-thread

  # Scan local files with an extra keyword, keywords only
  spoilerguard scan --mode keywords -k "Red Wedding" page1.html page2.html

  # Render JavaScript pages and save the redacted HTML
  spoilerguard scan --render --output-html ./redacted https://example.com/recap

  # Markdown report to a file
  spoilerguard scan --markdown -o report.md https://example.com/recap`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Loading
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for loading one page")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of pages scanned concurrently")
	cmd.Flags().Bool("render", false, "Load pages through headless Chrome")
	cmd.Flags().String("chrome-path", "", "Chrome executable used with --render")
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User-Agent for page requests")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize, "Maximum page size in bytes")

	// Detection
	cmd.Flags().String("mode", "", "Detection mode for this run: both, api or keywords (default: stored mode)")
	cmd.Flags().StringSliceP("keyword", "k", nil, "Extra keyword for this run (repeatable)")
	cmd.Flags().Bool("fuzzy", false, "Enable approximate keyword matching")
	cmd.Flags().Float64("fuzzy-threshold", config.DefaultFuzzyThreshold, "Similarity needed for a fuzzy match")
	cmd.Flags().Bool("plurals", false, "Let keywords match simple plural forms")
	cmd.Flags().Float64("viewport", config.DefaultViewportWidth, "Viewport width assumed by the layout model")
	cmd.Flags().StringSlice("skip-domain", nil, "Host never scanned; replaces the built-in list (repeatable)")

	addClassifierFlags(cmd)

	// Report
	cmd.Flags().BoolP("json", "j", false, "Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "", "Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("output-html", "", "Directory receiving the redacted HTML of every page")

	return cmd
}

// addClassifierFlags registers the classifier flags shared by scan and serve.
func addClassifierFlags(cmd *cobra.Command) {
	cmd.Flags().String("classifier", "", "Spoiler classifier endpoint URL (empty: keywords only)")
	cmd.Flags().String("classifier-user", "", "Classifier basic auth user")
	cmd.Flags().Int("classifier-batch", config.DefaultClassifierBatchSize, "Chunks per classifier request")
	cmd.Flags().Duration("classifier-delay", config.DefaultClassifierDelay, "Pause between classifier requests")
	cmd.Flags().Duration("classifier-timeout", config.DefaultClassifierTimeout, "Timeout for one classifier request")
	cmd.Flags().Int("max-chunks", 0, "Maximum chunks sent to the classifier per pass (0: no limit)")
}

// applyClassifierFlags reads the classifier flags. The password only comes
// from the configuration file or SPOILERGUARD_CLASSIFIER_PASSWORD so that
// it never shows up in process listings.
func applyClassifierFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	for _, err := range []error{
		override(cmd, "classifier", &cfg.ClassifierEndpoint, f.GetString),
		override(cmd, "classifier-user", &cfg.ClassifierUsername, f.GetString),
		override(cmd, "classifier-batch", &cfg.ClassifierBatchSize, f.GetInt),
		override(cmd, "classifier-delay", &cfg.ClassifierDelay, f.GetDuration),
		override(cmd, "classifier-timeout", &cfg.ClassifierTimeout, f.GetDuration),
		override(cmd, "max-chunks", &cfg.MaxChunks, f.GetInt),
	} {
		if err != nil {
			return err
		}
	}
	if pw := os.Getenv("SPOILERGUARD_CLASSIFIER_PASSWORD"); pw != "" {
		cfg.ClassifierPassword = pw
	}
	return nil
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildScanConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.runScan(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildScanConfig creates a Config from the configuration file and flags.
func buildScanConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	var mode string
	for _, err := range []error{
		override(cmd, "timeout", &cfg.Timeout, f.GetDuration),
		override(cmd, "batch", &cfg.BatchSize, f.GetInt),
		override(cmd, "render", &cfg.Render, f.GetBool),
		override(cmd, "chrome-path", &cfg.ChromePath, f.GetString),
		override(cmd, "user-agent", &cfg.UserAgent, f.GetString),
		override(cmd, "max-body-size", &cfg.MaxBodySize, f.GetInt64),
		override(cmd, "mode", &mode, f.GetString),
		override(cmd, "fuzzy", &cfg.Fuzzy, f.GetBool),
		override(cmd, "fuzzy-threshold", &cfg.FuzzyThreshold, f.GetFloat64),
		override(cmd, "plurals", &cfg.Plurals, f.GetBool),
		override(cmd, "viewport", &cfg.ViewportWidth, f.GetFloat64),
		override(cmd, "skip-domain", &cfg.SkipDomains, f.GetStringSlice),
		override(cmd, "json", &cfg.JSONReport, f.GetBool),
		override(cmd, "markdown", &cfg.MarkdownReport, f.GetBool),
		override(cmd, "output", &cfg.ReportFile, f.GetString),
		override(cmd, "output-html", &cfg.OutputHTML, f.GetString),
	} {
		if err != nil {
			return nil, err
		}
	}
	if err := applyClassifierFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if mode != "" {
		parsed, err := model.ParseDetectionMode(mode)
		if err != nil {
			return nil, err
		}
		cfg.Mode = parsed
	}
	extra, err := f.GetStringSlice("keyword")
	if err != nil {
		return nil, err
	}
	cfg.Keywords = append(cfg.Keywords, extra...)
	cfg.Targets = args
	return cfg, nil
}

// runScan scans every target through a BatchProcessor and streams the
// reports as they complete.
func (a *app) runScan(ctx context.Context, stdout, stderr io.Writer) error {
	cfg := a.cfg
	a.logger.Info("starting scan",
		"targets", len(cfg.Targets),
		"batchSize", cfg.BatchSize,
		"classifier", cfg.ClassifierEndpoint != "",
	)

	out := stdout
	if cfg.ReportFile != "" {
		f, err := createReportFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	writer, err := report.New(reportFormat(cfg), out, cfg.Verbose)
	if err != nil {
		return err
	}

	bp := pipeline.NewBatchProcessor(a.scanTarget,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(a.logger),
	)

	startTime := time.Now()
	var (
		mu     sync.Mutex
		failed int
		total  int
	)
	err = bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r *model.ScanReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		total++
		if r.Error != nil {
			failed++
		}
		fmt.Fprintf(stderr, "[%d/%d] %s: %s\n", index+1, len(cfg.Targets), r.PageURL, r.Status())
		if _, err := writer.Write(r); err != nil {
			a.logger.Error("report failed", "target", r.PageURL, "error", err)
		}
	})
	fmt.Fprintf(stderr, "Scanned %d page(s) in %s\n", total, time.Since(startTime).Round(time.Millisecond))

	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errScansFailed, failed, total)
	}
	return nil
}

// scanTarget loads one page and runs a full engine pass over it.
func (a *app) scanTarget(ctx context.Context, target string) (*model.ScanReport, error) {
	site := a.site(target)
	mode := a.siteMode(site)

	loadCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	page, err := a.loaderFor(site).Load(loadCtx, target)
	cancel()
	if err != nil {
		return model.NewScanReport(target, mode), err
	}

	doc, err := dom.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return model.NewScanReport(page.URL, mode), fmt.Errorf("failed to parse %s: %w", page.URL, err)
	}

	msgr := &overlay{
		next:     a.broker,
		keywords: append(append([]string(nil), a.cfg.Keywords...), site.Keywords...),
		mode:     mode,
		readOnly: true,
	}
	eng := engine.New(doc, source.New(msgr, a.logger), a.engineOptions(site, nil))
	r, err := eng.Load(ctx, page.URL)

	if a.cfg.OutputHTML != "" && r != nil && !r.Skipped {
		if werr := writeRedactedHTML(a.cfg.OutputHTML, page.URL, eng.HTML()); werr != nil {
			a.logger.Error("failed to write redacted HTML", "url", page.URL, "error", werr)
		}
	}
	return r, err
}

func reportFormat(cfg *config.Config) string {
	switch {
	case cfg.JSONReport:
		return report.FormatJSON
	case cfg.MarkdownReport:
		return report.FormatMarkdown
	default:
		return report.FormatText
	}
}

// createReportFile creates path and its parent directories. Reports quote
// page content, so the file is private to the owner.
func createReportFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// redactedFileName maps a page URL onto a flat file name.
func redactedFileName(pageURL string) string {
	name := pageURL
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	name = strings.Trim(unsafeFileChars.ReplaceAllString(name, "_"), "_.")
	if name == "" {
		name = "page"
	}
	if len(name) > 120 {
		name = name[:120]
	}
	return name + ".html"
}

func writeRedactedHTML(dir, pageURL, markup string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	path := filepath.Join(dir, redactedFileName(pageURL))
	if err := os.WriteFile(path, []byte(markup), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
