package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/spoilerguard/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds the original markup of every redaction.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeRedactions(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with scan information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       SPOILERGUARD REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Page:           %s\n", report.PageURL)
	fmt.Fprintf(sb, "Scan Date:      %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Detection Mode: %s\n", report.Mode)
	fmt.Fprintf(sb, "Duration:       %s\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:         %s\n", report.Status())
	sb.WriteString("\n")
}

// writeSummary writes the per-source counts and keyword lists.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	s := report.Summary()
	fmt.Fprintf(sb, "  KEYWORD:    %d\n", s.Keyword)
	fmt.Fprintf(sb, "  CLASSIFIER: %d\n", s.Classifier)
	fmt.Fprintf(sb, "  TOTAL:      %d redactions\n", s.Total)
	if report.ClassifierBatches > 0 {
		fmt.Fprintf(sb, "  BATCHES:    %d (%d failed)\n", report.ClassifierBatches, report.ClassifierFailures)
	}
	if len(report.Restored) > 0 {
		fmt.Fprintf(sb, "  RESTORED:   %d\n", len(report.Restored))
	}
	sb.WriteString("\n")

	if w.verbose {
		fmt.Fprintf(sb, "  Active keywords:  %s\n", joinOrNone(report.KeywordsActive))
		fmt.Fprintf(sb, "  Ignored keywords: %s\n", joinOrNone(report.IgnoredKeywords))
		fmt.Fprintf(sb, "  Steps:            %s\n", joinOrNone(report.PerformedSteps))
		if len(report.FailedSteps) > 0 {
			fmt.Fprintf(sb, "  Failed steps:     %s\n", strings.Join(report.FailedSteps, ", "))
		}
		sb.WriteString("\n")
	}
}

// writeRedactions lists every placeholder created during the pass.
func (w *SimpleWriter) writeRedactions(sb *strings.Builder, report *model.ScanReport) {
	if !report.HasRedactions() {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("REDACTIONS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, rec := range report.Redactions {
		label := rec.MatchedKeyword
		if !rec.HasKeyword() {
			label = "(classifier)"
		}
		fmt.Fprintf(sb, "  [%s] %s\n", indicator(rec.Source), label)
		fmt.Fprintf(sb, "    ID: %s\n", rec.ID)
		if w.verbose {
			fmt.Fprintf(sb, "    Original: %s\n", excerpt(rec.OriginalMarkup, 120))
		}
	}
	sb.WriteString("\n")
}

// indicator returns a visual marker for the redaction source.
func indicator(src model.Source) string {
	switch src {
	case model.SourceKeyword:
		return "K"
	case model.SourceClassifier:
		return "AI"
	default:
		return "?"
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by spoilerguard\n")
	sb.WriteString("https://github.com/nao1215/spoilerguard\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

func joinOrNone(list []string) string {
	if len(list) == 0 {
		return "(none)"
	}
	return strings.Join(list, ", ")
}
