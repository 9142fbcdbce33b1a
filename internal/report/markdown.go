package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/spoilerguard/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeRedactions(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with scan information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("Spoilerguard Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Page", "`" + report.PageURL + "`"},
			{"Scan Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Detection Mode", string(report.Mode)},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.ScanReport) string {
	switch {
	case report.Skipped:
		return "⏭️ Skipped (site on skip list)"
	case report.TimedOut:
		return "⚠️ Timed Out (partial results)"
	case report.ErrorMessage != "":
		return "❌ Error - " + report.ErrorMessage
	default:
		return "✅ Complete"
	}
}

// writeSummary writes the per-source summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.ScanReport) {
	s := report.Summary()

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Source", "Redactions"},
		Rows: [][]string{
			{"🔑 Keyword", strconv.Itoa(s.Keyword)},
			{"🤖 Classifier", strconv.Itoa(s.Classifier)},
			{"**Total**", "**" + strconv.Itoa(s.Total) + "**"},
		},
	})
	md.PlainText("")

	if s.Total > 0 {
		w.writePieChart(md, s)
	}

	switch {
	case report.ClassifierFailures > 0:
		md.Warningf(
			"%d of %d classifier batch(es) failed; their text was treated as spoiler-free.",
			report.ClassifierFailures, report.ClassifierBatches,
		)
	case s.Total > 0:
		md.Importantf("%d spoiler(s) hidden on this page.", s.Total)
	default:
		md.Tip("No spoilers detected.")
	}
	md.PlainText("")

	if len(report.IgnoredKeywords) > 0 {
		md.PlainText("Ignored keywords on this page:")
		md.PlainText("")
		md.BulletList(report.IgnoredKeywords...)
		md.PlainText("")
	}
}

// writePieChart writes a mermaid pie chart of redactions per source.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Redactions by Source"),
		piechart.WithShowData(true),
	)
	if s.Keyword > 0 {
		chart.LabelAndIntValue("Keyword", uint64(s.Keyword))
	}
	if s.Classifier > 0 {
		chart.LabelAndIntValue("Classifier", uint64(s.Classifier))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeRedactions writes a table of every redaction.
func (w *MarkdownWriter) writeRedactions(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Redactions")
	md.PlainText("")

	if !report.HasRedactions() {
		md.PlainText("Nothing was redacted.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Redactions))
	for i, rec := range report.Redactions {
		kw := rec.MatchedKeyword
		if kw == "" {
			kw = "-"
		}
		rows[i] = []string{
			"`" + rec.ID + "`",
			string(rec.Source),
			kw,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Source", "Keyword"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, rec := range report.Redactions {
		md.Details(rec.ID, "`"+excerpt(rec.OriginalMarkup, 200)+"`")
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [spoilerguard](https://github.com/nao1215/spoilerguard)*")
}
