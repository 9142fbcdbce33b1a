package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/spoilerguard/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.ScanReport {
	report := model.NewScanReport("https://example.com/forum/thread-1", model.ModeBoth)
	report.Duration = 1500 * time.Millisecond
	report.KeywordsActive = []string{"alex", "dies"}
	report.IgnoredKeywords = []string{"ending"}
	report.PerformedSteps = []string{"keywords", "classifier"}
	report.ClassifierBatches = 2
	report.ClassifierFailures = 1
	report.Redactions = append(report.Redactions,
		model.RedactionRecord{
			ID:             "spoiler-1",
			OriginalMarkup: "<p>The villain is revealed to be Alex</p>",
			MatchedKeyword: "alex",
			Source:         model.SourceKeyword,
		},
		model.RedactionRecord{
			ID:             "spoiler-2",
			OriginalMarkup: "<p>The captain was killed in the storm.</p>",
			Source:         model.SourceClassifier,
		},
	)
	return report
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"SPOILERGUARD REPORT",
			"https://example.com/forum/thread-1",
			"KEYWORD:    1",
			"CLASSIFIER: 1",
			"BATCHES:    2 (1 failed)",
			"[K] alex",
			"[AI] (classifier)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if strings.Contains(output, "Original:") {
			t.Error("non-verbose output should not include markup")
		}
	})

	t.Run("verbose output includes markup and keywords", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatal(err)
		}
		output := buf.String()
		if !strings.Contains(output, "Original: <p>The villain is revealed to be Alex</p>") {
			t.Error("expected original markup in verbose output")
		}
		if !strings.Contains(output, "Ignored keywords: ending") {
			t.Error("expected ignored keywords in verbose output")
		}
	})

	t.Run("omits redactions section when empty", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := model.NewScanReport("https://example.com", model.ModeKeywordsOnly)
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(buf.String(), "REDACTIONS") {
			t.Error("expected no redactions section")
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables and pie chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{
			"# Spoilerguard Report",
			"## Summary",
			"pie",
			"Redactions by Source",
			"`spoiler-1`",
			"[!WARNING]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})

	t.Run("no redactions", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := model.NewScanReport("https://example.com", model.ModeBoth)
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatal(err)
		}
		output := buf.String()
		if strings.Contains(output, "Redactions by Source") {
			t.Error("pie chart should be omitted without redactions")
		}
		if !strings.Contains(output, "Nothing was redacted.") {
			t.Error("expected empty redactions message")
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded struct {
		PageURL    string                  `json:"page_url"`
		Redactions []model.RedactionRecord `json:"redactions"`
		Summary    model.Summary           `json:"summary"`
		Status     string                  `json:"status"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.PageURL != "https://example.com/forum/thread-1" {
		t.Errorf("page_url = %q", decoded.PageURL)
	}
	if decoded.Summary.Total != 2 || decoded.Summary.Keyword != 1 {
		t.Errorf("summary = %+v", decoded.Summary)
	}
	if decoded.Status != "complete" {
		t.Errorf("status = %q", decoded.Status)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("expected indented output")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format  string
		wantErr bool
	}{
		{"text", false},
		{"", false},
		{"json", false},
		{"markdown", false},
		{"md", false},
		{"xml", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.format, &bytes.Buffer{}, false)
			if tt.wantErr != (err != nil) {
				t.Errorf("New(%q) error = %v", tt.format, err)
			}
			if tt.wantErr && !errors.Is(err, ErrUnknownFormat) {
				t.Errorf("expected ErrUnknownFormat, got %v", err)
			}
		})
	}
}

// failingWriter is a Writer that always fails.
type failingWriter struct{}

func (failingWriter) Write(*model.ScanReport) (int, error) {
	return 0, errors.New("disk full")
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var a, b bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&a), NewJSONWriter(&b))
		if _, err := mw.Write(createTestReport()); err != nil {
			t.Fatal(err)
		}
		if a.Len() == 0 || b.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		mw := NewMultiWriter(failingWriter{}, NewSimpleWriter(&buf))
		if _, err := mw.Write(createTestReport()); err == nil {
			t.Error("expected error")
		}
		if buf.Len() != 0 {
			t.Error("second writer should not run after failure")
		}
	})

	t.Run("WriteAll skips nil reports", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := WriteAll(NewJSONWriter(&buf), []*model.ScanReport{createTestReport(), nil, createTestReport()})
		if err != nil || n == 0 {
			t.Fatalf("WriteAll() = %d, %v", n, err)
		}
		if got := strings.Count(buf.String(), "\n"); got != 2 {
			t.Errorf("expected 2 compact JSON lines, got %d", got)
		}
	})
}

func TestExcerpt(t *testing.T) {
	t.Parallel()

	if got := excerpt("<p>\n  a   b </p>", 50); got != "<p> a b </p>" {
		t.Errorf("excerpt() = %q", got)
	}
	if got := excerpt("abcdefghij", 6); got != "abc..." {
		t.Errorf("excerpt() = %q", got)
	}
}
