package model

import "testing"

// TestParseDetectionMode tests parsing of user supplied mode names.
func TestParseDetectionMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    DetectionMode
		wantErr bool
	}{
		{name: "both", input: "both", want: ModeBoth},
		{name: "empty defaults to both", input: "", want: ModeBoth},
		{name: "api", input: "api", want: ModeAPIOnly},
		{name: "apiOnly alias", input: "apiOnly", want: ModeAPIOnly},
		{name: "keywords", input: "keywords", want: ModeKeywordsOnly},
		{name: "keywordsOnly alias with spaces", input: "  KeywordsOnly ", want: ModeKeywordsOnly},
		{name: "unknown", input: "everything", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseDetectionMode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestDetectionModeAllows tests which sources are visible in each mode.
func TestDetectionModeAllows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode       DetectionMode
		keyword    bool
		classifier bool
	}{
		{ModeBoth, true, true},
		{ModeKeywordsOnly, true, false},
		{ModeAPIOnly, false, true},
		{DetectionMode("bogus"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			t.Parallel()

			if got := tt.mode.Allows(SourceKeyword); got != tt.keyword {
				t.Errorf("Allows(keyword) = %v, want %v", got, tt.keyword)
			}
			if got := tt.mode.Allows(SourceClassifier); got != tt.classifier {
				t.Errorf("Allows(classifier) = %v, want %v", got, tt.classifier)
			}
			if got := tt.mode.Allows(Source("other")); got {
				t.Error("unknown source must never be allowed")
			}
		})
	}

	t.Run("IsValid", func(t *testing.T) {
		t.Parallel()
		if !ModeBoth.IsValid() || !ModeAPIOnly.IsValid() || !ModeKeywordsOnly.IsValid() {
			t.Error("expected known modes to be valid")
		}
		if DetectionMode("x").IsValid() {
			t.Error("expected unknown mode to be invalid")
		}
	})
}

// TestScanReport tests report helpers.
func TestScanReport(t *testing.T) {
	t.Parallel()

	r := NewScanReport("http://example.com", ModeBoth)
	if r.HasRedactions() {
		t.Fatal("new report should have no redactions")
	}

	r.Redactions = append(r.Redactions,
		RedactionRecord{ID: "a", Source: SourceKeyword, MatchedKeyword: "alex"},
		RedactionRecord{ID: "b", Source: SourceClassifier},
	)

	other := NewScanReport("http://example.com", ModeBoth)
	other.Redactions = append(other.Redactions, RedactionRecord{ID: "c", Source: SourceKeyword})
	other.ClassifierBatches = 2
	other.ClassifierFailures = 1
	r.Merge(other)

	if got := r.CountBySource(SourceKeyword); got != 2 {
		t.Errorf("expected 2 keyword redactions, got %d", got)
	}
	if got := r.CountBySource(SourceClassifier); got != 1 {
		t.Errorf("expected 1 classifier redaction, got %d", got)
	}
	if r.ClassifierBatches != 2 || r.ClassifierFailures != 1 {
		t.Errorf("unexpected classifier counters: %d/%d", r.ClassifierBatches, r.ClassifierFailures)
	}
	if !r.Redactions[0].HasKeyword() || r.Redactions[1].HasKeyword() {
		t.Error("HasKeyword mismatch")
	}
}
