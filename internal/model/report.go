package model

import "time"

// ScanReport describes the outcome of a single detection pass.
// A pass is started by page load, by the mutation watcher, or by a
// detection mode change.
type ScanReport struct {
	// PageURL is the page the pass ran against.
	PageURL string `json:"page_url"`

	// Mode is the detection mode in effect during the pass.
	Mode DetectionMode `json:"mode"`

	// StartedAt is when the pass began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the pass took, including classifier round trips.
	Duration time.Duration `json:"duration"`

	// KeywordsActive is the keyword list after removing ignored keywords
	// and keywords that are too short to match.
	KeywordsActive []string `json:"keywords_active"`

	// IgnoredKeywords is the session's ignore list when the pass started.
	IgnoredKeywords []string `json:"ignored_keywords"`

	// Redactions holds the records created during this pass.
	Redactions []RedactionRecord `json:"redactions"`

	// Restored holds IDs of placeholders removed because their source is
	// not allowed by the current mode.
	Restored []string `json:"restored,omitempty"`

	// ClassifierBatches is the number of classifier requests sent.
	ClassifierBatches int `json:"classifier_batches"`

	// ClassifierFailures is the number of batches that failed open.
	ClassifierFailures int `json:"classifier_failures"`

	// Skipped is true when the page is on the skip list.
	Skipped bool `json:"skipped,omitempty"`

	// PerformedSteps lists the pipeline steps that ran, failed ones included.
	PerformedSteps []string `json:"performed_steps"`

	// FailedSteps lists the steps that returned an error.
	FailedSteps []string `json:"failed_steps,omitempty"`

	// TimedOut is true when the pass was cancelled by its context.
	TimedOut bool `json:"timed_out,omitempty"`

	// Error holds the first step error, if any.
	Error error `json:"-"`

	// ErrorMessage is the serializable form of Error.
	ErrorMessage string `json:"error,omitempty"`
}

// NewScanReport creates an empty report for pageURL.
func NewScanReport(pageURL string, mode DetectionMode) *ScanReport {
	return &ScanReport{
		PageURL:         pageURL,
		Mode:            mode,
		StartedAt:       time.Now(),
		KeywordsActive:  make([]string, 0),
		IgnoredKeywords: make([]string, 0),
		Redactions:      make([]RedactionRecord, 0),
		PerformedSteps:  make([]string, 0),
	}
}

// CountBySource returns the number of redactions produced by src.
func (r *ScanReport) CountBySource(src Source) int {
	n := 0
	for _, rec := range r.Redactions {
		if rec.Source == src {
			n++
		}
	}
	return n
}

// HasRedactions reports whether the pass redacted anything.
func (r *ScanReport) HasRedactions() bool {
	return len(r.Redactions) > 0
}

// Merge appends the results of another pass over the same page.
func (r *ScanReport) Merge(other *ScanReport) {
	if other == nil {
		return
	}
	r.Redactions = append(r.Redactions, other.Redactions...)
	r.Restored = append(r.Restored, other.Restored...)
	r.ClassifierBatches += other.ClassifierBatches
	r.ClassifierFailures += other.ClassifierFailures
	r.Duration += other.Duration
	r.FailedSteps = append(r.FailedSteps, other.FailedSteps...)
	if r.Error == nil && other.Error != nil {
		r.Error = other.Error
		r.ErrorMessage = other.ErrorMessage
	}
}

// Summary holds redaction counts per source.
type Summary struct {
	Keyword    int `json:"keyword"`
	Classifier int `json:"classifier"`
	Total      int `json:"total"`
}

// Summary returns the redaction counts of the pass.
func (r *ScanReport) Summary() Summary {
	kw := r.CountBySource(SourceKeyword)
	cl := r.CountBySource(SourceClassifier)
	return Summary{Keyword: kw, Classifier: cl, Total: len(r.Redactions)}
}

// Status returns a short human-readable outcome of the pass.
func (r *ScanReport) Status() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.TimedOut:
		return "timed out"
	case r.ErrorMessage != "":
		return "error: " + r.ErrorMessage
	default:
		return "complete"
	}
}
