package model

import "time"

// RedactionRecord stores what is needed to put a redacted element back.
// Exactly one record exists for every placeholder that is attached to the
// document; the record is removed when the placeholder is revealed or
// restored.
type RedactionRecord struct {
	// ID is the unique identifier embedded in the placeholder's
	// data-spoiler-id attribute.
	ID string `json:"id"`

	// OriginalMarkup is the serialized outer HTML of the replaced element.
	OriginalMarkup string `json:"original_markup"`

	// MatchedKeyword is the keyword that triggered the redaction.
	// It is empty for classifier redactions.
	MatchedKeyword string `json:"matched_keyword,omitempty"`

	// Source is the detector that produced the redaction.
	Source Source `json:"source"`

	// CreatedAt is when the placeholder was inserted.
	CreatedAt time.Time `json:"created_at"`
}

// HasKeyword reports whether the redaction was caused by a keyword.
func (r RedactionRecord) HasKeyword() bool {
	return r.MatchedKeyword != ""
}
