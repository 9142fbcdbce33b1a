package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDetectionMode is returned for unknown detection mode values.
var ErrInvalidDetectionMode = errors.New("invalid detection mode")

// DetectionMode controls which detectors run during a scan pass.
// The string values match the persisted "detectionMode" setting.
type DetectionMode string

const (
	// ModeBoth runs the keyword matcher and the remote classifier.
	ModeBoth DetectionMode = "both"

	// ModeAPIOnly runs only the remote classifier.
	ModeAPIOnly DetectionMode = "api"

	// ModeKeywordsOnly runs only the keyword matcher.
	ModeKeywordsOnly DetectionMode = "keywords"
)

// DefaultDetectionMode is used when no mode has been persisted yet.
const DefaultDetectionMode = ModeBoth

// ParseDetectionMode converts a user supplied string into a DetectionMode.
// It accepts the persisted values plus the long aliases "apiOnly" and
// "keywordsOnly", case-insensitively.
func ParseDetectionMode(s string) (DetectionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "both", "":
		return ModeBoth, nil
	case "api", "apionly", "api-only":
		return ModeAPIOnly, nil
	case "keywords", "keywordsonly", "keywords-only":
		return ModeKeywordsOnly, nil
	default:
		return "", fmt.Errorf("%w: %q (want both, api or keywords)", ErrInvalidDetectionMode, s)
	}
}

// String returns the persisted representation of the mode.
func (m DetectionMode) String() string {
	return string(m)
}

// IsValid reports whether m is one of the known modes.
func (m DetectionMode) IsValid() bool {
	switch m {
	case ModeBoth, ModeAPIOnly, ModeKeywordsOnly:
		return true
	default:
		return false
	}
}

// AllowsKeywords reports whether the keyword matcher runs in this mode.
func (m DetectionMode) AllowsKeywords() bool {
	return m == ModeBoth || m == ModeKeywordsOnly
}

// AllowsClassifier reports whether the remote classifier runs in this mode.
func (m DetectionMode) AllowsClassifier() bool {
	return m == ModeBoth || m == ModeAPIOnly
}

// Allows reports whether redactions produced by src are visible in this mode.
func (m DetectionMode) Allows(src Source) bool {
	switch src {
	case SourceKeyword:
		return m.AllowsKeywords()
	case SourceClassifier:
		return m.AllowsClassifier()
	default:
		return false
	}
}

// Source identifies the detector that produced a redaction.
type Source string

const (
	// SourceKeyword marks redactions produced by the keyword matcher.
	SourceKeyword Source = "keyword"

	// SourceClassifier marks redactions produced by the remote classifier.
	SourceClassifier Source = "classifier"
)
