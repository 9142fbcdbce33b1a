// Package model defines the data structures shared by the detection engine,
// the persistence layer, and the report writers.
//
// This package contains the following main types:
//   - DetectionMode: which detector(s) may redact content
//   - Source: which detector produced a redaction
//   - RedactionRecord: everything needed to restore a redacted element
//   - ScanReport: the outcome of one detection pass over a page
//
// The types are serializable to JSON for report output and for the
// message relay used by the keyword store.
package model
