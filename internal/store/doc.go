// Package store provides SQLite-based persistence for spoilerguard and the
// request/response message relay the detection engine talks to.
//
// The database keeps:
//   - the active keyword list, in insertion order
//   - the ignored keywords of the current reading session and the page URL
//     they were collected on
//   - user settings such as the detection mode
//   - cached classifier verdicts, keyed by a SHA3-256 digest of the text
//
// SQLite (via modernc.org/sqlite) keeps the whole state in one file with no
// CGO, and WAL mode lets the reading proxy and the CLI share it.
package store
