// Package engine runs spoiler detection and redaction over one document.
//
// The Engine owns the document, the per-page session state and the
// mutation watcher. Every read or write of the document happens while the
// engine lock is held, so two redactions never interleave. Keyword store
// round trips and classifier batches run outside the lock; classifier
// verdicts are applied under it, one batch at a time.
//
// A pass runs the keyword step and then the classifier step, each only
// when the current detection mode allows it:
//
//	Load -> Scan -> (AppendHTML -> watcher -> Scan)* -> Reveal / SetMode
package engine
