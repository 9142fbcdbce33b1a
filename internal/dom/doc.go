// Package dom wraps a parsed golang.org/x/net/html tree and gives it the
// handful of live-document behaviours the detection engine relies on:
//
//   - element helpers (attributes, classes, text content)
//   - outer HTML serialization and fragment parsing for reversible edits
//   - mutation notification, so that a watcher can react to added content
//
// A Document is not safe for concurrent use. The engine serializes every
// read and write behind its own lock, the same way a browser confines DOM
// access to a single thread.
//
// # Usage
//
//	doc, err := dom.ParseString(`<html><body><p>Hi</p></body></html>`)
//	cancel := doc.Observe(dom.ObserverFunc(func(recs []dom.MutationRecord) {
//	    // react to inserted or removed nodes
//	}))
//	defer cancel()
//	_, err = doc.AppendHTML(doc.Body(), `<p>More</p>`)
package dom
