// Package pipeline runs detection steps in sequence over one page and fans
// scans of many pages out over a bounded number of goroutines.
//
// A scan of one page is a Pipeline: an ordered list of Steps (keyword
// detection, classifier detection) that each receive the page's
// ScanReport and add to it. A step failure is recorded in the report and,
// when configured, the remaining steps still run, because one broken
// detector must never stop the other.
//
// BatchProcessor scans many targets concurrently using errgroup with a
// concurrency limit.
package pipeline
