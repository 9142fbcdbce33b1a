// Package fetch loads the pages the engine scans.
//
// A Fetcher reads http(s) targets over the network and everything else
// from the local filesystem. A Renderer loads a page in headless Chrome
// and returns the markup after scripts have run, which is what a reader
// would actually see for client-rendered pages.
//
// Both implement Loader, so callers pick one at startup and never care
// which they got.
package fetch
