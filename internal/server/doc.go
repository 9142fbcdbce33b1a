// Package server implements the local reading proxy. GET /view loads a
// page, redacts it and returns it with a small script that turns clicks on
// placeholders into reveal requests. Each served page keeps a live engine
// session, so reveals, mode switches and appended content update the same
// document the reader sees. The keyword store message relay and the
// Prometheus registry are exposed on the same router.
package server
