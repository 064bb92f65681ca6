// Package http serves the read-only status surface of a running pipeline:
// liveness, the state of the current run and the Prometheus scrape endpoint.
//
// Routes:
//
//	GET /healthz  liveness check
//	GET /status   current run with per-step state
//	GET /metrics  Prometheus exposition, when metrics are enabled
package http
