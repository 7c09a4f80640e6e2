// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/search and /v1/scrape for synchronous runs.
//   - POST /v1/bulk-search and /v1/bulk-scrape (plus CSV upload) for batches.
//   - GET /v1/jobs/{id} and /v1/logs for polling job state.
//   - GET/POST /v1/settings, /v1/whitelist and /v1/blacklist.
package api
