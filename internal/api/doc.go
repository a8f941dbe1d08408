// Package api hosts the HTTP server, middleware, and REST handlers for the
// menu service. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/menu plus /categories and /stats views of the latest snapshot.
//   - GET /v1/menu/history and /v1/menu/history/{date} backed by the
//     HistoryStore interface.
//   - POST /v1/refresh to request an immediate re-extraction.
package api
