// Package api implements the HTTP REST API for hrstress-server.
//
// New(store, alerts, cfg) returns an http.Handler that serves:
//
//	GET  /api/v1/health                 session count, per-level counts, firing alerts
//	GET  /api/v1/sessions               all live sessions as summary rows
//	GET  /api/v1/sessions/{id}          one session with assessment and insights
//	GET  /api/v1/sessions/{id}/samples  cleaned samples (?limit=N, default 20, 0 = all)
//	GET  /api/v1/sessions/{id}/history  retained sessions of the source, newest first, with deltas
//	GET  /api/v1/summary                comparison table sorted by source, level counts
//	GET  /api/v1/alerts                 firing and recently resolved alerts
//	POST /api/v1/analyze                multipart upload, one result or failure per file
//
// All endpoints respond with Content-Type: application/json and return 405
// for the wrong method. Undefined metrics are encoded as null.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
