// Package api implements the HTTP surface of obs-agent.
//
// New(engine, feeds, guard) returns an http.Handler that serves:
//
//	GET /api/v1/state              — the full State record
//	GET /api/v1/classes            — sorted class list mirroring the State
//	GET /api/v1/diagnostics        — plain-language reasons behind the stance
//	GET /api/v1/health             — liveness and channel initialization
//	PUT /api/v1/signals/network    — push a network reading into the feed
//	PUT /api/v1/signals/battery    — push a battery reading into the feed
//	GET /metrics                   — Prometheus text exposition of the State
//
// Read endpoints respond with Content-Type: application/json and return 405
// for other methods. The signal endpoints are wrapped by guard (the API key
// middleware) and answer 404 when the matching channel is not a feed source.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
