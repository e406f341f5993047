// ABOUTME: Package documentation for the backend HTTP client
// ABOUTME: Describes endpoint resolution, the response envelope, and timeouts

// Package remote implements the HTTP client for the knowledge-retrieval
// backend.
//
// # Endpoint resolution
//
// The base URL and bearer token resolve through a fallback chain:
// explicit argument, then locally stored overrides (the Overrides
// interface, usually backed by the settings file), then the built-in
// default. A URL without an http(s) scheme is coerced to http:// so
// bare host:port settings keep working. UpdateEndpoint re-runs the
// chain at any time; all calls pick up the new endpoint.
//
// # Response envelope
//
// The backend answers in one of two shapes: an envelope
// {"status": N, "data": ...} or the bare payload itself. A body is
// treated as enveloped only when both keys are present; otherwise it
// decodes as the payload directly. List endpoints additionally accept
// a single bare entity and wrap it in a one-element slice. Both shapes
// must yield identical results. The envelope's status field is not
// validated; the HTTP status code is authoritative.
//
// # Timeouts
//
// Each call carries its own deadline: 300s for knowledge retrieval,
// 120s for structured queries, 30s for catalog metadata, and 10s for
// the reachability probe. The probe (Reachable) never returns an
// error; any failure is reported as false.
package remote
