// Package traffic defines the captured-traffic model consumed by the
// triage pipeline: one Record per proxied request/response exchange,
// ordered case-insensitive response headers, and the Source contract that
// session readers implement.
package traffic
