// Package transport implements the paired WebSocket transport to the
// Chatwire service.
//
// A Pair owns two logically independent channels:
//   - identified: authenticated with account credentials
//   - unidentified: anonymous, for sealed traffic
//
// Each channel exposes a de-duplicated stream of connection states, and the
// pair redials a dropped channel with exponential backoff. Keep-alive
// acknowledgements and response errors observed on either channel are fed to
// a HealthSink; the health monitor decides when the pair must be forced to
// reconnect.
package transport
