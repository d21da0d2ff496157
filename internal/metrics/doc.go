// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Channel state transitions and forced reconnects
//   - Keep-alive probe and acknowledgement rates
//   - Error response envelopes by status
//   - Journal batch sizes and write failures
package metrics
