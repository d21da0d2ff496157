// Package health implements the dual-channel connection health monitor.
//
// A Monitor watches the state streams of the identified and unidentified
// channels. While either channel is connected, a background keep-alive
// sender probes at a fixed cadence; if either channel goes without an
// acknowledgement for three cadences, or the service bursts device-mismatch
// errors, the monitor forces both channels to reconnect.
//
// Detection is deliberately paired: one stale channel restarts both,
// matching the service's channel-pairing assumptions.
package health
