// Package router fans gateway activity into the event journal.
//
// The Dispatcher interposes on the health-sink and commander interfaces
// between the transport pair and the health monitor, recording every state
// transition, probe, acknowledgement, error, and forced reconnect as a
// ChannelEvent. Events accumulate in a growable buffer consumed by the
// journal writer.
package router
