// Package events provides message broadcasting for boxd.
//
// Bus is the in-process fan-out used by the application coordinator:
// module instances subscribe to the message names they declare, and
// Broadcast delivers synchronously on the caller's goroutine. A Bus may
// carry Relays; NATSRelay publishes every broadcast as a JSON Envelope on
// "<prefix>.<name>" and can feed messages from other processes back into
// the bus.
package events
