// Package remote bridges a bus transport to a serial port owned by another
// process.
//
// The Client side is a raw bus channel: every primitive is encoded as a
// Request and written to a packet link. The Agent side reads Requests,
// performs them on a local channel and writes back a Result. Links are
// message oriented (see subpackages mqtt, websocket and stream).
//
// Requests carry a sequence number. A Result is only accepted for the
// request currently waiting, late results are dropped.
package remote
