// Package bus implements the transport of an addressed master/slave serial
// bus.
//
// A Transport frames a request for a single device address, exchanges the
// frame over a raw Channel and validates the response frame. Exchanges on
// one Transport never overlap on the wire, whether callers use the blocking
// methods or the context-aware ones.
//
// The transport does not retry. Failures are reported as ErrorCode values
// so a device layer can decide what to do (see package device).
package bus
