// Package frame encodes and validates bus frames.
//
// A frame is laid out as:
//
//	byte 0      address
//	byte 1..N   payload
//	byte N+1    checksum over bytes 0..N
package frame

import (
	"errors"

	"github.com/robotalks/sbus/pkg/bus/checksum"
)

// Overhead is the number of framing bytes added around a payload.
const Overhead = 2

// ErrChecksumMismatch indicates the frame failed checksum validation.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Codec builds and validates frames with a specific checksum.
// The zero value uses checksum.Default.
type Codec struct {
	Checksum checksum.Func
}

func (c Codec) sum(data []byte) byte {
	if fn := c.Checksum; fn != nil {
		return fn(data)
	}
	return checksum.Default(data)
}

// Build encodes payload for the device at address.
func (c Codec) Build(payload []byte, address byte) []byte {
	b := make([]byte, len(payload)+Overhead)
	b[0] = address
	copy(b[1:], payload)
	last := len(b) - 1
	b[last] = c.sum(b[:last])
	return b
}

// ValidateAndStrip verifies the checksum of a received frame and returns
// the payload with address and checksum removed. On mismatch no bytes are
// returned.
func (c Codec) ValidateAndStrip(frame []byte) ([]byte, error) {
	if len(frame) < Overhead {
		return nil, ErrChecksumMismatch
	}
	last := len(frame) - 1
	if !checksum.Verify(c.Checksum, frame[:last], frame[last]) {
		return nil, ErrChecksumMismatch
	}
	payload := make([]byte, last-1)
	copy(payload, frame[1:last])
	return payload, nil
}

var defaultCodec Codec

// Build encodes payload using the default checksum.
func Build(payload []byte, address byte) []byte {
	return defaultCodec.Build(payload, address)
}

// ValidateAndStrip validates frame using the default checksum.
func ValidateAndStrip(frame []byte) ([]byte, error) {
	return defaultCodec.ValidateAndStrip(frame)
}

// Address returns the address byte of a frame, 0 if frame is empty.
func Address(frame []byte) byte {
	if len(frame) == 0 {
		return 0
	}
	return frame[0]
}
