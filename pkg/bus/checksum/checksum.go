// Package checksum provides the 8-bit checksums used to protect bus frames.
//
// A checksum always covers the address byte and the payload of a frame,
// never the checksum slot itself.
package checksum

import (
	"github.com/sigurn/crc8"
)

// Func computes an 8-bit checksum over data.
type Func func(data []byte) byte

var crc8Table = crc8.MakeTable(crc8.CRC8)

// CRC8 computes CRC-8 (poly 0x07, init 0x00, no reflection).
func CRC8(data []byte) byte {
	return crc8.Checksum(data, crc8Table)
}

// Sum computes the two's complement of the byte sum (LRC).
// Adding all bytes plus the result yields zero.
func Sum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}

// Default is the checksum used when none is specified.
var Default Func = CRC8

// Verify checks sum against the checksum of data computed by fn.
// A nil fn uses Default.
func Verify(fn Func, data []byte, sum byte) bool {
	if fn == nil {
		fn = Default
	}
	return fn(data) == sum
}

// ByName returns the checksum by its name ("crc8" or "sum").
func ByName(name string) (Func, bool) {
	switch name {
	case "", "crc8":
		return CRC8, true
	case "sum", "lrc":
		return Sum, true
	}
	return nil, false
}
