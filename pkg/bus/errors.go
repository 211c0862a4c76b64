package bus

import (
	"errors"
	"fmt"
)

// ErrorCode classifies the outcome of an exchange.
// Any code other than Success is an error.
type ErrorCode byte

// Transport outcomes.
const (
	// Success indicates the exchange completed. It is never returned as an
	// error, a nil error means Success.
	Success ErrorCode = iota
	// TransportTransmissionError indicates the frame was not fully sent.
	TransportTransmissionError
	// TransportReceptionNoAnswerError indicates no byte was received.
	TransportReceptionNoAnswerError
	// TransportReceptionMissingDataError indicates the device started to
	// answer but the response was cut short.
	TransportReceptionMissingDataError
	// TransportChecksumError indicates a complete response failed the
	// checksum validation.
	TransportChecksumError

	// UnknownError is reported by CodeOf for errors which are not codes.
	UnknownError ErrorCode = 0xff
)

var codeNames = map[ErrorCode]string{
	Success:                            "success",
	TransportTransmissionError:         "transmission error",
	TransportReceptionNoAnswerError:    "no answer",
	TransportReceptionMissingDataError: "missing data",
	TransportChecksumError:             "checksum error",
	UnknownError:                       "unknown error",
}

// String implements fmt.Stringer.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code %d", byte(c))
}

// Error implements error.
func (c ErrorCode) Error() string {
	return "bus: " + c.String()
}

// IsTransport indicates the code is a transport failure.
func (c ErrorCode) IsTransport() bool {
	return c >= TransportTransmissionError && c <= TransportChecksumError
}

// CodeOf maps an error returned by Transport to ErrorCode.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	return UnknownError
}

var (
	// ErrInvalidAddress indicates the address is out of 0..255.
	ErrInvalidAddress = errors.New("bus: invalid address")
	// ErrInvalidLength indicates a negative response length.
	ErrInvalidLength = errors.New("bus: invalid response length")
)
