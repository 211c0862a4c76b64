package stream

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// SerialConfig configures a serial port.
type SerialConfig struct {
	Name        string
	Baud        int
	ReadTimeout time.Duration
	// Parity is one of "N", "O", "E", "M", "S", empty means "N".
	Parity string
}

// DefaultReadTimeout is used when SerialConfig.ReadTimeout is not set.
const DefaultReadTimeout = 100 * time.Millisecond

func (c SerialConfig) portConfig() (*serial.Config, error) {
	conf := &serial.Config{
		Name:        c.Name,
		Baud:        c.Baud,
		ReadTimeout: c.ReadTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	}
	if conf.ReadTimeout == 0 {
		conf.ReadTimeout = DefaultReadTimeout
	}
	switch c.Parity {
	case "", "N":
	case "O":
		conf.Parity = serial.ParityOdd
	case "E":
		conf.Parity = serial.ParityEven
	case "M":
		conf.Parity = serial.ParityMark
	case "S":
		conf.Parity = serial.ParitySpace
	default:
		return nil, fmt.Errorf("invalid parity %q", c.Parity)
	}
	return conf, nil
}

// OpenSerial opens a serial port as a Channel.
// The port is flushed by ClearBuffer and closed by Close.
func OpenSerial(c SerialConfig) (*Channel, error) {
	conf, err := c.portConfig()
	if err != nil {
		return nil, err
	}
	port, err := serial.OpenPort(conf)
	if err != nil {
		return nil, fmt.Errorf("open %s error: %v", c.Name, err)
	}
	return New(port), nil
}
