// Package stream provides a raw bus channel over a byte stream such as a
// serial port.
package stream

import (
	"io"
	"os"

	"github.com/golang/glog"
)

// Flusher discards unread input.
type Flusher interface {
	Flush() error
}

// DefaultMaxDrain limits the bytes discarded by ClearBuffer when the
// stream has no Flusher.
const DefaultMaxDrain = 4096

// Channel implements bus.BlockingChannel over an io.ReadWriter.
// Read is expected to return 0 bytes (or a timeout error/io.EOF) when no
// data arrives within the read timeout of the stream.
type Channel struct {
	ReadWriter io.ReadWriter
	MaxDrain   int
}

// New creates a Channel.
func New(rw io.ReadWriter) *Channel {
	return &Channel{ReadWriter: rw, MaxDrain: DefaultMaxDrain}
}

// Transmit implements bus.BlockingChannel.
func (c *Channel) Transmit(frame []byte) bool {
	n, err := c.ReadWriter.Write(frame)
	if err != nil {
		glog.Warningf("stream write error: %v", err)
		return false
	}
	return n == len(frame)
}

// Transceive implements bus.BlockingChannel.
func (c *Channel) Transceive(frame []byte, n int) (bool, []byte) {
	if !c.Transmit(frame) {
		return false, nil
	}
	buf := make([]byte, n)
	var got int
	for got < n {
		m, err := c.ReadWriter.Read(buf[got:])
		got += m
		if err != nil {
			if err != io.EOF && !os.IsTimeout(err) {
				glog.Warningf("stream read error: %v", err)
			}
			break
		}
		if m == 0 {
			break
		}
	}
	return got == n, buf[:got]
}

// ClearBuffer implements bus.BlockingChannel.
func (c *Channel) ClearBuffer() bool {
	if f, ok := c.ReadWriter.(Flusher); ok {
		if err := f.Flush(); err != nil {
			glog.Warningf("stream flush error: %v", err)
			return false
		}
		return true
	}
	max := c.MaxDrain
	if max <= 0 {
		max = DefaultMaxDrain
	}
	buf := make([]byte, 64)
	for drained := 0; drained < max; {
		m, err := c.ReadWriter.Read(buf)
		drained += m
		if m > 0 {
			glog.V(3).Infof("stream discard % x", buf[:m])
		}
		if err != nil || m == 0 {
			return err == nil || err == io.EOF || os.IsTimeout(err)
		}
	}
	return false
}

// Close closes the underlying stream if it's an io.Closer.
func (c *Channel) Close() error {
	if closer, ok := c.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
