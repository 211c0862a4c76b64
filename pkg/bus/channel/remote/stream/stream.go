// Package stream implements a remote link over a byte stream (e.g. TCP).
// Each packet is prefixed by its length as 4-byte little-endian.
package stream

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/sbus/pkg/bus"
	"github.com/robotalks/sbus/pkg/bus/channel/remote"
	fx "github.com/robotalks/sbus/pkg/framework"
)

// MaxPacketSize limits the size of a packet being read.
const MaxPacketSize = 64 * 1024

// ReadWriter implements remote.PacketReadWriter.
type ReadWriter struct {
	io.ReadWriter
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{s}
}

// ReadPacket implements remote.PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p.ReadWriter, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > MaxPacketSize {
		return nil, fmt.Errorf("packet too large: %d", size)
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p.ReadWriter, pkt)
	return pkt, err
}

// WritePacket implements remote.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	_, err := p.ReadWriter.Write(buf)
	return err
}

// Close closes the underlying stream if it's an io.Closer.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Dial connects to an agent served at addr over TCP.
func Dial(addr string) (*ReadWriter, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// Serve accepts connections from ln and serves each with an agent on ch
// until ctx is done.
func Serve(ctx context.Context, ln net.Listener, ch bus.Channel) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	return fx.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			wg.Add(1)
			go func(conn net.Conn) {
				defer wg.Done()
				glog.Infof("agent: client %s connected", conn.RemoteAddr())
				err := remote.NewAgent(New(conn), ch).Run(ctx)
				glog.Infof("agent: client %s disconnected: %v", conn.RemoteAddr(), err)
			}(conn)
		}
	})
}
