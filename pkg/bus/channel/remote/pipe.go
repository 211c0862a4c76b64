package remote

import (
	"io"
	"sync"
)

// Pipe creates an in-memory link. Packets written to one end are read
// from the other end.
func Pipe() (PacketReadWriter, PacketReadWriter) {
	a2b, b2a := make(chan []byte, 1), make(chan []byte, 1)
	done := make(chan struct{})
	var once sync.Once
	closeFn := func() { once.Do(func() { close(done) }) }
	return &pipeEnd{in: b2a, out: a2b, done: done, close: closeFn},
		&pipeEnd{in: a2b, out: b2a, done: done, close: closeFn}
}

type pipeEnd struct {
	in    <-chan []byte
	out   chan<- []byte
	done  <-chan struct{}
	close func()
}

func (p *pipeEnd) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.in:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

func (p *pipeEnd) WritePacket(pkt []byte) error {
	select {
	case p.out <- append([]byte(nil), pkt...):
		return nil
	case <-p.done:
		return io.ErrClosedPipe
	}
}

// Close closes both ends.
func (p *pipeEnd) Close() error {
	p.close()
	return nil
}
