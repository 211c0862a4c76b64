package mqtt

import (
	"io"
	"sync"
)

// Topic suffixes.
const (
	RequestTopic = "req"
	ResultTopic  = "res"
)

// ReadWriter implements remote.PacketReadWriter over two topics.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	sub      *Subscription
	packetCh chan []byte
	done     chan struct{}
	once     sync.Once
}

// NewReadWriter creates the ReadWriter.
func NewReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		packetCh: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForClient uses topics of bus as a client: reads results and writes
// requests.
func (p *ReadWriter) ForClient(bus string) *ReadWriter {
	return p.WithTopics(bus+"/"+ResultTopic, bus+"/"+RequestTopic)
}

// ForAgent uses topics of bus as an agent: reads requests and writes
// results.
func (p *ReadWriter) ForAgent(bus string) *ReadWriter {
	return p.WithTopics(bus+"/"+RequestTopic, bus+"/"+ResultTopic)
}

// Open subscribes SubTopic and waits for the subscription.
func (p *ReadWriter) Open() error {
	p.sub = p.Queue.Sub(p.SubTopic, p.handleMsg)
	p.sub.Token.Wait()
	return p.sub.Token.Error()
}

// ReadPacket implements remote.PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements remote.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Close unsubscribes and unblocks ReadPacket.
func (p *ReadWriter) Close() (err error) {
	p.once.Do(func() {
		close(p.done)
		if p.sub != nil {
			err = p.sub.Close()
		}
	})
	return
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.done:
	}
}
