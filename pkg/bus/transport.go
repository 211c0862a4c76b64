package bus

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/sbus/pkg/bus/frame"
	"github.com/robotalks/sbus/pkg/bus/xlock"
)

// Valid device addresses.
const (
	MinAddress = 0
	MaxAddress = 0xff
)

// Counters counts bytes on the wire, including failed exchanges.
type Counters struct {
	BytesSent     uint64 `json:"bytes_sent"`
	BytesReceived uint64 `json:"bytes_received"`
}

// Transport exchanges frames with devices over a Channel.
type Transport struct {
	name     string
	ch       Channel
	codec    frame.Codec
	lock     *xlock.Lock
	counters Counters
}

// Option configures a Transport.
type Option func(*Transport)

// WithCodec specifies the frame codec.
func WithCodec(codec frame.Codec) Option {
	return func(t *Transport) { t.codec = codec }
}

// WithName sets the name used in logs.
func WithName(name string) Option {
	return func(t *Transport) { t.name = name }
}

// New creates a Transport over ch. The Transport doesn't own ch.
func New(ch Channel, opts ...Option) *Transport {
	t := &Transport{name: "bus", ch: ch, lock: xlock.New()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the name of the transport.
func (t *Transport) Name() string {
	return t.name
}

// Channel returns the underlying channel.
func (t *Transport) Channel() Channel {
	return t.ch
}

// Transmit sends payload to the device at address without waiting for an
// answer.
func (t *Transport) Transmit(address int, payload []byte) error {
	addr, err := checkAddress(address)
	if err != nil {
		return err
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.transmit(blockingOps{t.ch}, addr, payload)
}

// TransmitContext is the context-aware form of Transmit. ctx only bounds
// the wait for the exchange lock.
func (t *Transport) TransmitContext(ctx context.Context, address int, payload []byte) error {
	addr, err := checkAddress(address)
	if err != nil {
		return err
	}
	if err := t.lock.LockContext(ctx); err != nil {
		return err
	}
	defer t.lock.Unlock()
	return t.transmit(contextOps{ctx: ctx, ch: t.ch}, addr, payload)
}

// Transceive sends payload to the device at address and reads a response
// payload of n bytes, framing excluded.
func (t *Transport) Transceive(address int, payload []byte, n int) ([]byte, error) {
	addr, err := checkRequest(address, n)
	if err != nil {
		return nil, err
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.transceive(blockingOps{t.ch}, addr, payload, n)
}

// TransceiveContext is the context-aware form of Transceive. ctx only
// bounds the wait for the exchange lock.
func (t *Transport) TransceiveContext(ctx context.Context, address int, payload []byte, n int) ([]byte, error) {
	addr, err := checkRequest(address, n)
	if err != nil {
		return nil, err
	}
	if err := t.lock.LockContext(ctx); err != nil {
		return nil, err
	}
	defer t.lock.Unlock()
	return t.transceive(contextOps{ctx: ctx, ch: t.ch}, addr, payload, n)
}

// Counters returns a snapshot of the traffic counters.
func (t *Transport) Counters() Counters {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.counters
}

// ResetCounters zeroes the traffic counters.
func (t *Transport) ResetCounters() {
	t.lock.Lock()
	t.counters = Counters{}
	t.lock.Unlock()
}

// transmit must be called with lock held.
func (t *Transport) transmit(ops rawOps, addr byte, payload []byte) error {
	f := t.codec.Build(payload, addr)
	glog.V(3).Infof("%s TX [%d] % x", t.name, addr, f)
	ok := ops.transmit(f)
	t.counters.BytesSent += uint64(len(f))
	if !ok {
		glog.V(2).Infof("%s [%d] transmit failed", t.name, addr)
		return TransportTransmissionError
	}
	return nil
}

// transceive must be called with lock held.
func (t *Transport) transceive(ops rawOps, addr byte, payload []byte, n int) ([]byte, error) {
	if !ops.clearBuffer() {
		glog.Warningf("%s clear buffer failed", t.name)
	}
	f := t.codec.Build(payload, addr)
	glog.V(3).Infof("%s TX [%d] % x", t.name, addr, f)
	ok, rx := ops.transceive(f, n+frame.Overhead)
	t.counters.BytesSent += uint64(len(f))
	t.counters.BytesReceived += uint64(len(rx))
	glog.V(3).Infof("%s RX [%d] ok=%v % x", t.name, addr, ok, rx)
	if !ok {
		code := TransportReceptionNoAnswerError
		if len(rx) > 0 {
			code = TransportReceptionMissingDataError
		}
		glog.V(2).Infof("%s [%d] %s: %d of %d bytes", t.name, addr, code, len(rx), n+frame.Overhead)
		return nil, code
	}
	data, err := t.codec.ValidateAndStrip(rx)
	if err != nil {
		glog.V(2).Infof("%s [%d] %v", t.name, addr, err)
		return nil, TransportChecksumError
	}
	return data, nil
}

func checkAddress(address int) (byte, error) {
	if address < MinAddress || address > MaxAddress {
		return 0, ErrInvalidAddress
	}
	return byte(address), nil
}

func checkRequest(address, n int) (byte, error) {
	if n < 0 {
		return 0, ErrInvalidLength
	}
	return checkAddress(address)
}
