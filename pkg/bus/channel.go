package bus

import (
	"context"

	"github.com/robotalks/sbus/pkg/bus/xlock"
)

// BlockingChannel is the raw medium of a bus with blocking primitives.
type BlockingChannel interface {
	// Transmit writes the full frame and reports whether all bytes were sent.
	Transmit(frame []byte) bool
	// Transceive writes frame then reads exactly n bytes. It returns the
	// bytes actually received, even on failure.
	Transceive(frame []byte, n int) (bool, []byte)
	// ClearBuffer discards unread input.
	ClearBuffer() bool
}

// Channel is the raw medium with both blocking and context-aware
// primitives. Once started, a context-aware primitive runs to completion.
type Channel interface {
	BlockingChannel
	TransmitContext(ctx context.Context, frame []byte) bool
	TransceiveContext(ctx context.Context, frame []byte, n int) (bool, []byte)
	ClearBufferContext(ctx context.Context) bool
}

// Suspendable adapts a BlockingChannel to Channel. The context-aware
// primitives run the blocking ones; the caller already holds the exchange
// lock, so ctx is not consulted.
func Suspendable(ch BlockingChannel) Channel {
	if c, ok := ch.(Channel); ok {
		return c
	}
	return &suspendable{BlockingChannel: ch}
}

type suspendable struct {
	BlockingChannel
}

func (s *suspendable) TransmitContext(_ context.Context, frame []byte) bool {
	return s.Transmit(frame)
}

func (s *suspendable) TransceiveContext(_ context.Context, frame []byte, n int) (bool, []byte) {
	return s.Transceive(frame, n)
}

func (s *suspendable) ClearBufferContext(_ context.Context) bool {
	return s.ClearBuffer()
}

// Exclusive serializes the primitives of ch so callers not sharing a
// Transport, e.g. several remote clients of one agent, never overlap on the
// medium. A started primitive always reaches the medium, ctx included.
func Exclusive(ch Channel) Channel {
	return &exclusive{ch: ch, lock: xlock.New()}
}

type exclusive struct {
	ch   Channel
	lock *xlock.Lock
}

func (e *exclusive) Transmit(frame []byte) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.ch.Transmit(frame)
}

func (e *exclusive) Transceive(frame []byte, n int) (bool, []byte) {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.ch.Transceive(frame, n)
}

func (e *exclusive) ClearBuffer() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.ch.ClearBuffer()
}

func (e *exclusive) TransmitContext(ctx context.Context, frame []byte) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.ch.TransmitContext(ctx, frame)
}

func (e *exclusive) TransceiveContext(ctx context.Context, frame []byte, n int) (bool, []byte) {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.ch.TransceiveContext(ctx, frame, n)
}

func (e *exclusive) ClearBufferContext(ctx context.Context) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.ch.ClearBufferContext(ctx)
}

// rawOps binds one calling style of a Channel for a single exchange.
type rawOps interface {
	transmit(frame []byte) bool
	transceive(frame []byte, n int) (bool, []byte)
	clearBuffer() bool
}

type blockingOps struct {
	ch Channel
}

func (o blockingOps) transmit(frame []byte) bool { return o.ch.Transmit(frame) }
func (o blockingOps) clearBuffer() bool          { return o.ch.ClearBuffer() }
func (o blockingOps) transceive(frame []byte, n int) (bool, []byte) {
	return o.ch.Transceive(frame, n)
}

type contextOps struct {
	ctx context.Context
	ch  Channel
}

func (o contextOps) transmit(frame []byte) bool { return o.ch.TransmitContext(o.ctx, frame) }
func (o contextOps) clearBuffer() bool          { return o.ch.ClearBufferContext(o.ctx) }
func (o contextOps) transceive(frame []byte, n int) (bool, []byte) {
	return o.ch.TransceiveContext(o.ctx, frame, n)
}
