// Package deferred provides a raw bus channel whose I/O is performed by an
// external party.
//
// Each primitive hands a Request to the registered Handler and blocks until
// the external party reports the outcome with SetResult. This integrates
// the transport with hosts which own the actual medium, e.g. a remote agent
// or an event loop of another runtime.
package deferred

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"
)

// Op is the primitive requested.
type Op int

// Primitives.
const (
	OpTransmit Op = iota
	OpTransceive
	OpClearBuffer
)

// String implements fmt.Stringer.
func (o Op) String() string {
	switch o {
	case OpTransmit:
		return "transmit"
	case OpTransceive:
		return "transceive"
	case OpClearBuffer:
		return "clear-buffer"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Request is a primitive to be performed by the external party.
type Request struct {
	Op             Op
	Frame          []byte
	BytesRequested int
}

// Result is the outcome of a Request.
type Result struct {
	OK   bool
	Data []byte
}

// Handler receives requests. HandleRequest must not block on the result of
// the request, the result is delivered via Channel.SetResult, possibly
// from within HandleRequest.
type Handler interface {
	HandleRequest(Request)
}

// HandlerFunc is func form of Handler.
type HandlerFunc func(Request)

// HandleRequest implements Handler.
func (f HandlerFunc) HandleRequest(req Request) {
	f(req)
}

// ErrNoPendingRequest indicates SetResult is called without a request
// waiting for a result.
var ErrNoPendingRequest = errors.New("no pending request")

// Channel implements bus.Channel by deferring to a Handler.
type Channel struct {
	handler Handler

	reqLock sync.Mutex
	lock    sync.Mutex
	pending *Request
	resultC chan Result
}

// New creates a Channel with handler.
func New(handler Handler) *Channel {
	return &Channel{handler: handler, resultC: make(chan Result, 1)}
}

// Pending returns the request waiting for result.
func (c *Channel) Pending() (Request, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.pending == nil {
		return Request{}, false
	}
	return *c.pending, true
}

// SetResult completes the pending request.
func (c *Channel) SetResult(ok bool, data []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.pending == nil {
		return ErrNoPendingRequest
	}
	c.pending = nil
	c.resultC <- Result{OK: ok, Data: data}
	return nil
}

func (c *Channel) do(req Request) Result {
	c.reqLock.Lock()
	defer c.reqLock.Unlock()

	c.lock.Lock()
	handler := c.handler
	if handler == nil {
		c.lock.Unlock()
		glog.Warningf("deferred %s: no handler", req.Op)
		return Result{}
	}
	c.pending = &req
	c.lock.Unlock()

	handler.HandleRequest(req)
	return <-c.resultC
}

// Transmit implements bus.Channel.
func (c *Channel) Transmit(frame []byte) bool {
	return c.do(Request{Op: OpTransmit, Frame: frame}).OK
}

// Transceive implements bus.Channel.
func (c *Channel) Transceive(frame []byte, n int) (bool, []byte) {
	r := c.do(Request{Op: OpTransceive, Frame: frame, BytesRequested: n})
	return r.OK, r.Data
}

// ClearBuffer implements bus.Channel.
func (c *Channel) ClearBuffer() bool {
	return c.do(Request{Op: OpClearBuffer}).OK
}

// TransmitContext implements bus.Channel. The request runs to completion.
func (c *Channel) TransmitContext(ctx context.Context, frame []byte) bool {
	return c.Transmit(frame)
}

// TransceiveContext implements bus.Channel. The request runs to completion.
func (c *Channel) TransceiveContext(ctx context.Context, frame []byte, n int) (bool, []byte) {
	return c.Transceive(frame, n)
}

// ClearBufferContext implements bus.Channel. The request runs to completion.
func (c *Channel) ClearBufferContext(ctx context.Context) bool {
	return c.ClearBuffer()
}
