// Package device binds bus addresses to devices and applies the retry
// policy on top of the transport.
package device

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/sbus/pkg/bus"
)

// Exchanger is the transport used by devices.
type Exchanger interface {
	TransmitContext(ctx context.Context, address int, payload []byte) error
	TransceiveContext(ctx context.Context, address int, payload []byte, n int) ([]byte, error)
}

// DefaultRetries is the number of extra attempts after a transport failure.
const DefaultRetries = 2

// Device is a peripheral at an address on the bus.
type Device struct {
	Bus     Exchanger
	Address int
	// Retries is the number of extra attempts on transport failures.
	Retries int
}

// New creates a Device with default retries.
func New(b Exchanger, address int) *Device {
	return &Device{Bus: b, Address: address, Retries: DefaultRetries}
}

// Send sends payload without expecting an answer.
func (d *Device) Send(ctx context.Context, payload []byte) error {
	return d.retry(ctx, func() error {
		return d.Bus.TransmitContext(ctx, d.Address, payload)
	})
}

// Query sends payload and reads an answer of n bytes.
func (d *Device) Query(ctx context.Context, payload []byte, n int) (data []byte, err error) {
	err = d.retry(ctx, func() (err error) {
		data, err = d.Bus.TransceiveContext(ctx, d.Address, payload, n)
		return
	})
	return
}

func (d *Device) retry(ctx context.Context, fn func() error) (err error) {
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !bus.CodeOf(err).IsTransport() || attempt >= d.Retries || ctx.Err() != nil {
			break
		}
		glog.V(2).Infof("device %d: attempt %d: %v", d.Address, attempt+1, err)
	}
	return &Error{Address: d.Address, Err: err}
}

// Error is the failure of a device operation.
type Error struct {
	Address int
	Err     error
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("device %d: %v", e.Address, e.Err)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Group manages devices sharing a bus.
type Group struct {
	Bus     Exchanger
	Retries int

	devices map[int]*Device
	lock    sync.RWMutex
}

// NewGroup creates a Group on bus.
func NewGroup(b Exchanger) *Group {
	return &Group{Bus: b, Retries: DefaultRetries, devices: make(map[int]*Device)}
}

// Device gets or creates the device at address.
func (g *Group) Device(address int) *Device {
	g.lock.RLock()
	d := g.devices[address]
	g.lock.RUnlock()
	if d != nil {
		return d
	}
	g.lock.Lock()
	defer g.lock.Unlock()
	if d = g.devices[address]; d == nil {
		d = &Device{Bus: g.Bus, Address: address, Retries: g.Retries}
		g.devices[address] = d
	}
	return d
}

// Addresses lists addresses of known devices in order.
func (g *Group) Addresses() []int {
	g.lock.RLock()
	addrs := make([]int, 0, len(g.devices))
	for addr := range g.devices {
		addrs = append(addrs, addr)
	}
	g.lock.RUnlock()
	sort.Ints(addrs)
	return addrs
}

// Remove forgets the device at address.
func (g *Group) Remove(address int) {
	g.lock.Lock()
	delete(g.devices, address)
	g.lock.Unlock()
}
