package remote

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/sbus/pkg/bus"
	"github.com/robotalks/sbus/pkg/bus/channel/deferred"
	fx "github.com/robotalks/sbus/pkg/framework"
)

// DefaultTimeout is the default time to wait for a Result.
const DefaultTimeout = time.Second

// Client is a raw bus channel forwarding primitives to an Agent.
// Results are matched by ID and sequence number, so clients may share the
// result path of an agent.
type Client struct {
	ID      string
	Link    PacketReadWriter
	Timeout time.Duration

	ch         *deferred.Channel
	seq        uint32
	pendingSeq uint32
	timer      *time.Timer
	lock       sync.Mutex
}

// NewClient creates a Client over link.
func NewClient(link PacketReadWriter) *Client {
	c := &Client{ID: NewClientID(), Link: link, Timeout: DefaultTimeout}
	c.ch = deferred.New(deferred.HandlerFunc(c.handleRequest))
	return c
}

// NewClientID generates a random client ID.
func NewClientID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(b[:])
}

// Channel returns the raw channel for a bus.Transport.
func (c *Client) Channel() bus.Channel {
	return c.ch
}

// Name implements framework.Named.
func (c *Client) Name() string {
	return "remote-client"
}

// Run reads results from the link until ctx is done or the link fails.
func (c *Client) Run(ctx context.Context) error {
	defer c.fail(0)
	fn := func() error {
		for {
			pkt, err := c.Link.ReadPacket()
			if err != nil {
				return err
			}
			res, err := DecodeResult(pkt)
			if err != nil {
				glog.Warningf("remote: bad result: %v", err)
				continue
			}
			c.complete(res)
		}
	}
	if closer, ok := c.Link.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, fn)
	}
	return fx.RunWithContext(ctx, fn)
}

func (c *Client) handleRequest(req deferred.Request) {
	c.lock.Lock()
	c.seq++
	if c.seq == 0 {
		c.seq++
	}
	seq := c.seq
	c.pendingSeq = seq
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.timer = time.AfterFunc(timeout, func() {
		glog.V(2).Infof("remote: request %d %s timeout", seq, req.Op)
		c.fail(seq)
	})
	c.lock.Unlock()

	pkt, err := EncodeRequest(c.ID, seq, req)
	if err == nil {
		glog.V(3).Infof("remote: REQ %d %s % x", seq, req.Op, req.Frame)
		err = c.Link.WritePacket(pkt)
	}
	if err != nil {
		glog.Warningf("remote: send request %d error: %v", seq, err)
		c.fail(seq)
	}
}

func (c *Client) complete(res *Result) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if res.Client != c.ID {
		return
	}
	if res.Seq == 0 || res.Seq != c.pendingSeq {
		glog.V(2).Infof("remote: drop result %d", res.Seq)
		return
	}
	c.finishLocked()
	glog.V(3).Infof("remote: RES %d ok=%v % x", res.Seq, res.Ok, res.Data)
	c.ch.SetResult(res.Ok, res.Data)
}

// fail fails the request seq, or the pending one when seq is 0.
func (c *Client) fail(seq uint32) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.pendingSeq == 0 || (seq != 0 && seq != c.pendingSeq) {
		return
	}
	c.finishLocked()
	if req, ok := c.ch.Pending(); ok {
		glog.V(2).Infof("remote: %s failed", req.Op)
	}
	c.ch.SetResult(false, nil)
}

func (c *Client) finishLocked() {
	c.pendingSeq = 0
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
