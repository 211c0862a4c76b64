package remote

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/sbus/pkg/bus"
	"github.com/robotalks/sbus/pkg/bus/channel/deferred"
	"github.com/robotalks/sbus/pkg/bus/frame"
)

// localDevice answers transceive with the request payload reversed.
type localDevice struct {
	lock sync.Mutex
	ops  []string
}

func (d *localDevice) record(op string) {
	d.lock.Lock()
	d.ops = append(d.ops, op)
	d.lock.Unlock()
}

func (d *localDevice) Transmit(f []byte) bool {
	d.record("transmit")
	return true
}

func (d *localDevice) ClearBuffer() bool {
	d.record("clear")
	return true
}

func (d *localDevice) Transceive(f []byte, n int) (bool, []byte) {
	d.record("transceive")
	payload, err := frame.ValidateAndStrip(f)
	if err != nil {
		return false, nil
	}
	out := make([]byte, len(payload))
	for i, b := range payload {
		out[len(payload)-1-i] = b
	}
	rx := frame.Build(out, f[0])
	if len(rx) > n {
		return false, rx[:n]
	}
	return true, rx
}

type bridgeEnv struct {
	client *Client
	agent  *Agent
	device *localDevice
	cancel func()
	wg     sync.WaitGroup
}

func newBridgeEnv(t *testing.T) *bridgeEnv {
	clientLink, agentLink := Pipe()
	env := &bridgeEnv{device: &localDevice{}}
	env.client = NewClient(clientLink)
	env.agent = NewAgent(agentLink, bus.Suspendable(env.device))
	ctx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel
	env.wg.Add(2)
	go func() {
		defer env.wg.Done()
		env.client.Run(ctx)
	}()
	go func() {
		defer env.wg.Done()
		env.agent.Run(ctx)
	}()
	return env
}

func (e *bridgeEnv) stop() {
	e.cancel()
	e.wg.Wait()
}

func TestBridge(t *testing.T) {
	env := newBridgeEnv(t)
	defer env.stop()

	tr := bus.New(env.client.Channel())
	data, err := tr.Transceive(3, []byte{1, 2, 3}, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{3, 2, 1}, data)

	_, err = tr.TransceiveContext(context.Background(), 3, []byte{1, 2, 3}, 1)
	require.Equal(t, bus.TransportReceptionMissingDataError, err)

	require.NoError(t, tr.Transmit(3, []byte{9}))
	require.Equal(t, []string{"clear", "transceive", "clear", "transceive", "transmit"}, env.device.ops)
}

func TestClientTimeout(t *testing.T) {
	clientLink, agentLink := Pipe()
	client := NewClient(clientLink)
	client.Timeout = 20 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	// a silent agent drains requests without answering.
	reqCh := make(chan *Request, 4)
	go func() {
		for {
			pkt, err := agentLink.ReadPacket()
			if err != nil {
				return
			}
			req, err := DecodeRequest(pkt)
			if err == nil {
				reqCh <- req
			}
		}
	}()

	ok := client.Channel().Transmit([]byte{1, 2})
	require.False(t, ok)
	req := <-reqCh
	require.Equal(t, int32(deferred.OpTransmit), req.Op)
	require.Equal(t, []byte{1, 2}, req.Frame)

	// the late result must not complete the next request.
	require.Equal(t, client.ID, req.Client)
	late, err := proto.Marshal(&Result{Client: req.Client, Seq: req.Seq, Ok: true})
	require.NoError(t, err)
	require.NoError(t, agentLink.WritePacket(late))
	ok, _ = client.Channel().Transceive([]byte{1, 2}, 2)
	require.False(t, ok)
}

func TestClientLinkClosed(t *testing.T) {
	clientLink, agentLink := Pipe()
	client := NewClient(clientLink)
	client.Timeout = time.Minute
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()
	go func() {
		agentLink.ReadPacket()
		cancel()
	}()
	require.False(t, client.Channel().ClearBuffer())
	require.Equal(t, context.Canceled, <-done)
}

func TestAgentServe(t *testing.T) {
	dev := &localDevice{}
	agent := NewAgent(nil, bus.Suspendable(dev))
	ctx := context.Background()
	res := agent.Serve(ctx, &Request{Client: "c1", Seq: 4, Op: int32(deferred.OpClearBuffer)})
	require.Equal(t, &Result{Client: "c1", Seq: 4, Ok: true}, res)
	res = agent.Serve(ctx, &Request{Seq: 5, Op: 42})
	require.Equal(t, &Result{Seq: 5}, res)
	f := frame.Build([]byte{1, 2}, 8)
	res = agent.Serve(ctx, &Request{Seq: 6, Op: int32(deferred.OpTransceive), Frame: f, BytesRequested: 4})
	require.True(t, res.Ok)
	require.Equal(t, frame.Build([]byte{2, 1}, 8), res.Data)
}

func TestMessages(t *testing.T) {
	pkt, err := EncodeRequest("c1", 7, deferred.Request{Op: deferred.OpTransceive, Frame: []byte{1, 2}, BytesRequested: 5})
	require.NoError(t, err)
	req, err := DecodeRequest(pkt)
	require.NoError(t, err)
	require.Equal(t, uint32(7), req.Seq)
	require.Equal(t, "c1", req.Client)
	require.Equal(t, deferred.Request{Op: deferred.OpTransceive, Frame: []byte{1, 2}, BytesRequested: 5}, req.Deferred())

	_, err = DecodeResult([]byte{0xff})
	require.Error(t, err)
}

func TestAgentLimitsResponse(t *testing.T) {
	dev := &localDevice{}
	agent := NewAgent(nil, bus.Suspendable(dev))
	agent.MaxResponse = 8
	f := frame.Build([]byte{1, 2}, 8)
	res := agent.Serve(context.Background(), &Request{Seq: 1, Op: int32(deferred.OpTransceive), Frame: f, BytesRequested: 0xffffffff})
	require.Equal(t, &Result{Seq: 1}, res)
	res = agent.Serve(context.Background(), &Request{Seq: 2, Op: int32(deferred.OpTransceive), Frame: f, BytesRequested: 9})
	require.False(t, res.Ok)
	require.Empty(t, dev.ops)

	res = agent.Serve(context.Background(), &Request{Seq: 3, Op: int32(deferred.OpTransceive), Frame: f, BytesRequested: 4})
	require.True(t, res.Ok)
	require.Equal(t, []string{"transceive"}, dev.ops)
}

// fanout delivers every result of one agent to all clients, like clients
// sharing the result topic of a bus.
type fanout struct {
	reqCh chan []byte
	resCh []chan []byte
	done  chan struct{}
}

func newFanout(clients int) *fanout {
	f := &fanout{reqCh: make(chan []byte, 16), done: make(chan struct{})}
	for i := 0; i < clients; i++ {
		f.resCh = append(f.resCh, make(chan []byte, 16))
	}
	return f
}

type fanoutAgent struct{ *fanout }

func (a fanoutAgent) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-a.reqCh:
		return pkt, nil
	case <-a.done:
		return nil, io.EOF
	}
}

func (a fanoutAgent) WritePacket(pkt []byte) error {
	for _, ch := range a.resCh {
		select {
		case ch <- pkt:
		case <-a.done:
			return io.ErrClosedPipe
		}
	}
	return nil
}

type fanoutClient struct {
	*fanout
	index int
}

func (c fanoutClient) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-c.resCh[c.index]:
		return pkt, nil
	case <-c.done:
		return nil, io.EOF
	}
}

func (c fanoutClient) WritePacket(pkt []byte) error {
	select {
	case c.reqCh <- pkt:
		return nil
	case <-c.done:
		return io.ErrClosedPipe
	}
}

func TestClientsShareResults(t *testing.T) {
	link := newFanout(2)
	dev := &localDevice{}
	agent := NewAgent(fanoutAgent{link}, bus.Exclusive(bus.Suspendable(dev)))
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		close(link.done)
		wg.Wait()
	}()

	run := func(r interface{ Run(context.Context) error }) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Run(ctx)
		}()
	}
	run(agent)
	clients := []*Client{NewClient(fanoutClient{link, 0}), NewClient(fanoutClient{link, 1})}
	require.NotEqual(t, clients[0].ID, clients[1].ID)
	for _, c := range clients {
		run(c)
	}

	const rounds = 20
	errCh := make(chan error, 2*rounds)
	var callers sync.WaitGroup
	for i, c := range clients {
		callers.Add(1)
		go func(addr int, tr *bus.Transport) {
			defer callers.Done()
			payload := []byte{byte(addr), 0xa0 + byte(addr)}
			for n := 0; n < rounds; n++ {
				data, err := tr.Transceive(addr, payload, 2)
				if err != nil {
					errCh <- err
					continue
				}
				if data[0] != payload[1] || data[1] != payload[0] {
					errCh <- fmt.Errorf("device %d: got % x", addr, data)
				}
			}
		}(i+1, bus.New(c.Channel()))
	}
	callers.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}
}
