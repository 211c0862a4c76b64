package remote

import (
	"context"
	"io"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/sbus/pkg/bus"
	"github.com/robotalks/sbus/pkg/bus/channel/deferred"
	"github.com/robotalks/sbus/pkg/bus/frame"
	fx "github.com/robotalks/sbus/pkg/framework"
)

// DefaultMaxResponse is the default limit of bytes requested by a
// transceive request.
const DefaultMaxResponse = 4096

// Agent performs requests from a link on a local channel.
type Agent struct {
	Link    PacketReadWriter
	Channel bus.Channel
	// MaxResponse limits BytesRequested, larger requests fail.
	MaxResponse int
}

// NewAgent creates an Agent.
func NewAgent(link PacketReadWriter, ch bus.Channel) *Agent {
	return &Agent{Link: link, Channel: ch, MaxResponse: DefaultMaxResponse}
}

// Name implements framework.Named.
func (a *Agent) Name() string {
	return "remote-agent"
}

// Serve performs a single request.
func (a *Agent) Serve(ctx context.Context, req *Request) *Result {
	res := &Result{Seq: req.Seq, Client: req.Client}
	switch op := deferred.Op(req.Op); op {
	case deferred.OpTransmit:
		glog.V(3).Infof("remote: %s %d %s [%d]", req.Client, req.Seq, op, frame.Address(req.Frame))
		res.Ok = a.Channel.TransmitContext(ctx, req.Frame)
	case deferred.OpTransceive:
		limit := a.MaxResponse
		if limit <= 0 {
			limit = DefaultMaxResponse
		}
		if uint64(req.BytesRequested) > uint64(limit) {
			glog.Warningf("remote: request %d wants %d bytes, limit %d", req.Seq, req.BytesRequested, limit)
			break
		}
		glog.V(3).Infof("remote: %s %d %s [%d]", req.Client, req.Seq, op, frame.Address(req.Frame))
		res.Ok, res.Data = a.Channel.TransceiveContext(ctx, req.Frame, int(req.BytesRequested))
	case deferred.OpClearBuffer:
		res.Ok = a.Channel.ClearBufferContext(ctx)
	default:
		glog.Warningf("remote: request %d unsupported %s", req.Seq, op)
	}
	return res
}

// Run serves requests until ctx is done or the link fails.
func (a *Agent) Run(ctx context.Context) error {
	fn := func() error {
		for {
			pkt, err := a.Link.ReadPacket()
			if err != nil {
				return err
			}
			req, err := DecodeRequest(pkt)
			if err != nil {
				glog.Warningf("remote: bad request: %v", err)
				continue
			}
			res := a.Serve(ctx, req)
			out, err := proto.Marshal(res)
			if err != nil {
				return err
			}
			if err = a.Link.WritePacket(out); err != nil {
				return err
			}
		}
	}
	if closer, ok := a.Link.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, fn)
	}
	return fx.RunWithContext(ctx, fn)
}
