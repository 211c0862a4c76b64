package remote

import (
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/sbus/pkg/bus/channel/deferred"
)

// Request is the wire form of a deferred.Request.
type Request struct {
	Seq            uint32 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Op             int32  `protobuf:"varint,2,opt,name=op,proto3" json:"op,omitempty"`
	Frame          []byte `protobuf:"bytes,3,opt,name=frame,proto3" json:"frame,omitempty"`
	BytesRequested uint32 `protobuf:"varint,4,opt,name=bytes_requested,proto3" json:"bytes_requested,omitempty"`
	Client         string `protobuf:"bytes,5,opt,name=client,proto3" json:"client,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Request) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Request) Reset() { *m = Request{} }

// String implements proto.Message.
func (m *Request) String() string { return proto.CompactTextString(m) }

// Deferred converts to deferred.Request.
func (m *Request) Deferred() deferred.Request {
	return deferred.Request{
		Op:             deferred.Op(m.Op),
		Frame:          m.Frame,
		BytesRequested: int(m.BytesRequested),
	}
}

// Result is the wire form of a deferred.Result.
type Result struct {
	Seq    uint32 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Ok     bool   `protobuf:"varint,2,opt,name=ok,proto3" json:"ok,omitempty"`
	Data   []byte `protobuf:"bytes,3,opt,name=data,proto3" json:"data,omitempty"`
	Client string `protobuf:"bytes,4,opt,name=client,proto3" json:"client,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Result) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Result) Reset() { *m = Result{} }

// String implements proto.Message.
func (m *Result) String() string { return proto.CompactTextString(m) }

// EncodeRequest converts req of client into wire bytes.
func EncodeRequest(client string, seq uint32, req deferred.Request) ([]byte, error) {
	return proto.Marshal(&Request{
		Client:         client,
		Seq:            seq,
		Op:             int32(req.Op),
		Frame:          req.Frame,
		BytesRequested: uint32(req.BytesRequested),
	})
}

// DecodeRequest decodes wire bytes into Request.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := proto.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecodeResult decodes wire bytes into Result.
func DecodeResult(data []byte) (*Result, error) {
	var res Result
	if err := proto.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
