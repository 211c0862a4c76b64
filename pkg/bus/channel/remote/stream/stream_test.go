package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/sbus/pkg/bus"
	"github.com/robotalks/sbus/pkg/bus/channel/remote"
)

func TestReadWritePacket(t *testing.T) {
	var buf bytes.Buffer
	rw := New(&buf)
	require.NoError(t, rw.WritePacket([]byte{1, 2, 3}))
	require.NoError(t, rw.WritePacket(nil))
	require.Equal(t, []byte{3, 0, 0, 0, 1, 2, 3, 0, 0, 0, 0}, buf.Bytes())

	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, pkt)
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	require.Empty(t, pkt)
	_, err = rw.ReadPacket()
	require.Equal(t, io.EOF, err)
}

func TestPacketTooLarge(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(MaxPacketSize+1))
	_, err := New(&buf).ReadPacket()
	require.Error(t, err)
}

func TestTruncatedPacket(t *testing.T) {
	buf := bytes.NewBuffer([]byte{4, 0, 0, 0, 1})
	_, err := New(buf).ReadPacket()
	require.Equal(t, io.ErrUnexpectedEOF, err)
}

// echoDevice answers with the request frame.
type echoDevice struct{}

func (echoDevice) Transmit(f []byte) bool { return true }
func (echoDevice) ClearBuffer() bool      { return true }
func (echoDevice) Transceive(f []byte, n int) (bool, []byte) {
	return len(f) == n, f
}

func TestServeTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- Serve(ctx, ln, bus.Suspendable(echoDevice{})) }()

	link, err := Dial(ln.Addr().String())
	require.NoError(t, err)
	client := remote.NewClient(link)
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	tr := bus.New(client.Channel())
	data, err := tr.Transceive(2, []byte{5, 6}, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{5, 6}, data)

	cancel()
	require.Equal(t, context.Canceled, <-done)
	require.Equal(t, context.Canceled, <-served)
}
