package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/sbus/pkg/bus"
	"github.com/robotalks/sbus/pkg/bus/frame"
)

// testStream returns io.EOF when nothing is readable, like a serial port
// whose read timeout expired.
type testStream struct {
	written  bytes.Buffer
	readable bytes.Buffer
	writeErr error
	short    bool
	flushed  int
}

func (s *testStream) Read(p []byte) (int, error) {
	return s.readable.Read(p)
}

func (s *testStream) Write(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	if s.short && len(p) > 0 {
		p = p[:len(p)-1]
	}
	return s.written.Write(p)
}

type flushStream struct {
	testStream
	flushErr error
}

func (s *flushStream) Flush() error {
	s.flushed++
	s.readable.Reset()
	return s.flushErr
}

type oneByteReader struct {
	*testStream
}

func (r oneByteReader) Read(p []byte) (int, error) {
	return r.testStream.Read(p[:1])
}

func TestTransmit(t *testing.T) {
	s := &testStream{}
	ch := New(s)
	require.True(t, ch.Transmit([]byte{1, 2, 3}))
	require.Equal(t, []byte{1, 2, 3}, s.written.Bytes())

	s.short = true
	require.False(t, ch.Transmit([]byte{1, 2, 3}))

	s.writeErr = errors.New("broken")
	require.False(t, ch.Transmit([]byte{1}))
}

func TestTransceive(t *testing.T) {
	testCases := []struct {
		name   string
		inject []byte
		n      int
		ok     bool
		expect []byte
	}{
		{"exact", []byte{1, 2, 3, 4}, 4, true, []byte{1, 2, 3, 4}},
		{"more available", []byte{1, 2, 3, 4, 5}, 4, true, []byte{1, 2, 3, 4}},
		{"partial", []byte{1, 2}, 4, false, []byte{1, 2}},
		{"silent", nil, 4, false, []byte{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := &testStream{}
			s.readable.Write(tc.inject)
			ok, rx := oneByteChannel(s).Transceive([]byte{9, 9}, tc.n)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.expect, rx)
			require.Equal(t, []byte{9, 9}, s.written.Bytes())
		})
	}
}

func oneByteChannel(s *testStream) *Channel {
	return New(oneByteReader{s})
}

func TestTransceiveWriteFailure(t *testing.T) {
	s := &testStream{writeErr: errors.New("broken")}
	s.readable.Write([]byte{1, 2})
	ok, rx := New(s).Transceive([]byte{1}, 2)
	require.False(t, ok)
	require.Empty(t, rx)
}

func TestClearBufferDrains(t *testing.T) {
	s := &testStream{}
	s.readable.Write(bytes.Repeat([]byte{0xee}, 100))
	ch := New(s)
	require.True(t, ch.ClearBuffer())
	require.Zero(t, s.readable.Len())

	s.readable.Write(bytes.Repeat([]byte{0xee}, 100))
	ch.MaxDrain = 10
	require.False(t, ch.ClearBuffer())
}

func TestClearBufferFlushes(t *testing.T) {
	s := &flushStream{}
	s.readable.Write([]byte{1, 2, 3})
	ch := New(s)
	require.True(t, ch.ClearBuffer())
	require.Equal(t, 1, s.flushed)
	require.Zero(t, s.readable.Len())

	s.flushErr = errors.New("flush")
	require.False(t, ch.ClearBuffer())
}

func TestClose(t *testing.T) {
	require.NoError(t, New(&testStream{}).Close())
}

// echoDevice answers every request frame with a fixed response frame,
// leaving a stale byte before the first request.
type echoDevice struct {
	testStream
	response []byte
}

func (d *echoDevice) Write(p []byte) (int, error) {
	n, err := d.testStream.Write(p)
	d.readable.Write(d.response)
	return n, err
}

func TestWithTransport(t *testing.T) {
	dev := &echoDevice{response: frame.Build([]byte{0x55, 0x66}, 4)}
	dev.readable.Write([]byte{0xff})
	tr := bus.New(bus.Suspendable(New(dev)))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	data, err := tr.TransceiveContext(ctx, 4, []byte{0x01}, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{0x55, 0x66}, data)
	require.Equal(t, bus.Counters{BytesSent: 3, BytesReceived: 4}, tr.Counters())
}

func TestSerialConfig(t *testing.T) {
	conf, err := SerialConfig{Name: "/dev/null", Baud: 115200}.portConfig()
	require.NoError(t, err)
	require.Equal(t, DefaultReadTimeout, conf.ReadTimeout)
	require.Equal(t, byte(8), conf.Size)

	for _, p := range []string{"N", "O", "E", "M", "S"} {
		_, err := SerialConfig{Parity: p}.portConfig()
		require.NoError(t, err, p)
	}
	_, err = SerialConfig{Parity: "X"}.portConfig()
	require.Error(t, err)
}

var _ io.ReadWriter = &testStream{}
