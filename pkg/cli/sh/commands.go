package sh

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/sbus/pkg/bus"
)

// Reply is the output of an exchange.
type Reply struct {
	Address int    `json:"address"`
	Code    string `json:"code"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newReply(address int, data []byte, err error) *Reply {
	r := &Reply{
		Address: address,
		Code:    bus.CodeOf(err).String(),
		Data:    hex.EncodeToString(data),
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func (r *Reply) String() string {
	if r.Error != "" {
		return fmt.Sprintf("@%d %s", r.Address, r.Error)
	}
	if r.Data == "" {
		return "OK"
	}
	return r.Data
}

// ParseAddress parses an address in decimal or 0x prefixed hex.
func ParseAddress(s string) (int, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return int(v), nil
}

// ParsePayload concatenates hex strings, each may be 0x prefixed.
func ParsePayload(args []string) ([]byte, error) {
	var payload []byte
	for _, arg := range args {
		s := strings.TrimPrefix(strings.TrimPrefix(arg, "0x"), "0X")
		if len(s)%2 != 0 {
			s = "0" + s
		}
		data, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid payload %q", arg)
		}
		payload = append(payload, data...)
	}
	return payload, nil
}

const exchangeTimeout = 5 * time.Second

var (
	// OpenCmd opens the bus.
	OpenCmd = ishell.Cmd{
		Name: "open",
		Help: "[local|remote|ws://HOST:PORT/|tcp://HOST:PORT]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			remote := s.Remote
			if len(c.Args) > 0 {
				switch arg := c.Args[0]; {
				case arg == "local":
					remote = false
				case arg == "remote":
					remote = true
				case strings.Contains(arg, "://"):
					s.Config.AgentURL, remote = arg, true
				default:
					c.Err(fmt.Errorf("unknown bus kind %q", arg))
					return
				}
			}
			if err := s.Open(remote); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the bus.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// TxCmd transmits a frame.
	TxCmd = ishell.Cmd{
		Name:    "tx",
		Aliases: []string{"send"},
		Help:    "ADDR HEX...",
		Func: MustBeOpened(func(c *ishell.Context, t *bus.Transport) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("address expected"))
				return
			}
			addr, err := ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			payload, err := ParsePayload(c.Args[1:])
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			ctx, cancel := context.WithTimeout(context.Background(), exchangeTimeout)
			defer cancel()
			reply := newReply(addr, nil, s.Device(addr).Send(ctx, payload))
			s.Print(c, reply, reply.String())
		}),
	}

	// TxRxCmd transmits a frame and receives the answer.
	TxRxCmd = ishell.Cmd{
		Name:    "txrx",
		Aliases: []string{"query", "q"},
		Help:    "ADDR N HEX...",
		Func: MustBeOpened(func(c *ishell.Context, t *bus.Transport) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("address and answer length expected"))
				return
			}
			addr, err := ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			n, err := strconv.Atoi(c.Args[1])
			if err != nil || n < 0 {
				c.Err(fmt.Errorf("invalid answer length %q", c.Args[1]))
				return
			}
			payload, err := ParsePayload(c.Args[2:])
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			ctx, cancel := context.WithTimeout(context.Background(), exchangeTimeout)
			defer cancel()
			data, err := s.Device(addr).Query(ctx, payload, n)
			reply := newReply(addr, data, err)
			s.Print(c, reply, reply.String())
		}),
	}

	// StatsCmd prints the traffic counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: MustBeOpened(func(c *ishell.Context, t *bus.Transport) {
			counters := t.Counters()
			ShellFrom(c).Print(c, counters,
				fmt.Sprintf("sent %d bytes, received %d bytes", counters.BytesSent, counters.BytesReceived))
		}),
	}

	// ResetCmd resets the traffic counters.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "",
		Func: MustBeOpened(func(c *ishell.Context, t *bus.Transport) {
			t.ResetCounters()
		}),
	}

	// ScanCmd probes addresses with an empty query expecting N bytes.
	ScanCmd = ishell.Cmd{
		Name: "scan",
		Help: "N [FROM [TO]]",
		Func: MustBeOpened(func(c *ishell.Context, t *bus.Transport) {
			from, to, n, err := parseScanArgs(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			found := s.Scan(from, to, n)
			if s.OutputJSON {
				s.Print(c, found, "")
				return
			}
			for _, reply := range found {
				c.Printf("%d: %s\n", reply.Address, reply.Code)
			}
		}),
	}

	// DevicesCmd lists known devices.
	DevicesCmd = ishell.Cmd{
		Name:    "devices",
		Aliases: []string{"ls"},
		Help:    "",
		Func: MustBeOpened(func(c *ishell.Context, t *bus.Transport) {
			s := ShellFrom(c)
			addrs := s.Conn.Devices.Addresses()
			text := make([]string, len(addrs))
			for i, addr := range addrs {
				text[i] = strconv.Itoa(addr)
			}
			s.Print(c, addrs, strings.Join(text, " "))
		}),
	}
)

// Scan probes addresses from..to with an empty query expecting n bytes.
// Devices which answered are added to the device group, others removed.
func (s *Shell) Scan(from, to, n int) []*Reply {
	found := []*Reply{}
	for addr := from; addr <= to; addr++ {
		ctx, cancel := context.WithTimeout(context.Background(), exchangeTimeout)
		data, err := s.Conn.Transport.TransceiveContext(ctx, addr, nil, n)
		cancel()
		if answered(err) {
			found = append(found, newReply(addr, data, err))
			s.Device(addr)
		} else {
			s.Conn.Devices.Remove(addr)
		}
	}
	return found
}

// answered tells whether a device responded, even if the response was
// cut short or corrupted.
func answered(err error) bool {
	switch bus.CodeOf(err) {
	case bus.Success, bus.TransportChecksumError, bus.TransportReceptionMissingDataError:
		return true
	}
	return false
}

func parseScanArgs(args []string) (from, to, n int, err error) {
	from, to = bus.MinAddress, bus.MaxAddress
	if len(args) < 1 {
		err = fmt.Errorf("answer length expected")
		return
	}
	if n, err = strconv.Atoi(args[0]); err != nil || n < 0 {
		err = fmt.Errorf("invalid answer length %q", args[0])
		return
	}
	if len(args) > 1 {
		if from, err = ParseAddress(args[1]); err != nil {
			return
		}
		to = from
	}
	if len(args) > 2 {
		if to, err = ParseAddress(args[2]); err != nil {
			return
		}
	}
	if to < from {
		err = fmt.Errorf("invalid address range %d-%d", from, to)
	}
	return
}
