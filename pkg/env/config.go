// Package env provides the common configuration of bus binaries, from
// command line flags and environment variables.
package env

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/robotalks/sbus/pkg/bus"
	"github.com/robotalks/sbus/pkg/bus/channel/remote"
	"github.com/robotalks/sbus/pkg/bus/channel/remote/mqtt"
	rstream "github.com/robotalks/sbus/pkg/bus/channel/remote/stream"
	"github.com/robotalks/sbus/pkg/bus/channel/remote/websocket"
	"github.com/robotalks/sbus/pkg/bus/channel/stream"
	"github.com/robotalks/sbus/pkg/bus/checksum"
	"github.com/robotalks/sbus/pkg/bus/device"
	"github.com/robotalks/sbus/pkg/bus/frame"
)

// Config provides common options to setup a bus.
type Config struct {
	// Port is the serial port of a local bus.
	Port        string
	Baud        int
	Parity      string
	ReadTimeout time.Duration
	// Checksum is the name of the frame checksum, "crc8" or "sum".
	Checksum string
	Retries  int

	// BrokerURL specifies the MQTT broker for remote buses.
	// e.g. mqtt://host:port/topic-prefix/
	BrokerURL string
	// BusName identifies the bus on the broker.
	BusName string
	// AgentURL connects a client to an agent directly instead of via the
	// broker, e.g. ws://host:port/ or tcp://host:port.
	AgentURL string
	// Timeout bounds a remote request.
	Timeout time.Duration
}

var defaultConfig = Config{
	Port:        "/dev/ttyUSB0",
	Baud:        115200,
	ReadTimeout: stream.DefaultReadTimeout,
	Checksum:    "crc8",
	Retries:     device.DefaultRetries,
	BrokerURL:   "mqtt://localhost:1883/sbus/",
	Timeout:     remote.DefaultTimeout,
}

func init() {
	loadEnv(&defaultConfig, os.Getenv)
}

func loadEnv(c *Config, getenv func(string) string) {
	if val := getenv("SBUS_PORT"); val != "" {
		c.Port = val
	}
	if val := getenv("SBUS_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			c.Baud = baud
		}
	}
	if val := getenv("SBUS_CHECKSUM"); val != "" {
		c.Checksum = val
	}
	if val := getenv("SBUS_MQTT_URL"); val != "" {
		c.BrokerURL = val
	}
	if val := getenv("SBUS_BUS"); val != "" {
		c.BusName = val
	}
	if val := getenv("SBUS_AGENT_URL"); val != "" {
		c.AgentURL = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port of the bus.")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Baud rate.")
	flag.StringVar(&defaultConfig.Parity, "parity", defaultConfig.Parity, "Parity: N, O, E, M, S.")
	flag.DurationVar(&defaultConfig.ReadTimeout, "read-timeout", defaultConfig.ReadTimeout, "Serial read timeout.")
	flag.StringVar(&defaultConfig.Checksum, "checksum", defaultConfig.Checksum, "Frame checksum: crc8, sum.")
	flag.IntVar(&defaultConfig.Retries, "retries", defaultConfig.Retries, "Retries of device operations.")
	flag.StringVar(&defaultConfig.BrokerURL, "mqtt", defaultConfig.BrokerURL, "MQTT broker URL.")
	flag.StringVar(&defaultConfig.BusName, "bus", defaultConfig.BusName, "Bus name on the broker, default is machine ID.")
	flag.StringVar(&defaultConfig.AgentURL, "agent", defaultConfig.AgentURL, "Connect to the agent directly: ws://host:port/ or tcp://host:port.")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Timeout of remote requests.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Name returns the bus name, falling back to machine ID.
func (c *Config) Name() string {
	if c.BusName != "" {
		return c.BusName
	}
	return MachineID()
}

// ChecksumFunc resolves the checksum by name.
func (c *Config) ChecksumFunc() (checksum.Func, error) {
	fn, ok := checksum.ByName(c.Checksum)
	if !ok {
		return nil, fmt.Errorf("unknown checksum %q", c.Checksum)
	}
	return fn, nil
}

// Codec returns the frame codec.
func (c *Config) Codec() (frame.Codec, error) {
	fn, err := c.ChecksumFunc()
	if err != nil {
		return frame.Codec{}, err
	}
	return frame.Codec{Checksum: fn}, nil
}

// OpenSerial opens the serial port.
func (c *Config) OpenSerial() (*stream.Channel, error) {
	return stream.OpenSerial(stream.SerialConfig{
		Name:        c.Port,
		Baud:        c.Baud,
		Parity:      c.Parity,
		ReadTimeout: c.ReadTimeout,
	})
}

// NewTransport creates a Transport over ch using configured codec.
func (c *Config) NewTransport(ch bus.Channel, name string) (*bus.Transport, error) {
	codec, err := c.Codec()
	if err != nil {
		return nil, err
	}
	return bus.New(ch, bus.WithCodec(codec), bus.WithName(name)), nil
}

// NewQueue creates the MQTT queue and connects.
func (c *Config) NewQueue() (*mqtt.Queue, error) {
	q, err := mqtt.NewQueueFromURL(c.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker URL: %v", err)
	}
	if err = q.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s error: %v", c.BrokerURL, err)
	}
	return q, nil
}

// Remote is a connection to a remote bus, through the MQTT broker or
// directly to an agent.
type Remote struct {
	// Queue is nil when connected directly.
	Queue *mqtt.Queue
	Link  remote.PacketReadWriter
}

// Close closes the link and disconnects from the broker.
func (r *Remote) Close() (err error) {
	if closer, ok := r.Link.(io.Closer); ok {
		err = closer.Close()
	}
	if r.Queue != nil {
		err = r.Queue.Close()
	}
	return
}

// DialAgent connects to an agent at agentURL.
func DialAgent(agentURL string) (remote.PacketReadWriter, error) {
	u, err := url.Parse(agentURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "ws", "wss":
		link, err := websocket.Dial(agentURL)
		if err != nil {
			return nil, fmt.Errorf("dial %s error: %v", agentURL, err)
		}
		return link, nil
	case "tcp":
		link, err := rstream.Dial(u.Host)
		if err != nil {
			return nil, fmt.Errorf("dial %s error: %v", agentURL, err)
		}
		return link, nil
	}
	return nil, fmt.Errorf("unsupported agent URL %q", agentURL)
}

func (c *Config) openRemote(forAgent bool) (*Remote, error) {
	q, err := c.NewQueue()
	if err != nil {
		return nil, err
	}
	rw := mqtt.NewReadWriter(q)
	if forAgent {
		rw.ForAgent(c.Name())
	} else {
		rw.ForClient(c.Name())
	}
	if err = rw.Open(); err != nil {
		q.Close()
		return nil, err
	}
	return &Remote{Queue: q, Link: rw}, nil
}

// NewRemoteClient connects to the remote bus as a client, directly if
// AgentURL is set or via the broker otherwise. The returned Client must be
// Run to receive results.
func (c *Config) NewRemoteClient() (*remote.Client, *Remote, error) {
	var r *Remote
	if c.AgentURL != "" {
		link, err := DialAgent(c.AgentURL)
		if err != nil {
			return nil, nil, err
		}
		r = &Remote{Link: link}
	} else {
		var err error
		if r, err = c.openRemote(false); err != nil {
			return nil, nil, err
		}
	}
	client := remote.NewClient(r.Link)
	client.Timeout = c.Timeout
	return client, r, nil
}

// NewRemoteAgent serves ch as the remote bus.
func (c *Config) NewRemoteAgent(ch bus.Channel) (*remote.Agent, *Remote, error) {
	r, err := c.openRemote(true)
	if err != nil {
		return nil, nil, err
	}
	return remote.NewAgent(r.Link, ch), r, nil
}

// MustOpenSerial opens the serial port and fails on error.
func (c *Config) MustOpenSerial() *stream.Channel {
	ch, err := c.OpenSerial()
	if err != nil {
		log.Fatalln(err)
	}
	return ch
}
