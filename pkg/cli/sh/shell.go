package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/sbus/pkg/bus"
	"github.com/robotalks/sbus/pkg/bus/device"
	"github.com/robotalks/sbus/pkg/env"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoOpen    bool
	Remote      bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *Conn
}

// Conn is an opened bus.
type Conn struct {
	Transport *bus.Transport
	Devices   *device.Group
	Cancel    func()
	Closer    io.Closer
}

// Close releases the bus.
func (c *Conn) Close() error {
	if c.Cancel != nil {
		c.Cancel()
	}
	if c.Closer != nil {
		return c.Closer.Close()
	}
	return nil
}

const (
	shellKey       = "$shell"
	unopenedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	useRemote  bool

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&TxCmd,
		&TxRxCmd,
		&StatsCmd,
		&ResetCmd,
		&ScanCmd,
		&DevicesCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.BoolVar(&useRemote, "remote", useRemote, "Open the remote bus via MQTT instead of the serial port.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Remote:      useRemote,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unopenedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpened wraps command func requires an opened bus.
func MustBeOpened(fn func(c *ishell.Context, t *bus.Transport)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		s := ShellFrom(c)
		if s.Conn == nil {
			c.Err(fmt.Errorf("bus not opened"))
			return
		}
		fn(c, s.Conn.Transport)
	}
}

// WithAutoOpen sets AutoOpen.
func (s *Shell) WithAutoOpen(en bool) *Shell {
	s.AutoOpen = en
	return s
}

// Open opens the bus, local or remote.
func (s *Shell) Open(remote bool) error {
	var conn *Conn
	var err error
	if remote {
		conn, err = s.openRemote()
	} else {
		conn, err = s.openLocal()
	}
	if err != nil {
		return err
	}
	conn.Devices = device.NewGroup(conn.Transport)
	conn.Devices.Retries = s.Config.Retries
	s.Close()
	s.Conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", conn.Transport.Name()))
	return nil
}

func (s *Shell) openLocal() (*Conn, error) {
	ch, err := s.Config.OpenSerial()
	if err != nil {
		return nil, err
	}
	t, err := s.Config.NewTransport(bus.Suspendable(ch), s.Config.Port)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return &Conn{Transport: t, Closer: ch}, nil
}

func (s *Shell) openRemote() (*Conn, error) {
	client, r, err := s.Config.NewRemoteClient()
	if err != nil {
		return nil, err
	}
	t, err := s.Config.NewTransport(client.Channel(), s.Config.Name())
	if err != nil {
		r.Close()
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	go client.Run(ctx)
	return &Conn{Transport: t, Cancel: cancel, Closer: r}, nil
}

// Close closes current bus.
func (s *Shell) Close() {
	if s.Conn != nil {
		s.Conn.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unopenedPrompt)
	}
}

// Device returns the device at address on the opened bus.
func (s *Shell) Device(address int) *device.Device {
	return s.Conn.Devices.Device(address)
}

// Print prints v as JSON if OutputJSON, or text otherwise.
func (s *Shell) Print(c *ishell.Context, v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoOpen {
		if err := s.Open(s.Remote); err != nil {
			log.Fatalf("open bus failed: %v", err)
		}
		defer s.Close()
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.Default()).WithAutoOpen(true).Run(flag.Args()...)
}
