package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"

	"github.com/golang/glog"

	"github.com/robotalks/sbus/pkg/bus"
	"github.com/robotalks/sbus/pkg/bus/channel/remote"
	rstream "github.com/robotalks/sbus/pkg/bus/channel/remote/stream"
	"github.com/robotalks/sbus/pkg/bus/channel/remote/websocket"
	fx "github.com/robotalks/sbus/pkg/framework"
	"github.com/robotalks/sbus/pkg/env"
)

var (
	wsAddr  string
	tcpAddr string
	noMQTT  bool
)

func init() {
	env.SetupFlags()
	flag.StringVar(&wsAddr, "ws", wsAddr, "Also serve the bus over websocket on this address, e.g. :8080.")
	flag.StringVar(&tcpAddr, "tcp", tcpAddr, "Also serve the bus over TCP on this address, e.g. :7000.")
	flag.BoolVar(&noMQTT, "no-mqtt", noMQTT, "Do not serve the bus via MQTT.")
}

func serveWebSocket(ch bus.Channel) fx.Runnable {
	handler := websocket.Handler(func(rw *websocket.ReadWriter) {
		glog.Infof("websocket client %s connected", rw.Request().RemoteAddr)
		err := remote.NewAgent(rw, ch).Run(rw.Request().Context())
		glog.Infof("websocket client %s disconnected: %v", rw.Request().RemoteAddr, err)
	})
	return fx.NamedRun("websocket", fx.RunFunc(func(ctx context.Context) error {
		server := &http.Server{Addr: wsAddr, Handler: handler}
		return fx.RunWithContextCancel(ctx, func() { server.Close() }, server.ListenAndServe)
	}))
}

func serveTCP(ch bus.Channel) fx.Runnable {
	return fx.NamedRun("tcp", fx.RunFunc(func(ctx context.Context) error {
		ln, err := net.Listen("tcp", tcpAddr)
		if err != nil {
			return err
		}
		return rstream.Serve(ctx, ln, ch)
	}))
}

func main() {
	flag.Parse()

	conf := env.Default()
	port := conf.MustOpenSerial()
	defer port.Close()
	ch := bus.Exclusive(bus.Suspendable(port))

	runner := fx.NewRunner().HandleSignals()
	if !noMQTT {
		agent, r, err := conf.NewRemoteAgent(ch)
		if err != nil {
			log.Fatalln(err)
		}
		defer r.Close()
		glog.Infof("serving %s as bus %q", conf.Port, conf.Name())
		runner.Go(agent)
	}
	if wsAddr != "" {
		runner.Go(serveWebSocket(ch))
	}
	if tcpAddr != "" {
		runner.Go(serveTCP(ch))
	}
	if err := runner.Wait(); err != nil && err != context.Canceled {
		log.Fatalln(err)
	}
}
