package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/sbus/pkg/bus/channel/remote"
	"github.com/robotalks/sbus/pkg/bus/channel/remote/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/sbus/"
)

func init() {
	if val := os.Getenv("SBUS_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func decode(topic string, payload []byte) (proto.Message, error) {
	if strings.HasSuffix(topic, "/"+mqtt.ResultTopic) {
		return remote.DecodeResult(payload)
	}
	return remote.DecodeRequest(payload)
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err = q.Connect(); err != nil {
		log.Fatalln(err)
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		msg, err := decode(topic, payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, msg.String())
	}))
	<-(chan struct{})(nil)
}
