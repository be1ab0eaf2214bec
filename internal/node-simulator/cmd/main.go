package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
	nodeSimulator "github.com/LeonardoBeccarini/canbus_hub/internal/node-simulator"
	"github.com/LeonardoBeccarini/canbus_hub/pkg/broker"
)

func main() {
	host := pflag.String("mqtt-host", envStr("MQTT_HOST", "localhost"), "MQTT broker host")
	port := pflag.Int("mqtt-port", 1883, "MQTT broker port")
	clientID := pflag.String("client-id", "canbus-node-sim", "MQTT client ID")
	prefix := pflag.String("topic-prefix", "can", "frames go to <prefix>/node1..3")
	interval := pflag.Duration("interval", time.Second, "publish interval")
	lat := pflag.Float64("lat", 45.0703, "starting latitude")
	lon := pflag.Float64("lon", 7.6869, "starting longitude")
	seed := pflag.Int64("seed", time.Now().UnixNano(), "random seed")
	silence := pflag.StringSlice("silence", nil, "node:duration pairs to keep quiet at start, e.g. node2:30s")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := broker.NewConn(ctx, broker.Config{
		Host:     *host,
		Port:     *port,
		User:     envStr("MQTT_USER", ""),
		Password: envStr("MQTT_PASSWORD", ""),
		ClientID: *clientID,
	})
	if err != nil {
		log.Fatal(err)
	}

	base := strings.TrimRight(*prefix, "/")
	var pubs [model.NodeCount]broker.IPublisher
	for _, n := range model.Nodes {
		pubs[n] = broker.NewPublisher(client, base+"/"+n.String())
	}
	sim := nodeSimulator.NewNodeSimulator(
		nodeSimulator.NewDataGenerator(*lat, *lon, *seed),
		pubs,
		broker.NewPublisher(client, base+"/bus"),
	)

	for _, s := range *silence {
		name, dur, ok := strings.Cut(s, ":")
		n, known := model.ParseNodeID(name)
		d, err := time.ParseDuration(dur)
		if !ok || !known || err != nil {
			log.Fatalf("sim: bad --silence value %q", s)
		}
		sim.Silence(n, d)
	}

	log.Printf("sim: publishing to %s/{node1,node2,node3} every %s", base, *interval)
	sim.Start(ctx, *interval)
}

func envStr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
