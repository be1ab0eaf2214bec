package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/LeonardoBeccarini/canbus_hub/internal/config"
	"github.com/LeonardoBeccarini/canbus_hub/internal/liveness"
	"github.com/LeonardoBeccarini/canbus_hub/internal/metrics"
	"github.com/LeonardoBeccarini/canbus_hub/internal/services/cloud"
	"github.com/LeonardoBeccarini/canbus_hub/internal/services/display"
	"github.com/LeonardoBeccarini/canbus_hub/internal/services/history"
	"github.com/LeonardoBeccarini/canbus_hub/internal/services/ingest"
	"github.com/LeonardoBeccarini/canbus_hub/internal/services/linkwatch"
	"github.com/LeonardoBeccarini/canbus_hub/internal/services/web"
	"github.com/LeonardoBeccarini/canbus_hub/internal/state"
	"github.com/LeonardoBeccarini/canbus_hub/pkg/broker"
)

func main() {
	configPath := pflag.StringP("config", "c", os.Getenv("HUB_CONFIG"), "path to the YAML config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("hub: config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === Metrics ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// === State ===
	store := state.NewStore()
	reader := state.NewReader(store, state.SystemClock{}, liveness.NewTracker(cfg.Bus.Timeout))
	reg.MustRegister(metrics.NewConnectivityCollector(reader))

	// === MQTT ===
	// the consumer exists before the connection so every (re)connect
	// can resubscribe its topics
	topics := ingest.Topics(cfg.MQTT.TopicPrefix)
	consumer := broker.NewMultiConsumer(nil, topics, nil)

	mqttClient, err := broker.NewConn(ctx, broker.Config{
		Host:      cfg.MQTT.Host,
		Port:      cfg.MQTT.Port,
		User:      cfg.MQTT.User,
		Password:  cfg.MQTT.Password,
		ClientID:  cfg.MQTT.ClientID,
		OnConnect: consumer.OnConnect,
	})
	if err != nil {
		log.Fatalf("hub: mqtt connection error: %v", err)
	}
	defer broker.Close(mqttClient)
	consumer.OnConnect(mqttClient)

	ingestSvc := ingest.NewService(consumer, store, state.SystemClock{}, cfg.MQTT.TopicPrefix, m)
	go ingestSvc.Start(ctx)
	log.Printf("hub: consuming %v", topics)

	// === Display ===
	if cfg.Display.Enabled {
		// clearing only makes sense on an interactive terminal
		interactive := term.IsTerminal(int(os.Stdout.Fd()))
		p := display.NewPresenter(display.NewTerminalRenderer(os.Stdout, interactive), cfg.Display.Title)
		go p.Run(ctx, reader, cfg.Display.Refresh)
	}

	// === Link events ===
	if cfg.Events.Enabled {
		w := linkwatch.NewWatcher(reader, cfg.Events.TopicTemplate, func(topic string) broker.IPublisher {
			return broker.NewPublisher(mqttClient, topic)
		})
		go w.Run(ctx, cfg.Events.Poll)
	}

	// === Cloud ===
	if cfg.Cloud.Enabled {
		ts := cloud.NewThingSpeakClient(cfg.Cloud.BaseURL, cfg.Cloud.ChannelID, cfg.Cloud.WriteKey, cfg.Cloud.RequestTimeout)
		link := cloud.NewDialLink(cfg.Cloud.ProbeAddr, cfg.Cloud.ReconnectPoll, ts.HTTPClient())
		pub := cloud.NewPublisher(reader, link, ts, m, cloud.Options{
			ReconnectPoll:    cfg.Cloud.ReconnectPoll,
			ReconnectCeiling: cfg.Cloud.ReconnectCeiling,
		})
		pub.Start(ctx, cfg.Cloud.Period)
		log.Printf("hub: publishing to channel %s every %s", ts.ChannelID(), cfg.Cloud.Period)
	}

	// === History ===
	var historyHandler http.Handler
	if cfg.Influx.Enabled {
		influx := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
		defer influx.Close()

		rec := history.NewRecorder(reader, influx.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket),
			cfg.Influx.Measurement, history.BreakerSettings{}, m)
		go rec.Run(ctx, cfg.Influx.Interval)
		historyHandler = history.NewHandler(influx.QueryAPI(cfg.Influx.Org), cfg.Influx.Bucket, cfg.Influx.Measurement)
	}

	// === HTTP ===
	hs := web.NewServer(cfg.HTTP.Addr, web.NewHTTPHandler(web.Options{
		Source:   reader,
		Metrics:  m,
		Gatherer: reg,
		Bus:      mqttClient,
		History:  historyHandler,
	}))
	go func() {
		log.Printf("hub: HTTP listening on %s", cfg.HTTP.Addr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("hub: http server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("hub: shutting down...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
}
