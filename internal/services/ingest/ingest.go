// Package ingest turns decoded bus frames arriving over MQTT into store
// records. Each node topic is the only writer of that node's fields.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/canbus_hub/internal/metrics"
	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
	"github.com/LeonardoBeccarini/canbus_hub/internal/model/messages"
	"github.com/LeonardoBeccarini/canbus_hub/internal/state"
	"github.com/LeonardoBeccarini/canbus_hub/pkg/broker"
	"github.com/LeonardoBeccarini/canbus_hub/pkg/dedup"
)

var errUnknownTopic = errors.New("unknown topic")

// Recorder is the write side of state.Store.
type Recorder interface {
	Record(id model.NodeID, fields model.FieldGroup, at time.Time) error
	Touch(at time.Time)
}

type Service struct {
	consumer broker.IConsumer
	store    Recorder
	clock    state.Clock
	prefix   string
	deduper  *dedup.Deduper
	metrics  *metrics.Metrics
}

// Topics returns the subscriptions for prefix: one per node plus the raw bus
// activity topic.
func Topics(prefix string) []string {
	prefix = strings.TrimRight(prefix, "/")
	out := make([]string, 0, model.NodeCount+1)
	for _, n := range model.Nodes {
		out = append(out, prefix+"/"+n.String())
	}
	return append(out, prefix+"/bus")
}

func NewService(consumer broker.IConsumer, store Recorder, clock state.Clock, prefix string, m *metrics.Metrics) *Service {
	if clock == nil {
		clock = state.SystemClock{}
	}
	return &Service{
		consumer: consumer,
		store:    store,
		clock:    clock,
		prefix:   strings.TrimRight(prefix, "/"),
		deduper:  dedup.New(2*time.Minute, 10000),
		metrics:  m,
	}
}

// Start blocks consuming until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.consumer.SetHandler(s.messageHandler)
	s.consumer.ConsumeMessage(ctx)
}

func (s *Service) messageHandler(_ string, message mqtt.Message) error {
	// every payload is remembered; only a flagged redelivery of a seen one is dropped
	seen := !s.deduper.ShouldProcess(dedup.Key(message.Payload()))
	if seen && message.Duplicate() {
		s.metrics.FrameRejected("duplicate")
		return nil
	}
	return s.HandleFrame(message.Topic(), message.Payload())
}

// HandleFrame records one frame received on topic. The arrival time from the
// local monotonic clock is the node's message time; the frame's own
// timestamp is informational only.
func (s *Service) HandleFrame(topic string, payload []byte) error {
	at := s.clock.Now()

	suffix := strings.TrimPrefix(topic, s.prefix+"/")
	if suffix == "bus" {
		s.store.Touch(at)
		return nil
	}

	node, ok := model.ParseNodeID(suffix)
	if !ok {
		s.metrics.FrameRejected("topic")
		return fmt.Errorf("ingest %s: %w", topic, errUnknownTopic)
	}

	fields, err := messages.ParseNodeFrame(payload, node)
	if err != nil {
		s.metrics.FrameRejected("decode")
		return fmt.Errorf("ingest %s: %w", topic, err)
	}
	if err := s.store.Record(node, fields, at); err != nil {
		s.metrics.FrameRejected("ownership")
		return fmt.Errorf("ingest %s: %w", topic, err)
	}

	s.metrics.FrameRecorded(node)
	log.Printf("ingest: %s %+v", node, fields)
	return nil
}
