package node_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
	"github.com/LeonardoBeccarini/canbus_hub/internal/model/messages"
	"github.com/LeonardoBeccarini/canbus_hub/pkg/broker"
)

// NodeSimulator publishes one frame per node per tick, standing in for the
// upstream bus decoder.
type NodeSimulator struct {
	mu         sync.Mutex
	generator  *DataGenerator
	publishers [model.NodeCount]broker.IPublisher
	bus        broker.IPublisher
	silentTill [model.NodeCount]time.Time
	now        func() time.Time
}

// NewNodeSimulator takes one publisher per node, in node order. bus may be
// nil; when set it gets a heartbeat each tick even if every node is silent.
func NewNodeSimulator(gen *DataGenerator, publishers [model.NodeCount]broker.IPublisher, bus broker.IPublisher) *NodeSimulator {
	return &NodeSimulator{
		generator:  gen,
		publishers: publishers,
		bus:        bus,
		now:        time.Now,
	}
}

// Silence stops n from publishing for d, so the hub sees it drop out.
func (s *NodeSimulator) Silence(n model.NodeID, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silentTill[n] = s.now().Add(d)
	log.Printf("sim: %s silent for %s", n, d)
}

// Tick advances the generator and publishes the frames that are due.
func (s *NodeSimulator) Tick() error {
	now := s.now()
	s.generator.Step(now)

	s.mu.Lock()
	silent := s.silentTill
	s.mu.Unlock()

	var firstErr error
	for _, n := range model.Nodes {
		if now.Before(silent[n]) {
			continue
		}
		frame := messages.NewNodeFrame(s.generator.Fields(n), now.UTC())
		payload, err := json.Marshal(frame)
		if err != nil {
			return fmt.Errorf("marshal %s frame: %w", n, err)
		}
		if err := s.publishers[n].PublishMessageQos(1, false, payload); err != nil {
			log.Printf("sim: publish %s: %v", n, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if s.bus != nil {
		if err := s.bus.PublishMessage([]byte(`{}`)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Start ticks every interval until ctx is cancelled.
func (s *NodeSimulator) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(); err != nil {
				log.Printf("sim: tick error: %v", err)
			}
		}
	}
}
