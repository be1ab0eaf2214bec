// Package linkwatch publishes an event whenever a node's connectivity flips.
package linkwatch

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
	"github.com/LeonardoBeccarini/canbus_hub/internal/model/messages"
	"github.com/LeonardoBeccarini/canbus_hub/internal/state"
	"github.com/LeonardoBeccarini/canbus_hub/pkg/broker"
)

// PublisherFactory returns a publisher bound to topic.
type PublisherFactory func(topic string) broker.IPublisher

// TopicFor expands {node} in template.
func TopicFor(template string, n model.NodeID) string {
	return strings.ReplaceAll(template, "{node}", n.String())
}

type Watcher struct {
	source     state.SnapshotSource
	publishers [model.NodeCount]broker.IPublisher
	// last published state; every node starts disconnected
	last [model.NodeCount]bool
}

func NewWatcher(source state.SnapshotSource, template string, factory PublisherFactory) *Watcher {
	w := &Watcher{source: source}
	for _, n := range model.Nodes {
		w.publishers[n] = factory(TopicFor(template, n))
	}
	return w
}

// Check reads one snapshot and publishes an event for every node whose
// connectivity differs from the last check. It returns the events sent.
// Check is not safe for concurrent use; Run is its only caller in the hub.
func (w *Watcher) Check() []messages.LinkStateEvent {
	snap := w.source.Read()

	var sent []messages.LinkStateEvent
	for _, n := range model.Nodes {
		connected := snap.IsConnected(n)
		if connected == w.last[n] {
			continue
		}

		ev := messages.LinkStateEvent{
			EventID:   uuid.NewString(),
			Node:      n.String(),
			Connected: connected,
			LastSeen:  snap.LastMsgTime[n],
			Timestamp: snap.Now,
		}
		b, err := json.Marshal(ev)
		if err != nil {
			log.Printf("linkwatch: marshal %s: %v", n, err)
			continue
		}
		// retained so a late subscriber still learns the current state
		if err := w.publishers[n].PublishMessageQos(1, true, b); err != nil {
			log.Printf("linkwatch: publish %s: %v", n, err)
			continue
		}
		w.last[n] = connected
		log.Printf("linkwatch: %s connected=%t", n, connected)
		sent = append(sent, ev)
	}
	return sent
}

// Run checks every poll interval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, poll time.Duration) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check()
		}
	}
}
