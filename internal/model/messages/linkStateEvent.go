package messages

import "time"

// LinkStateEvent is published when a node's connectivity flips.
type LinkStateEvent struct {
	EventID   string    `json:"event_id"`
	Node      string    `json:"node"`
	Connected bool      `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Timestamp time.Time `json:"timestamp"`
}
