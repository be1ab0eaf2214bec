package model

import "time"

// SensorState is a value copy of every field the store holds.
type SensorState struct {
	Node1 Node1Fields
	Node2 Node2Fields
	Node3 Node3Fields

	// LastMsgTime is the zero time for a node that never reported.
	LastMsgTime [NodeCount]time.Time
	// LastBusActivity is the most recent bus frame of any kind.
	LastBusActivity time.Time
}

// Snapshot is the published view handed to every consumer: the state plus
// connectivity computed against a single clock reading. It is a value type;
// consumers get their own copy and nothing is cached between reads.
type Snapshot struct {
	SensorState

	Now       time.Time
	Connected [NodeCount]bool
	BusOK     bool
}

func (s Snapshot) IsConnected(n NodeID) bool {
	if !n.Valid() {
		return false
	}
	return s.Connected[n]
}

// AnyConnected reports whether at least one node is currently live.
func (s Snapshot) AnyConnected() bool {
	for _, c := range s.Connected {
		if c {
			return true
		}
	}
	return false
}
