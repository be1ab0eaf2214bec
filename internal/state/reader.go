package state

import (
	"github.com/LeonardoBeccarini/canbus_hub/internal/liveness"
	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
)

// SnapshotSource is what every consumer depends on.
type SnapshotSource interface {
	Read() model.Snapshot
}

// Reader combines a store snapshot with freshly computed connectivity.
type Reader struct {
	store   *Store
	clock   Clock
	tracker liveness.Tracker
}

var _ SnapshotSource = (*Reader)(nil)

func NewReader(store *Store, clock Clock, tracker liveness.Tracker) *Reader {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Reader{store: store, clock: clock, tracker: tracker}
}

// Read samples the clock once; every flag in the result uses that instant.
func (r *Reader) Read() model.Snapshot {
	st := r.store.Snapshot()
	now := r.clock.Now()

	snap := model.Snapshot{SensorState: st, Now: now}
	for _, id := range model.Nodes {
		snap.Connected[id] = r.tracker.IsConnected(now, st.LastMsgTime[id])
	}
	snap.BusOK = r.tracker.IsConnected(now, st.LastBusActivity)
	return snap
}
