// Package state owns the canonical sensor state shared by the bus producers
// and every publishing channel.
package state

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
)

var (
	ErrUnknownNode    = errors.New("unknown node")
	ErrFieldOwnership = errors.New("field group not owned by node")
)

// nodeRecord is immutable once published through a slot.
type nodeRecord struct {
	fields model.FieldGroup
	at     time.Time
}

// slot holds one node's group. Writers of the same node serialize on mu;
// readers never lock and load the current record in one atomic step, so a
// group and its timestamp are always seen together.
type slot struct {
	mu  sync.Mutex
	rec atomic.Pointer[nodeRecord]
}

// Store is the single process-wide sensor state. The zero value is not
// usable; call NewStore.
type Store struct {
	slots [model.NodeCount]slot
	bus   atomic.Pointer[time.Time]
}

func NewStore() *Store {
	return &Store{}
}

// Record replaces the field group owned by id and that node's last message
// time as one unit. Writes for different nodes do not contend.
func (s *Store) Record(id model.NodeID, fields model.FieldGroup, at time.Time) error {
	if !id.Valid() {
		return fmt.Errorf("record %s: %w", id, ErrUnknownNode)
	}
	if fields == nil || fields.Node() != id {
		return fmt.Errorf("record %s: %w", id, ErrFieldOwnership)
	}

	sl := &s.slots[id]
	sl.mu.Lock()
	sl.rec.Store(&nodeRecord{fields: fields, at: at})
	sl.mu.Unlock()

	s.Touch(at)
	return nil
}

// Touch marks bus activity that is not tied to a node's fields.
func (s *Store) Touch(at time.Time) {
	for {
		cur := s.bus.Load()
		if cur != nil && !at.After(*cur) {
			return
		}
		t := at
		if s.bus.CompareAndSwap(cur, &t) {
			return
		}
	}
}

// LastMsgTime returns the last record time of id, zero if never recorded.
func (s *Store) LastMsgTime(id model.NodeID) time.Time {
	if !id.Valid() {
		return time.Time{}
	}
	if rec := s.slots[id].rec.Load(); rec != nil {
		return rec.at
	}
	return time.Time{}
}

// Snapshot returns a value copy of the state. Each node group is consistent
// with some completed Record for that node.
func (s *Store) Snapshot() model.SensorState {
	var st model.SensorState
	for _, id := range model.Nodes {
		rec := s.slots[id].rec.Load()
		if rec == nil {
			continue
		}
		st.LastMsgTime[id] = rec.at
		switch f := rec.fields.(type) {
		case model.Node1Fields:
			st.Node1 = f
		case model.Node2Fields:
			st.Node2 = f
		case model.Node3Fields:
			st.Node3 = f
		}
	}
	if b := s.bus.Load(); b != nil {
		st.LastBusActivity = *b
	}
	return st
}
