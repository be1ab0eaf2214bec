package messages

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
)

// NodeFrame is what the upstream bus decoder publishes for a node: already
// parsed values, one JSON object per CAN message. Only the fields owned by
// Node are read.
type NodeFrame struct {
	Node      string    `json:"node"`
	Temp      *float64  `json:"temp,omitempty"`
	OilFull   *bool     `json:"oil_full,omitempty"`
	DoorOpen  *bool     `json:"door_open,omitempty"`
	Load      *float64  `json:"load,omitempty"`
	Latitude  *float64  `json:"lat,omitempty"`
	Longitude *float64  `json:"lon,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseNodeFrame decodes payload and converts it to the node's field group.
// fallback is used when the payload does not name its node (the topic does).
func ParseNodeFrame(payload []byte, fallback model.NodeID) (model.FieldGroup, error) {
	var f NodeFrame
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	node := fallback
	if f.Node != "" {
		n, ok := model.ParseNodeID(f.Node)
		if !ok {
			return nil, fmt.Errorf("unknown node %q", f.Node)
		}
		node = n
	}
	return f.Fields(node)
}

// Fields builds the field group for node; every owned field must be present.
func (f NodeFrame) Fields(node model.NodeID) (model.FieldGroup, error) {
	switch node {
	case model.Node1:
		if f.Temp == nil || f.OilFull == nil {
			return nil, fmt.Errorf("%s frame: missing temp/oil_full", node)
		}
		return model.Node1Fields{Temp: *f.Temp, OilFull: *f.OilFull}, nil
	case model.Node2:
		if f.DoorOpen == nil || f.Load == nil {
			return nil, fmt.Errorf("%s frame: missing door_open/load", node)
		}
		return model.Node2Fields{DoorOpen: *f.DoorOpen, LoadWeight: *f.Load}, nil
	case model.Node3:
		if f.Latitude == nil || f.Longitude == nil {
			return nil, fmt.Errorf("%s frame: missing lat/lon", node)
		}
		return model.Node3Fields{Latitude: *f.Latitude, Longitude: *f.Longitude}, nil
	default:
		return nil, fmt.Errorf("unknown node %s", node)
	}
}

// NewNodeFrame is the inverse of Fields, used by the node simulator.
func NewNodeFrame(g model.FieldGroup, ts time.Time) NodeFrame {
	f := NodeFrame{Node: g.Node().String(), Timestamp: ts}
	switch v := g.(type) {
	case model.Node1Fields:
		f.Temp, f.OilFull = &v.Temp, &v.OilFull
	case model.Node2Fields:
		f.DoorOpen, f.Load = &v.DoorOpen, &v.LoadWeight
	case model.Node3Fields:
		f.Latitude, f.Longitude = &v.Latitude, &v.Longitude
	}
	return f
}
