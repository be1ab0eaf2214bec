package model

import "fmt"

// NodeID identifies one of the remote sensor nodes on the bus.
type NodeID int

const (
	Node1 NodeID = iota
	Node2
	Node3
)

// NodeCount is the size of the closed node set.
const NodeCount = 3

// Nodes lists every node in display order.
var Nodes = [NodeCount]NodeID{Node1, Node2, Node3}

func (n NodeID) Valid() bool { return n >= Node1 && n <= Node3 }

func (n NodeID) String() string {
	if !n.Valid() {
		return fmt.Sprintf("node(%d)", int(n))
	}
	return fmt.Sprintf("node%d", int(n)+1)
}

// ParseNodeID accepts "node1".."node3" (as used in MQTT topics).
func ParseNodeID(s string) (NodeID, bool) {
	for _, n := range Nodes {
		if n.String() == s {
			return n, true
		}
	}
	return 0, false
}

// FieldGroup is the set of values owned by exactly one node.
type FieldGroup interface {
	Node() NodeID
}

// Node1Fields is written by the temperature / oil level node.
type Node1Fields struct {
	Temp    float64 `json:"temp"` // °C
	OilFull bool    `json:"oil_full"`
}

func (Node1Fields) Node() NodeID { return Node1 }

// Node2Fields is written by the door / load node.
type Node2Fields struct {
	DoorOpen   bool    `json:"door_open"`
	LoadWeight float64 `json:"load_weight"`
}

func (Node2Fields) Node() NodeID { return Node2 }

// Node3Fields is written by the GPS node. Outward views show it next to Node2.
type Node3Fields struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (Node3Fields) Node() NodeID { return Node3 }
