package web

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
)

// fixed marshals a float with an exact number of decimals. Non-finite
// values have no JSON number form and are written as null.
type fixed struct {
	v    float64
	prec int
}

func (f fixed) MarshalJSON() ([]byte, error) {
	if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f.v, 'f', f.prec, 64), nil
}

// DataResponse is the /data wire contract. Field order is kept stable.
type DataResponse struct {
	Temp           fixed `json:"temp"`
	OilFull        bool  `json:"oilFull"`
	DoorOpen       bool  `json:"doorOpen"`
	Lat            fixed `json:"lat"`
	Lon            fixed `json:"lon"`
	Load           fixed `json:"load"`
	Node1Connected bool  `json:"node1Connected"`
	Node2Connected bool  `json:"node2Connected"`
	Node3Connected bool  `json:"node3Connected"`
}

func NewDataResponse(s model.Snapshot) DataResponse {
	return DataResponse{
		Temp:           fixed{s.Node1.Temp, 1},
		OilFull:        s.Node1.OilFull,
		DoorOpen:       s.Node2.DoorOpen,
		Lat:            fixed{s.Node3.Latitude, 6},
		Lon:            fixed{s.Node3.Longitude, 6},
		Load:           fixed{s.Node2.LoadWeight, 2},
		Node1Connected: s.IsConnected(model.Node1),
		Node2Connected: s.IsConnected(model.Node2),
		Node3Connected: s.IsConnected(model.Node3),
	}
}

// EncodeSnapshot renders s as the flat /data JSON object.
func EncodeSnapshot(s model.Snapshot) ([]byte, error) {
	return json.Marshal(NewDataResponse(s))
}
