package node_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
)

// ====== Tunables ======
const (
	baseTemp    = 22.0 // °C
	tempStep    = 0.3
	oilDrainMin = 0.02 // fraction of the tank per minute
	refillBelow = 0.05
	loadMax     = 50.0
	gpsStepDeg  = 0.00005
	doorFlipP   = 0.1
)

// DataGenerator keeps a plausible evolving state for the three nodes.
type DataGenerator struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	last time.Time

	temp     float64
	oilLevel float64 // [0..1]
	doorOpen bool
	load     float64
	lat, lon float64
}

// NewDataGenerator starts the GPS track at lat/lon. seed makes runs repeatable.
func NewDataGenerator(lat, lon float64, seed int64) *DataGenerator {
	return &DataGenerator{
		rnd:      rand.New(rand.NewSource(seed)),
		temp:     baseTemp,
		oilLevel: 1,
		lat:      lat,
		lon:      lon,
	}
}

// Step advances the simulated state to now.
func (g *DataGenerator) Step(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	dtMin := 0.0
	if !g.last.IsZero() {
		dtMin = math.Max(0, now.Sub(g.last).Minutes())
	}
	g.last = now

	// temperature drifts back towards the base value
	g.temp += (baseTemp-g.temp)*0.1 + (g.rnd.Float64()*2-1)*tempStep

	g.oilLevel -= oilDrainMin * dtMin
	if g.oilLevel < refillBelow {
		g.oilLevel = 1
	}

	if g.rnd.Float64() < doorFlipP {
		g.doorOpen = !g.doorOpen
	}
	if g.doorOpen {
		g.load = clamp(g.load+(g.rnd.Float64()*2-1)*2, 0, loadMax)
	}

	g.lat += (g.rnd.Float64()*2 - 1) * gpsStepDeg
	g.lon += (g.rnd.Float64()*2 - 1) * gpsStepDeg
}

// Fields returns the current values owned by n.
func (g *DataGenerator) Fields(n model.NodeID) model.FieldGroup {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch n {
	case model.Node1:
		// the level switch reports full above a quarter tank
		return model.Node1Fields{Temp: g.temp, OilFull: g.oilLevel > 0.25}
	case model.Node2:
		return model.Node2Fields{DoorOpen: g.doorOpen, LoadWeight: g.load}
	case model.Node3:
		return model.Node3Fields{Latitude: g.lat, Longitude: g.lon}
	}
	return nil
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
