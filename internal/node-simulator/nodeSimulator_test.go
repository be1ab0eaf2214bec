package node_simulator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
	"github.com/LeonardoBeccarini/canbus_hub/internal/model/messages"
	"github.com/LeonardoBeccarini/canbus_hub/pkg/broker"
)

type capturePublisher struct {
	payloads [][]byte
	err      error
}

func (p *capturePublisher) PublishMessage(b []byte) error { return p.PublishMessageQos(0, false, b) }

func (p *capturePublisher) PublishMessageQos(_ byte, _ bool, b []byte) error {
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, b)
	return nil
}

func newSim(t *testing.T) (*NodeSimulator, [model.NodeCount]*capturePublisher, *capturePublisher, *time.Time) {
	t.Helper()
	var caps [model.NodeCount]*capturePublisher
	var pubs [model.NodeCount]broker.IPublisher
	for i := range caps {
		caps[i] = &capturePublisher{}
		pubs[i] = caps[i]
	}
	bus := &capturePublisher{}
	sim := NewNodeSimulator(NewDataGenerator(45.0, 7.0, 1), pubs, bus)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sim.now = func() time.Time { return now }
	return sim, caps, bus, &now
}

func TestTickPublishesParsableFrames(t *testing.T) {
	sim, caps, bus, _ := newSim(t)
	require.NoError(t, sim.Tick())

	for _, n := range model.Nodes {
		require.Len(t, caps[n].payloads, 1, n.String())
		g, err := messages.ParseNodeFrame(caps[n].payloads[0], n)
		require.NoError(t, err)
		assert.Equal(t, n, g.Node())
	}
	assert.Len(t, bus.payloads, 1)
}

func TestSilenceSkipsNodeUntilExpiry(t *testing.T) {
	sim, caps, _, now := newSim(t)
	sim.Silence(model.Node2, 10*time.Second)

	require.NoError(t, sim.Tick())
	assert.Empty(t, caps[model.Node2].payloads)
	assert.Len(t, caps[model.Node1].payloads, 1)

	*now = now.Add(10 * time.Second)
	require.NoError(t, sim.Tick())
	assert.Len(t, caps[model.Node2].payloads, 1)
}

func TestTickReportsPublishError(t *testing.T) {
	sim, caps, _, _ := newSim(t)
	caps[model.Node3].err = errors.New("offline")

	assert.Error(t, sim.Tick())
	assert.Len(t, caps[model.Node1].payloads, 1)
}

func TestGeneratorStaysInRange(t *testing.T) {
	g := NewDataGenerator(45.0, 7.0, 42)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 500; i++ {
		g.Step(start.Add(time.Duration(i) * time.Minute))

		n1 := g.Fields(model.Node1).(model.Node1Fields)
		n2 := g.Fields(model.Node2).(model.Node2Fields)
		n3 := g.Fields(model.Node3).(model.Node3Fields)
		assert.InDelta(t, baseTemp, n1.Temp, 5)
		assert.GreaterOrEqual(t, n2.LoadWeight, 0.0)
		assert.LessOrEqual(t, n2.LoadWeight, loadMax)
		assert.InDelta(t, 45.0, n3.Latitude, 0.1)
		assert.InDelta(t, 7.0, n3.Longitude, 0.1)
	}
	assert.Nil(t, g.Fields(model.NodeID(9)))
}
