// Package history keeps a time series of hub snapshots in InfluxDB and
// serves the recent part of it back over HTTP.
package history

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/canbus_hub/internal/metrics"
	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
	"github.com/LeonardoBeccarini/canbus_hub/internal/state"
)

// PointWriter is satisfied by api.WriteAPIBlocking.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// BreakerSettings controls when Influx writes are suspended.
type BreakerSettings struct {
	Fails    int
	Open     time.Duration
	Interval time.Duration
}

type Recorder struct {
	source      state.SnapshotSource
	writer      PointWriter
	measurement string
	cb          *gobreaker.CircuitBreaker
	metrics     *metrics.Metrics
}

func NewRecorder(source state.SnapshotSource, w PointWriter, measurement string, bs BreakerSettings, m *metrics.Metrics) *Recorder {
	return &Recorder{
		source:      source,
		writer:      w,
		measurement: measurement,
		cb:          mkCB("influx-history", bs),
		metrics:     m,
	}
}

func mkCB(name string, bs BreakerSettings) *gobreaker.CircuitBreaker {
	if bs.Fails <= 0 {
		bs.Fails = 3
	}
	if bs.Open <= 0 {
		bs.Open = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: bs.Interval,
		Timeout:  bs.Open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(bs.Fails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("history: breaker %s %s -> %s", name, from, to)
		},
	})
}

// Point converts a snapshot into one Influx point stamped with the read time.
// Non-finite readings are left out; line protocol cannot carry them.
func Point(measurement string, s model.Snapshot) *write.Point {
	fields := map[string]interface{}{
		"oil_full":        s.Node1.OilFull,
		"door_open":       s.Node2.DoorOpen,
		"node1_connected": s.IsConnected(model.Node1),
		"node2_connected": s.IsConnected(model.Node2),
		"node3_connected": s.IsConnected(model.Node3),
		"bus_ok":          s.BusOK,
	}
	for k, v := range map[string]float64{
		"temp": s.Node1.Temp,
		"load": s.Node2.LoadWeight,
		"lat":  s.Node3.Latitude,
		"lon":  s.Node3.Longitude,
	} {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			fields[k] = v
		}
	}
	return influxdb2.NewPoint(measurement, map[string]string{}, fields, s.Now)
}

// RecordOnce writes the current snapshot. While the breaker is open the
// write is skipped and gobreaker.ErrOpenState is returned.
func (r *Recorder) RecordOnce(ctx context.Context) error {
	p := Point(r.measurement, r.source.Read())
	_, err := r.cb.Execute(func() (any, error) {
		return nil, r.writer.WritePoint(ctx, p)
	})
	switch {
	case err == nil:
		r.metrics.HistoryWrite("ok")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		r.metrics.HistoryWrite("skipped")
	default:
		r.metrics.HistoryWrite("error")
	}
	return err
}

// Run records a point every interval until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RecordOnce(ctx); err != nil && !errors.Is(err, gobreaker.ErrOpenState) {
				log.Printf("history: write error: %v", err)
			}
		}
	}
}
