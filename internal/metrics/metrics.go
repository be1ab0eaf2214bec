// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
)

type Metrics struct {
	framesRecorded *prometheus.CounterVec
	framesRejected *prometheus.CounterVec
	cloudPublish   *prometheus.CounterVec
	readyChecks    prometheus.Counter
	dataRequests   prometheus.Counter
	historyWrites  *prometheus.CounterVec
}

// New registers every collector on reg. Passing nil registers nothing, which
// keeps tests independent of the default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canbus_frames_recorded_total",
			Help: "Node frames committed to the state store.",
		}, []string{"node"}),
		framesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canbus_frames_rejected_total",
			Help: "Frames dropped before reaching the state store.",
		}, []string{"reason"}),
		cloudPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canbus_cloud_publish_total",
			Help: "Cloud publish cycles by outcome.",
		}, []string{"outcome"}),
		readyChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canbus_cloud_ready_checks_total",
			Help: "Network readiness checks performed while reconnecting.",
		}),
		dataRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canbus_data_requests_total",
			Help: "Requests served by the JSON data endpoint.",
		}),
		historyWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canbus_history_writes_total",
			Help: "Snapshot points written to InfluxDB by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.framesRecorded, m.framesRejected,
			m.cloudPublish, m.readyChecks, m.dataRequests, m.historyWrites)
	}
	return m
}

func (m *Metrics) FrameRecorded(n model.NodeID) {
	if m == nil {
		return
	}
	m.framesRecorded.WithLabelValues(n.String()).Inc()
}

func (m *Metrics) FrameRejected(reason string) {
	if m == nil {
		return
	}
	m.framesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) CloudPublish(outcome string) {
	if m == nil {
		return
	}
	m.cloudPublish.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReadyCheck() {
	if m == nil {
		return
	}
	m.readyChecks.Inc()
}

func (m *Metrics) DataRequest() {
	if m == nil {
		return
	}
	m.dataRequests.Inc()
}

func (m *Metrics) HistoryWrite(result string) {
	if m == nil {
		return
	}
	m.historyWrites.WithLabelValues(result).Inc()
}

// SnapshotSource is satisfied by state.Reader.
type SnapshotSource interface {
	Read() model.Snapshot
}

var (
	nodeConnectedDesc = prometheus.NewDesc("canbus_node_connected",
		"1 while the node's last message is younger than the bus timeout.", []string{"node"}, nil)
	busOKDesc = prometheus.NewDesc("canbus_bus_ok",
		"1 while any bus activity is younger than the bus timeout.", nil, nil)
)

// connectivityCollector reads one snapshot per scrape, so the gauges are
// current whether or not anything else is reading the state.
type connectivityCollector struct {
	source SnapshotSource
}

// NewConnectivityCollector exports node and bus connectivity from source.
func NewConnectivityCollector(source SnapshotSource) prometheus.Collector {
	return &connectivityCollector{source: source}
}

func (c *connectivityCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- nodeConnectedDesc
	ch <- busOKDesc
}

func (c *connectivityCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Read()
	for _, n := range model.Nodes {
		ch <- prometheus.MustNewConstMetric(nodeConnectedDesc, prometheus.GaugeValue, flag(s.IsConnected(n)), n.String())
	}
	ch <- prometheus.MustNewConstMetric(busOKDesc, prometheus.GaugeValue, flag(s.BusOK))
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
