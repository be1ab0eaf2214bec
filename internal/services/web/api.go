// Package web serves the dashboard page and the JSON data endpoint it polls.
package web

import (
	"embed"
	"encoding/json"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/canbus_hub/internal/metrics"
	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
	"github.com/LeonardoBeccarini/canbus_hub/internal/state"
)

//go:embed static/*
var staticContent embed.FS

// ConnChecker is satisfied by mqtt.Client.
type ConnChecker interface {
	IsConnectionOpen() bool
}

type Options struct {
	Source   state.SnapshotSource
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Bus      ConnChecker
	// History, when set, is mounted at /history.
	History http.Handler
}

// NewHTTPHandler builds the router for every HTTP route of the hub.
func NewHTTPHandler(opts Options) http.Handler {
	r := mux.NewRouter()
	r.Use(commonMiddleware)

	r.Handle("/data", dataHandler(opts.Source, opts.Metrics)).Methods(http.MethodGet)
	r.Handle("/healthz", &healthHandler{source: opts.Source, bus: opts.Bus}).Methods(http.MethodGet)
	r.Handle("/readyz", &readyHandler{bus: opts.Bus}).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	if opts.History != nil {
		r.Handle("/history", opts.History).Methods(http.MethodGet)
	}

	fsys, err := fs.Sub(staticContent, "static")
	if err != nil {
		log.Printf("web: static assets unavailable: %v", err)
		return r
	}
	r.PathPrefix("/").Handler(http.FileServer(http.FS(fsys))).Methods(http.MethodGet)
	return r
}

// NewServer wraps h with the server timeouts used by every service.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// dataHandler answers each request with one fresh snapshot.
func dataHandler(source state.SnapshotSource, m *metrics.Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		snap := source.Read()
		m.DataRequest()

		body, err := EncodeSnapshot(snap)
		if err != nil {
			log.Printf("web: encode snapshot: %v", err)
			http.Error(w, "encode error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(body)
	})
}

func commonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthHandler struct {
	source state.SnapshotSource
	bus    ConnChecker
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status         string `json:"status"`
		MQTTConnected  bool   `json:"mqtt_connected"`
		BusOK          bool   `json:"bus_ok"`
		NodesConnected int    `json:"nodes_connected"`
	}
	snap := h.source.Read()
	st := status{
		MQTTConnected: h.bus != nil && h.bus.IsConnectionOpen(),
		BusOK:         snap.BusOK,
	}
	for _, n := range model.Nodes {
		if snap.IsConnected(n) {
			st.NodesConnected++
		}
	}

	switch {
	case st.MQTTConnected && st.NodesConnected == model.NodeCount:
		st.Status = "ok"
	case st.MQTTConnected || st.BusOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// readyHandler: 200 only once the bus subscription is up.
type readyHandler struct {
	bus ConnChecker
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.bus != nil && h.bus.IsConnectionOpen()
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}
