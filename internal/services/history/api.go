package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Querier is the part of api.QueryAPI the handler needs.
type Querier interface {
	Query(ctx context.Context, query string) (*api.QueryTableResult, error)
}

// Entry is one stored snapshot as returned by /history.
type Entry struct {
	Time           string   `json:"time"`
	Temp           *float64 `json:"temp,omitempty"`
	OilFull        bool     `json:"oilFull"`
	DoorOpen       bool     `json:"doorOpen"`
	Lat            *float64 `json:"lat,omitempty"`
	Lon            *float64 `json:"lon,omitempty"`
	Load           *float64 `json:"load,omitempty"`
	Node1Connected bool     `json:"node1Connected"`
	Node2Connected bool     `json:"node2Connected"`
	Node3Connected bool     `json:"node3Connected"`
}

type queryParams struct {
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseParams(r *http.Request, defMin, defLim, defTOms int) queryParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return queryParams{
		Minutes:   get("minutes", defMin, 1, 7*24*60),
		Limit:     get("limit", defLim, 1, 500),
		TimeoutMS: get("timeout_ms", defTOms, 200, 5000),
	}
}

func buildFlux(bucket, measurement string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, measurement, limit)
}

// NewHandler serves GET /history?minutes=60&limit=100, newest first.
func NewHandler(q Querier, bucket, measurement string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseParams(r, 60, 100, 2000)

		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		res, err := q.Query(ctx, buildFlux(bucket, measurement, p.Minutes, p.Limit))
		if err != nil {
			w.Header().Set("X-Error", "influx-query-error")
			_, _ = w.Write([]byte("[]"))
			return
		}
		defer res.Close()

		out := make([]Entry, 0, p.Limit)
		for res.Next() {
			rec := res.Record()
			out = append(out, Entry{
				Time:           rec.Time().UTC().Format(time.RFC3339),
				Temp:           asFloat(rec.ValueByKey("temp")),
				OilFull:        asBool(rec.ValueByKey("oil_full")),
				DoorOpen:       asBool(rec.ValueByKey("door_open")),
				Lat:            asFloat(rec.ValueByKey("lat")),
				Lon:            asFloat(rec.ValueByKey("lon")),
				Load:           asFloat(rec.ValueByKey("load")),
				Node1Connected: asBool(rec.ValueByKey("node1_connected")),
				Node2Connected: asBool(rec.ValueByKey("node2_connected")),
				Node3Connected: asBool(rec.ValueByKey("node3_connected")),
			})
		}
		if res.Err() != nil {
			w.Header().Set("X-Error", "influx-iter-error")
		}
		_ = json.NewEncoder(w).Encode(out)
	})
}

func asFloat(v interface{}) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int64:
		f = float64(x)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = n
	default:
		return nil
	}
	return &f
}

func asBool(v interface{}) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	}
	return false
}
