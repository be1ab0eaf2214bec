package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
)

// FieldCount is the number of channel fields written per cycle.
const FieldCount = 6

// Fields holds field1..field6 in channel order.
type Fields [FieldCount]float64

// FieldsFromSnapshot maps a snapshot onto the channel layout:
// temp, oil full (1/0), door open (1/0), latitude, longitude, load.
func FieldsFromSnapshot(s model.Snapshot) Fields {
	return Fields{
		s.Node1.Temp,
		boolField(s.Node1.OilFull),
		boolField(s.Node2.DoorOpen),
		s.Node3.Latitude,
		s.Node3.Longitude,
		s.Node2.LoadWeight,
	}
}

func boolField(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Encode renders the form body. url.Values sorts keys, which keeps
// field1..field6 in channel order.
func (f Fields) Encode(writeKey string) string {
	v := url.Values{}
	v.Set("api_key", writeKey)
	for i, x := range f {
		v.Set("field"+strconv.Itoa(i+1), strconv.FormatFloat(x, 'f', -1, 64))
	}
	return v.Encode()
}

// Response is the channel's answer to one update. ThingSpeak replies 200
// with entry id 0 when it refuses the update (rate limit, bad key).
type Response struct {
	Status  int
	EntryID int64
}

// Accepted reports whether the update was stored.
func (r Response) Accepted() bool {
	return r.Status == http.StatusOK && r.EntryID > 0
}

// Writer sends one channel update and reports the HTTP status.
type Writer interface {
	Write(ctx context.Context, f Fields) (Response, error)
}

// ThingSpeakClient posts channel updates to the ThingSpeak update API.
type ThingSpeakClient struct {
	base      string
	channelID string
	writeKey  string
	client    *http.Client
}

var _ Writer = (*ThingSpeakClient)(nil)

func NewThingSpeakClient(base, channelID, writeKey string, timeout time.Duration) *ThingSpeakClient {
	return &ThingSpeakClient{
		base:      strings.TrimRight(strings.TrimSpace(base), "/"),
		channelID: channelID,
		writeKey:  writeKey,
		client:    &http.Client{Timeout: timeout},
	}
}

// HTTPClient exposes the underlying client so DialLink can drop its idle
// connections.
func (c *ThingSpeakClient) HTTPClient() *http.Client { return c.client }

func (c *ThingSpeakClient) ChannelID() string { return c.channelID }

// Write performs exactly one request. A transport failure is returned as an
// error; any HTTP answer, successful or not, is returned as a Response.
func (c *ThingSpeakClient) Write(ctx context.Context, f Fields) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/update", strings.NewReader(f.Encode(c.writeKey)))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("channel %s update: %w", c.channelID, err)
	}
	defer resp.Body.Close()

	out := Response{Status: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return out, nil
	}
	// the body is the new entry id; anything unparsable counts as 0
	if id, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64); err == nil {
		out.EntryID = id
	}
	return out, nil
}
