package broker

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQoSFor(t *testing.T) {
	assert.Equal(t, byte(1), QoSFor("can/node1"))
	assert.Equal(t, byte(1), QoSFor(" event/linkState/node2 "))
	assert.Equal(t, byte(0), QoSFor("can/#"))
	assert.Equal(t, byte(0), QoSFor("telemetry/raw"))
}

// startBroker runs an in-process MQTT broker on addr.
func startBroker(t *testing.T, addr string) *mochi.Server {
	t.Helper()
	srv := mochi.New(&mochi.Options{InlineClient: true})
	require.NoError(t, srv.AddHook(new(auth.AllowHook), nil))
	require.NoError(t, srv.AddListener(listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})))
	go func() { _ = srv.Serve() }()
	return srv
}

func freeAddr(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	_, p, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	return addr, port
}

type received struct {
	mu       sync.Mutex
	payloads []string
}

func (r *received) handle(_ string, msg mqtt.Message) error {
	r.mu.Lock()
	r.payloads = append(r.payloads, string(msg.Payload()))
	r.mu.Unlock()
	return nil
}

func (r *received) has(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.payloads {
		if got == p {
			return true
		}
	}
	return false
}

// deliveredAfter keeps publishing payload until the consumer sees it; a
// publish sent before the subscription is in place is simply lost.
func deliveredAfter(t *testing.T, srv *mochi.Server, rec *received, payload string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_ = srv.Publish("can/node1", []byte(payload), false, 0)
		return rec.has(payload)
	}, 15*time.Second, 50*time.Millisecond, "payload %s never delivered", payload)
}

func TestMultiConsumerResubscribesAfterBrokerRestart(t *testing.T) {
	addr, port := freeAddr(t)
	srv := startBroker(t, addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &received{}
	consumer := NewMultiConsumer(nil, []string{"can/node1"}, rec.handle)
	client, err := NewConn(ctx, Config{
		Host:      "127.0.0.1",
		Port:      port,
		ClientID:  "resubscribe-test",
		OnConnect: consumer.OnConnect,
	})
	require.NoError(t, err)
	consumer.OnConnect(client)

	done := make(chan struct{})
	go func() {
		consumer.ConsumeMessage(ctx)
		close(done)
	}()

	deliveredAfter(t, srv, rec, `{"temp":1}`)

	require.NoError(t, srv.Close())
	require.Eventually(t, func() bool { return !client.IsConnectionOpen() }, 5*time.Second, 10*time.Millisecond)

	srv = startBroker(t, addr)
	defer srv.Close()
	require.Eventually(t, client.IsConnectionOpen, 15*time.Second, 50*time.Millisecond)

	deliveredAfter(t, srv, rec, `{"temp":2}`)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ConsumeMessage did not return after cancel")
	}
}

func TestMultiConsumerWithoutClientWaitsForConnect(t *testing.T) {
	consumer := NewMultiConsumer(nil, []string{"can/node1"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NotPanics(t, func() { consumer.ConsumeMessage(ctx) })
}
