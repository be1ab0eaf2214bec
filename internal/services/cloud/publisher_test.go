package cloud

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
)

type fakeSource struct{ snap model.Snapshot }

func (f fakeSource) Read() model.Snapshot { return f.snap }

// fakeLink becomes ready on the readyAt-th call to Ready (0 = never).
type fakeLink struct {
	mu         sync.Mutex
	readyAt    int
	checks     int
	reconnects int
}

func (l *fakeLink) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checks++
	return l.readyAt > 0 && l.checks >= l.readyAt
}

func (l *fakeLink) Reconnect() {
	l.mu.Lock()
	l.reconnects++
	l.mu.Unlock()
}

type fakeWriter struct {
	mu     sync.Mutex
	status int
	entry  int64
	err    error
	writes []Fields
}

// newWriter answers every write with status; 200 comes with a real entry id.
func newWriter(status int) *fakeWriter {
	w := &fakeWriter{status: status}
	if status == http.StatusOK {
		w.entry = 7
	}
	return w
}

func (w *fakeWriter) Write(_ context.Context, f Fields) (Response, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, f)
	return Response{Status: w.status, EntryID: w.entry}, w.err
}

// instantTimer fires as soon as it is started, so reconnect polls take no
// wall time and the deadline never cuts the loop short.
type instantTimer struct{ c chan time.Time }

func newInstantTimer() *instantTimer { return &instantTimer{c: make(chan time.Time, 1)} }

func (t *instantTimer) Start(time.Duration) { t.c <- time.Now() }
func (t *instantTimer) Stop() {}
func (t *instantTimer) C() <-chan time.Time { return t.c }

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.writes)
}

func snapshot() model.Snapshot {
	var s model.Snapshot
	s.Node1 = model.Node1Fields{Temp: 23.5, OilFull: true}
	s.Node2 = model.Node2Fields{DoorOpen: false, LoadWeight: 7.1}
	s.Node3 = model.Node3Fields{Latitude: 12.5, Longitude: -3.25}
	return s
}

func TestPublishOnceReadyWritesOnceInOrder(t *testing.T) {
	link := &fakeLink{readyAt: 1}
	w := newWriter(http.StatusOK)
	p := NewPublisher(fakeSource{snapshot()}, link, w, nil, Options{})

	assert.Equal(t, OutcomeOK, p.PublishOnce(context.Background()))
	require.Len(t, w.writes, 1)
	assert.Equal(t, Fields{23.5, 1, 0, 12.5, -3.25, 7.1}, w.writes[0])
	assert.Equal(t, 0, link.reconnects)
	assert.Equal(t, 1, link.checks)
}

func TestPublishOnceNeverReadyUsesExactCheckBudget(t *testing.T) {
	link := &fakeLink{}
	w := newWriter(http.StatusOK)
	p := NewPublisher(fakeSource{snapshot()}, link, w, nil, Options{
		ReconnectPoll:    500 * time.Millisecond,
		ReconnectCeiling: 10 * time.Second,
	})
	p.timer = newInstantTimer()
	require.Equal(t, 20, p.MaxReadyChecks())

	assert.Equal(t, OutcomeOffline, p.PublishOnce(context.Background()))
	assert.Equal(t, 0, w.count())
	assert.Equal(t, 1, link.reconnects)
	// the initial check plus exactly MaxReadyChecks while reconnecting
	assert.Equal(t, 1+p.MaxReadyChecks(), link.checks)
}

func TestPublishOnceNeverReadyRealTime(t *testing.T) {
	link := &fakeLink{}
	w := newWriter(http.StatusOK)
	p := NewPublisher(fakeSource{snapshot()}, link, w, nil, Options{
		ReconnectPoll:    time.Millisecond,
		ReconnectCeiling: 20 * time.Millisecond,
	})

	assert.Equal(t, OutcomeOffline, p.PublishOnce(context.Background()))
	assert.Equal(t, 0, w.count())
	assert.GreaterOrEqual(t, link.checks, 2)
	assert.LessOrEqual(t, link.checks, 1+p.MaxReadyChecks())
}

func TestPublishOncePollEqualToCeilingChecksOnce(t *testing.T) {
	link := &fakeLink{}
	w := newWriter(http.StatusOK)
	p := NewPublisher(fakeSource{}, link, w, nil, Options{
		ReconnectPoll:    time.Hour,
		ReconnectCeiling: time.Hour,
	})

	assert.Equal(t, OutcomeOffline, p.PublishOnce(context.Background()))
	assert.Equal(t, 2, link.checks)
	assert.Equal(t, 0, w.count())
}

func TestPublishOnceRecoversDuringReconnect(t *testing.T) {
	link := &fakeLink{readyAt: 3}
	w := newWriter(http.StatusOK)
	p := NewPublisher(fakeSource{snapshot()}, link, w, nil, Options{
		ReconnectPoll:    time.Millisecond,
		ReconnectCeiling: time.Second,
	})

	assert.Equal(t, OutcomeOK, p.PublishOnce(context.Background()))
	assert.Equal(t, 3, link.checks)
	assert.Equal(t, 1, w.count())
}

func TestPublishOnceRejectedIsNotRetried(t *testing.T) {
	w := newWriter(http.StatusBadRequest)
	p := NewPublisher(fakeSource{snapshot()}, &fakeLink{readyAt: 1}, w, nil, Options{})

	assert.Equal(t, OutcomeRejected, p.PublishOnce(context.Background()))
	assert.Equal(t, 1, w.count())
}

func TestPublishOnceRefusedEntryIsRejected(t *testing.T) {
	w := &fakeWriter{status: http.StatusOK, entry: 0}
	p := NewPublisher(fakeSource{snapshot()}, &fakeLink{readyAt: 1}, w, nil, Options{})

	assert.Equal(t, OutcomeRejected, p.PublishOnce(context.Background()))
	assert.Equal(t, 1, w.count())
}

func TestPublishOnceTransportError(t *testing.T) {
	w := &fakeWriter{err: assert.AnError}
	p := NewPublisher(fakeSource{snapshot()}, &fakeLink{readyAt: 1}, w, nil, Options{})

	assert.Equal(t, OutcomeError, p.PublishOnce(context.Background()))
	assert.Equal(t, 1, w.count())
}

func TestPublishOnceCancelledContextDoesNotWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := newWriter(http.StatusOK)
	p := NewPublisher(fakeSource{}, &fakeLink{}, w, nil, Options{
		ReconnectPoll:    500 * time.Millisecond,
		ReconnectCeiling: 10 * time.Second,
	})

	start := time.Now()
	assert.Equal(t, OutcomeOffline, p.PublishOnce(ctx))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, w.count())
}

func TestMaxReadyChecksRoundsUp(t *testing.T) {
	cases := []struct {
		poll, ceiling time.Duration
		want          int
	}{
		{500 * time.Millisecond, 10 * time.Second, 20},
		{300 * time.Millisecond, time.Second, 4},
		{time.Second, time.Second, 1},
	}
	for _, tc := range cases {
		p := NewPublisher(fakeSource{}, &fakeLink{}, &fakeWriter{}, nil, Options{ReconnectPoll: tc.poll, ReconnectCeiling: tc.ceiling})
		assert.Equal(t, tc.want, p.MaxReadyChecks(), "poll=%s ceiling=%s", tc.poll, tc.ceiling)
	}
}

func TestStartPublishesOnTicker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := newWriter(http.StatusOK)
	p := NewPublisher(fakeSource{snapshot()}, &fakeLink{readyAt: 1}, w, nil, Options{})
	p.Start(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return w.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
}
