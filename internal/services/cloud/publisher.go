// Package cloud pushes the hub state to a ThingSpeak-style channel on a
// fixed period. A cycle that cannot reach the network is dropped, never
// queued.
package cloud

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/canbus_hub/internal/metrics"
	"github.com/LeonardoBeccarini/canbus_hub/internal/state"
)

type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeOffline  Outcome = "offline"
	OutcomeRejected Outcome = "rejected"
	OutcomeError    Outcome = "error"
)

var errLinkDown = errors.New("link not ready")

type Options struct {
	// ReconnectPoll is the interval between readiness checks.
	ReconnectPoll time.Duration
	// ReconnectCeiling bounds the whole reconnect wait.
	ReconnectCeiling time.Duration
}

type Publisher struct {
	source  state.SnapshotSource
	link    Link
	writer  Writer
	metrics *metrics.Metrics

	poll    time.Duration
	ceiling time.Duration
	// timer paces the reconnect polls; nil means real time
	timer backoff.Timer
}

func NewPublisher(source state.SnapshotSource, link Link, writer Writer, m *metrics.Metrics, opts Options) *Publisher {
	if opts.ReconnectPoll <= 0 {
		opts.ReconnectPoll = 500 * time.Millisecond
	}
	if opts.ReconnectCeiling <= 0 {
		opts.ReconnectCeiling = 10 * time.Second
	}
	return &Publisher{
		source:  source,
		link:    link,
		writer:  writer,
		metrics: m,
		poll:    opts.ReconnectPoll,
		ceiling: opts.ReconnectCeiling,
	}
}

// MaxReadyChecks is the number of readiness checks a reconnect may spend.
func (p *Publisher) MaxReadyChecks() int {
	n := int(p.ceiling / p.poll)
	if p.ceiling%p.poll != 0 {
		n++
	}
	return n
}

// Start runs one cycle per period on its own goroutine until ctx ends.
func (p *Publisher) Start(ctx context.Context, period time.Duration) {
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.PublishOnce(ctx)
			}
		}
	}()
}

// PublishOnce runs a single publish cycle and reports how it ended.
func (p *Publisher) PublishOnce(ctx context.Context) Outcome {
	cycle := uuid.NewString()
	out := p.publish(ctx, cycle)
	p.metrics.CloudPublish(string(out))
	return out
}

func (p *Publisher) publish(ctx context.Context, cycle string) Outcome {
	if !p.link.Ready() {
		log.Printf("cloud: cycle %s: link down, reconnecting", cycle)
		p.link.Reconnect()
		if err := p.waitReady(ctx); err != nil {
			log.Printf("cloud: cycle %s: still offline after %s, skipping: %v", cycle, p.ceiling, err)
			return OutcomeOffline
		}
		log.Printf("cloud: cycle %s: link restored", cycle)
	}

	fields := FieldsFromSnapshot(p.source.Read())
	resp, err := p.writer.Write(ctx, fields)
	if err != nil {
		log.Printf("cloud: cycle %s: write failed: %v", cycle, err)
		return OutcomeError
	}
	if resp.Status != http.StatusOK {
		log.Printf("cloud: cycle %s: problem updating channel, HTTP error code %d", cycle, resp.Status)
		return OutcomeRejected
	}
	if !resp.Accepted() {
		log.Printf("cloud: cycle %s: channel refused the update (entry id 0)", cycle)
		return OutcomeRejected
	}
	log.Printf("cloud: cycle %s: channel update successful, entry %d", cycle, resp.EntryID)
	return OutcomeOK
}

// waitReady polls the link every poll interval, at most MaxReadyChecks
// times, and gives up early when ctx is done.
func (p *Publisher) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.ceiling)
	defer cancel()

	op := func() error {
		p.metrics.ReadyCheck()
		if p.link.Ready() {
			return nil
		}
		return errLinkDown
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.poll), uint64(p.MaxReadyChecks()-1)),
		ctx,
	)
	return backoff.RetryNotifyWithTimer(op, b, nil, p.timer)
}
