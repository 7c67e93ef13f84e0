package events

import (
	"context"
	"time"

	"casino-gateway/internal/metrics"
	"casino-gateway/internal/model"
)

// Wait is one bounded wait for events of some kinds on a stream.
type Wait struct {
	Stream Stream
	Kinds  []model.EventKind
	// SessionID scopes the wait to one game session when non-zero.
	SessionID uint64
	// Player scopes the wait to one account when set.
	Player string
}

// Correlator races waits against a shared timeout.
type Correlator struct {
	timeout time.Duration
}

// NewCorrelator creates a Correlator with the given wait timeout.
func NewCorrelator(timeout time.Duration) *Correlator {
	return &Correlator{timeout: timeout}
}

// Timeout returns the configured wait timeout.
func (c *Correlator) Timeout() time.Duration {
	return c.timeout
}

// Pending is a set of registered waits. Register before submitting so that
// an event published before Await is not lost.
type Pending struct {
	timeout time.Duration
	chans   []<-chan model.Event
	cancels []func()
}

// Expect registers listeners for every wait. A wait for started also
// resolves on error, since a rejected start never produces started.
// Waits with a nil stream are skipped.
func (c *Correlator) Expect(waits ...Wait) *Pending {
	p := &Pending{timeout: c.timeout}
	for _, w := range waits {
		if w.Stream == nil {
			continue
		}
		kinds := w.Kinds
		if containsKind(kinds, model.EventStarted) && !containsKind(kinds, model.EventError) {
			kinds = append(append([]model.EventKind(nil), kinds...), model.EventError)
		}
		m := Kinds(kinds...)
		if w.Player != "" {
			m = ForPlayer(w.Player, m)
		}
		if w.SessionID != 0 {
			m = ForSession(w.SessionID, m)
		}
		ch, cancel := w.Stream.Listen(m)
		p.chans = append(p.chans, ch)
		p.cancels = append(p.cancels, cancel)
	}
	return p
}

// Await returns the first event delivered to any wait. It returns false on
// timeout, on ctx cancellation, or once every wait's stream has dropped.
// Listeners are released before it returns.
func (p *Pending) Await(ctx context.Context) (model.Event, bool) {
	defer p.Cancel()
	start := time.Now()

	if len(p.chans) == 0 {
		metrics.RecordEventWait(metrics.WaitTimeout, 0)
		return model.Event{}, false
	}

	results := make(chan model.Event, len(p.chans))
	dropped := make(chan struct{}, len(p.chans))
	stop := make(chan struct{})
	defer close(stop)

	for _, ch := range p.chans {
		go func(ch <-chan model.Event) {
			select {
			case ev, ok := <-ch:
				if !ok {
					dropped <- struct{}{}
					return
				}
				results <- ev
			case <-stop:
			}
		}(ch)
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	remaining := len(p.chans)
	for {
		select {
		case ev := <-results:
			metrics.RecordEventWait(string(ev.Kind), time.Since(start))
			return ev, true
		case <-dropped:
			remaining--
			if remaining == 0 {
				metrics.RecordEventWait(metrics.WaitTimeout, time.Since(start))
				return model.Event{}, false
			}
		case <-timer.C:
			metrics.RecordEventWait(metrics.WaitTimeout, time.Since(start))
			return model.Event{}, false
		case <-ctx.Done():
			metrics.RecordEventWait(metrics.WaitTimeout, time.Since(start))
			return model.Event{}, false
		}
	}
}

// Cancel releases the listeners without waiting.
func (p *Pending) Cancel() {
	for _, cancel := range p.cancels {
		cancel()
	}
}

func containsKind(kinds []model.EventKind, k model.EventKind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}
