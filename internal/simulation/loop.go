// Package simulation drives fixed-interval match ticks and records their
// timing so operators can spot a loop falling behind.
package simulation

import (
	"context"
	"time"
)

// StepFunc advances a match by one fixed tick.
type StepFunc func(step time.Duration)

// Loop runs a step function at a fixed wall-clock interval, catching up with
// extra steps when the ticker falls behind.
type Loop struct {
	step     time.Duration
	stepFunc StepFunc
	monitor  *TickMonitor
	ticker   *time.Ticker
	done     chan struct{}
}

// NewLoop configures a loop with the provided tick interval.
func NewLoop(interval time.Duration, step StepFunc) *Loop {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if step == nil {
		step = func(time.Duration) {}
	}
	return &Loop{
		step:     interval,
		stepFunc: step,
		monitor:  NewTickMonitor(),
	}
}

// Start begins ticking until the context is cancelled or Stop is invoked.
func (l *Loop) Start(ctx context.Context) {
	if l == nil || l.stepFunc == nil {
		return
	}
	l.ticker = time.NewTicker(l.step)
	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		defer l.ticker.Stop()
		last := time.Now()
		accumulator := time.Duration(0)
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-l.ticker.C:
				//1.- Accumulate elapsed time and run fixed steps while catching up,
				// so a stalled scheduler never permanently slows the match.
				accumulator += now.Sub(last)
				last = now
				for accumulator >= l.step {
					began := time.Now()
					l.stepFunc(l.step)
					l.monitor.Observe(time.Since(began))
					accumulator -= l.step
				}
			}
		}
	}()
}

// Stop halts the ticker and waits for the loop goroutine to exit.
func (l *Loop) Stop() {
	if l == nil {
		return
	}
	if l.ticker != nil {
		l.ticker.Stop()
	}
	if l.done != nil {
		<-l.done
		l.done = nil
	}
}

// StepDuration exposes the configured tick interval.
func (l *Loop) StepDuration() time.Duration {
	if l == nil {
		return 0
	}
	return l.step
}

// Metrics returns the aggregated tick timing statistics.
func (l *Loop) Metrics() TickMetricsSnapshot {
	if l == nil {
		return TickMetricsSnapshot{}
	}
	return l.monitor.Snapshot()
}
