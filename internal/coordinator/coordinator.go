// Package coordinator owns the lifecycle of every backend adapter, in the
// shape of the teacher's streams.Manager (internal/streams/manager.go): a
// single owner of N independently-lifecycled workers, started one after
// another and torn down concurrently with a bounded grace period. Unlike the teacher's Manager,
// which reconciles a desired-vs-actual stream list on every Sync call, the
// coordinator's adapter set is fixed at construction (spec §4.9): adapters
// are enabled or disabled by configuration, not added/removed at runtime.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sync/errgroup"

	"github.com/openhorizonlabs/uhc/internal/adapter"
)

// shutdownGrace bounds how long Stop waits for all adapters before giving up
// and returning anyway (spec §4.9).
const shutdownGrace = 5 * time.Second

// Coordinator starts and stops the configured set of backend adapters.
// It does not own any zone state itself; it exists purely to manage
// connection lifecycles so the aggregator never has to.
type Coordinator struct {
	adapters []adapter.Startable
}

// New creates a Coordinator over the given adapters. The slice order is the
// startup order; shutdown happens concurrently regardless of order.
func New(adapters []adapter.Startable) *Coordinator {
	return &Coordinator{adapters: adapters}
}

// Start brings up every adapter sequentially, per spec §4.9: a single
// adapter failing to start (e.g. DNS failure, bad config) is logged and
// skipped rather than aborting the whole daemon. Each adapter manages its
// own reconnect loop internally once started.
func (c *Coordinator) Start(ctx context.Context) {
	for _, a := range c.adapters {
		if err := a.Start(ctx); err != nil {
			slog.Error("coordinator: adapter failed to start", "source", a.Source(), "error", err)
			continue
		}
		slog.Info("coordinator: adapter started", "source", a.Source())
	}
}

// Stop tears down every adapter concurrently, bounded by shutdownGrace.
// Adapters that don't return within the grace period are abandoned (their
// goroutines may still be unwinding, but Stop itself returns so the process
// can exit).
func (c *Coordinator) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range c.adapters {
		a := a
		g.Go(func() error {
			if err := a.Stop(gctx); err != nil {
				slog.Warn("coordinator: adapter stop returned error", "source", a.Source(), "error", err)
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("coordinator: shutdown grace period elapsed before all adapters stopped")
	}
}

// Statuses returns the current Status of every adapter, keyed by source, for
// the /status aggregate endpoint (spec §6).
func (c *Coordinator) Statuses() map[string]adapter.Status {
	out := make(map[string]adapter.Status, len(c.adapters))
	for _, a := range c.adapters {
		out[string(a.Source())] = a.Status()
	}
	return out
}

// NewReconnectBackoff constructs the standard reconnect policy used by every
// adapter's background connection loop: exponential from 1s, capped at 60s,
// with the library's default jitter (spec §4.2's reconnect requirement).
func NewReconnectBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 60 * time.Second
	b.MaxElapsedTime = 0 // retry forever; adapters are stopped via ctx cancellation
	return b
}
