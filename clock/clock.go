// Package clock paces the display.  A ticker fires at each wall-clock
// second; every tick toggles the separator blink state and renders a
// frame, and the elapsed-time check for the next NTP resync runs
// alongside so a slow sync never stalls the render cadence.
package clock

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/hwclocks/sevenclock/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	missedTicksCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "missed_ticks",
		Help: "count of ticks that were generated but never received by anything",
	})

	tickDelayMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tick_delay",
		Help:    "amount of time between seconds tick and when it is sent to the channel, in nanoseconds",
		Buckets: prometheus.ExponentialBuckets(1000, 10, 20),
	})
)

// Tick sends the current time to the provided channel at the exact instant that the seconds change.
// An absent listener will not receive an outdated time; the tick will be skipped and the
// missedTicksCounter incremented.  Cancelling the context causes this to return immediately.
func Tick(ctx context.Context, ch chan time.Time) error {
	for {
		nextSecond := time.Now().Add(time.Second).Truncate(time.Second)

		// Wait until the next second starts.
		select {
		case <-time.After(time.Until(nextSecond)):
		case <-ctx.Done():
			return fmt.Errorf("waiting for next second: %w", ctx.Err())
		}

		// Send the time to the channel.
		select {
		case <-time.After(500 * time.Millisecond):
			missedTicksCounter.Inc()
		case <-ctx.Done():
			return fmt.Errorf("waiting to send tick: %w", ctx.Err())
		case ch <- nextSecond:
			tickDelayMetric.Observe(float64(time.Since(nextSecond).Nanoseconds()))
		}
	}
}

// Renderer composes and flushes one frame.
type Renderer interface {
	Render(dotOn bool) error
}

// Syncer refreshes the time source from the network.
type Syncer interface {
	Sync(ctx context.Context) error
}

const syncTimeout = 30 * time.Second

// Scheduler drives the renderer once per second and the syncer once per
// configured interval.
type Scheduler struct {
	cfg      *config.Store
	renderer Renderer
	syncer   Syncer

	dotOn    bool
	lastSync time.Time
	syncing  atomic.Bool
}

func NewScheduler(cfg *config.Store, r Renderer, s Syncer) *Scheduler {
	return &Scheduler{cfg: cfg, renderer: r, syncer: s, dotOn: true}
}

// Run runs the scheduler until the context is cancelled.  The first tick
// triggers the first sync.
func (s *Scheduler) Run(ctx context.Context) error {
	tickErrCh := make(chan error)
	tickCh := make(chan time.Time)
	go func() {
		err := Tick(ctx, tickCh)
		select {
		case tickErrCh <- err:
		case <-ctx.Done():
		}
		close(tickErrCh)
		close(tickCh)
	}()
	for {
		select {
		case <-tickCh:
		case err := <-tickErrCh:
			return fmt.Errorf("ticker: %w", err)
		}
		s.step(ctx)
	}
}

// step is the body of one tick.
func (s *Scheduler) step(ctx context.Context) {
	cfg := s.cfg.Snapshot()
	if cfg.BlinkDots {
		s.dotOn = !s.dotOn
	} else {
		s.dotOn = true
	}
	if err := s.renderer.Render(s.dotOn); err != nil {
		// A flush error is not fatal; the next tick retries.
		log.Printf("render: %v", err)
	}
	s.maybeSync(ctx, time.Duration(cfg.NTPSyncInterval)*time.Minute)
}

// maybeSync kicks off a resync when the interval has elapsed.  The sync
// runs in its own goroutine, and at most one runs at a time, so a stall
// on the network delays the next sync but never a render.
func (s *Scheduler) maybeSync(ctx context.Context, interval time.Duration) {
	if !s.lastSync.IsZero() && time.Since(s.lastSync) < interval {
		return
	}
	if !s.syncing.CompareAndSwap(false, true) {
		return
	}
	s.lastSync = time.Now()
	go func() {
		defer s.syncing.Store(false)
		sctx, cancel := context.WithTimeout(ctx, syncTimeout)
		defer cancel()
		if err := s.syncer.Sync(sctx); err != nil {
			log.Printf("resync: %v", err)
		}
	}()
}
