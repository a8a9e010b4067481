// Package scheduler implements the Multi-Rate Scheduler (C8): three
// independent timer loops (FAST/MEDIUM/SLOW) each driving the systems
// registered at that rate, with pre/post hooks and entity-count gating.
//
// This replaces the teacher's single real-time Engine loop with
// tick-modulo callbacks (_examples/tobyjaguar-mini-world/internal/engine/
// tick.go's OnTick/OnHour/OnDay/OnWeek/OnSeason) with the spec's three
// genuinely independent rate loops and per-system registration, while
// keeping the teacher's overall Start/Stop/slog-logging surface.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crossroads-sim/worldengine/internal/clock"
)

// Rate names one of the three scheduling frequencies.
type Rate string

const (
	Fast   Rate = "fast"
	Medium Rate = "medium"
	Slow   Rate = "slow"
)

// UpdateFunc is one system's per-tick work. dt is the elapsed simulated
// time since this system's previous invocation at its own rate.
type UpdateFunc func(ctx context.Context, dt time.Duration) error

// System is one registration at a given rate.
type System struct {
	Name        string
	Rate        Rate
	Update      UpdateFunc
	Enabled     bool
	MinEntities int // skip this system while entityCount < MinEntities
}

type rateStats struct {
	count   uint64
	totalMS float64
	avgMS   float64
	skips   uint64
}

type rateLoop struct {
	rate     Rate
	period   time.Duration
	systems  []*System
	lastTick time.Time
	stats    rateStats
	stop     chan struct{}
	stopped  chan struct{}
}

// Hooks are the scheduler-wide pre/post callbacks: PreTick refreshes the
// frame clock and rebuilds the spatial index; PostTick flushes the event
// bus. EntityCount is cached by the scheduler at
// ~500ms granularity and fed to each rate loop's minEntities gate.
type Hooks struct {
	PreTick     func()
	PostTick    func()
	EntityCount func() int
}

// Scheduler drives the three rate loops.
type Scheduler struct {
	mu      sync.Mutex
	periods map[Rate]time.Duration
	loops   map[Rate]*rateLoop
	hooks   Hooks
	clock   *clock.Clock
	log     *slog.Logger
	running bool

	// tickMu is held for the whole of one rate-tick (hooks, systems, stats),
	// so the three rate loops never run their ticks at the same time.
	tickMu sync.Mutex

	entityCountCache      int
	entityCountSampledAt  time.Time
}

// Config configures the three rate periods; zero values fall back to
// SPEC_FULL.md defaults (50/250/1000 ms).
type Config struct {
	FastPeriod   time.Duration
	MediumPeriod time.Duration
	SlowPeriod   time.Duration
}

// New returns a Scheduler with empty rate loops; call Register for each
// system before Start.
func New(cfg Config, hooks Hooks, clk *clock.Clock, log *slog.Logger) *Scheduler {
	if cfg.FastPeriod == 0 {
		cfg.FastPeriod = 50 * time.Millisecond
	}
	if cfg.MediumPeriod == 0 {
		cfg.MediumPeriod = 250 * time.Millisecond
	}
	if cfg.SlowPeriod == 0 {
		cfg.SlowPeriod = 1000 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		periods: map[Rate]time.Duration{Fast: cfg.FastPeriod, Medium: cfg.MediumPeriod, Slow: cfg.SlowPeriod},
		loops:   make(map[Rate]*rateLoop),
		hooks:   hooks,
		clock:   clk,
		log:     log,
	}
	for _, r := range []Rate{Fast, Medium, Slow} {
		s.loops[r] = &rateLoop{rate: r, period: s.periods[r]}
	}
	return s
}

// Register adds sys to its declared rate's system list, in registration
// order (systems at a rate run in the order they were registered).
func (s *Scheduler) Register(sys *System) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loop := s.loops[sys.Rate]
	loop.systems = append(loop.systems, sys)
}

// SetSystemEnabled toggles a registered system's Enabled flag by name,
// across whichever rate it was registered at.
func (s *Scheduler) SetSystemEnabled(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, loop := range s.loops {
		for _, sys := range loop.systems {
			if sys.Name == name {
				sys.Enabled = enabled
			}
		}
	}
}

// Stats returns a snapshot of a rate loop's accumulated statistics, for
// the Metrics Collector (C10).
func (s *Scheduler) Stats(r Rate) (count uint64, avgMS float64, skips uint64) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	loop := s.loops[r]
	return loop.stats.count, loop.stats.avgMS, loop.stats.skips
}

func (s *Scheduler) cachedEntityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hooks.EntityCount == nil {
		return 0
	}
	if time.Since(s.entityCountSampledAt) < 500*time.Millisecond {
		return s.entityCountCache
	}
	s.entityCountCache = s.hooks.EntityCount()
	s.entityCountSampledAt = time.Now()
	return s.entityCountCache
}

// Start launches all three rate loops as goroutines. Idempotent: calling
// Start while already running is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	for _, loop := range s.loops {
		loop.stop = make(chan struct{})
		loop.stopped = make(chan struct{})
		loop.lastTick = time.Now()
	}
	loops := make([]*rateLoop, 0, len(s.loops))
	for _, l := range s.loops {
		loops = append(loops, l)
	}
	s.mu.Unlock()

	s.log.Info("scheduler starting", slog.Int("rates", len(loops)))
	for _, loop := range loops {
		go s.runLoop(ctx, loop)
	}
}

// Running reports whether Start has been called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop halts all three rate loops and waits for their current tick (if
// any) to finish. In-flight async system updates are awaited, not killed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	loops := make([]*rateLoop, 0, len(s.loops))
	for _, l := range s.loops {
		loops = append(loops, l)
		close(l.stop)
	}
	s.mu.Unlock()

	for _, loop := range loops {
		<-loop.stopped
	}
	s.log.Info("scheduler stopped")
}

// Step runs exactly one tick of every rate loop synchronously, independent
// of whether Start has been called. This backs the Transport layer's
// `POST /world/step` admin command (SPEC_FULL.md §6), generalizing the
// teacher's pause-via-Speed=0 control surface into an explicit single-step
// primitive a paused engine can still be driven by.
func (s *Scheduler) Step(ctx context.Context) {
	s.mu.Lock()
	loops := make([]*rateLoop, 0, len(s.loops))
	for _, l := range s.loops {
		loops = append(loops, l)
	}
	s.mu.Unlock()

	now := time.Now()
	for _, loop := range loops {
		if loop.lastTick.IsZero() {
			loop.lastTick = now
		}
		s.tick(ctx, loop, now)
	}
}

func (s *Scheduler) runLoop(ctx context.Context, loop *rateLoop) {
	defer close(loop.stopped)
	ticker := time.NewTicker(loop.period)
	defer ticker.Stop()
	for {
		select {
		case <-loop.stop:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, loop, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, loop *rateLoop, now time.Time) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	dt := now.Sub(loop.lastTick)
	loop.lastTick = now

	if s.hooks.PreTick != nil {
		s.hooks.PreTick()
	}

	entityCount := s.cachedEntityCount()
	start := time.Now()

	for _, sys := range loop.systems {
		if !sys.Enabled {
			continue
		}
		if sys.MinEntities > 0 && entityCount < sys.MinEntities {
			loop.stats.skips++
			continue
		}
		s.runSystem(ctx, sys, dt)
	}

	if s.hooks.PostTick != nil {
		s.hooks.PostTick()
	}

	elapsed := time.Since(start)
	loop.stats.count++
	loop.stats.totalMS += float64(elapsed.Milliseconds())
	loop.stats.avgMS = loop.stats.totalMS / float64(loop.stats.count)

	warnAt := time.Duration(float64(loop.period) * 0.8)
	if elapsed > warnAt {
		s.log.Warn("rate loop running slow",
			slog.String("rate", string(loop.rate)),
			slog.Duration("elapsed", elapsed),
			slog.Duration("period", loop.period),
		)
	}
}

func (s *Scheduler) runSystem(ctx context.Context, sys *System, dt time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("system panicked",
				slog.String("system", sys.Name),
				slog.Any("recover", r),
			)
		}
	}()
	if err := sys.Update(ctx, dt); err != nil {
		s.log.Error("system update failed",
			slog.String("system", sys.Name),
			slog.Any("error", err),
		)
	}
}
