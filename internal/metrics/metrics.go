// Package metrics implements the Metrics Collector (C10): a pure observer
// sampled at tuning.MetricsSampleInterval that aggregates Scheduler rate
// stats, Store entity counts, and Inventory totals into a single snapshot
// struct, logged via slog and exposed to the transport layer's
// GET /world/stats endpoint. Grounded on the teacher's periodic console
// reporting (_examples/tobyjaguar-mini-world/cmd/worldsim/main.go's
// tick/hour/day summary logging), generalized from ad hoc fmt.Printf
// console lines into a structured, queryable snapshot plus slog output.
package metrics

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/scheduler"
)

// RateSample is one rate loop's accumulated statistics at sample time.
type RateSample struct {
	Count uint64
	AvgMS float64
	Skips uint64
}

// Snapshot is one point-in-time aggregate sample.
type Snapshot struct {
	SampledAtMS          int64
	Population           int
	AnimalCount          int
	TotalInventoryWeight float64
	WealthGini           float64 // 0 (perfectly equal) .. 1 (maximally unequal)
	AvgSocialCoherence   float64 // mean agent Social.Mood, [-1,1]
	RateStats            map[scheduler.Rate]RateSample
	EventsTotal          uint64
}

// EventCounter is the narrow eventbus surface Metrics reads.
type EventCounter interface {
	TotalEvents() uint64
}

// Collector periodically samples the simulation's aggregate state. It
// never mutates anything; Sample is safe to call concurrently with the
// scheduler's own goroutines since it only reads through the Store's and
// Scheduler's own locked accessors.
type Collector struct {
	store     *ecs.Store
	sched     *scheduler.Scheduler
	bus       EventCounter
	now       func() int64
	log       *slog.Logger
	animalCount func() int // optional; nil means not tracked

	mu   sync.Mutex
	last Snapshot
}

// New returns a Collector. animalCount may be nil if no AnimalSystem is
// wired.
func New(store *ecs.Store, sched *scheduler.Scheduler, bus EventCounter, now func() int64, log *slog.Logger, animalCount func() int) *Collector {
	if log == nil {
		log = slog.Default()
	}
	return &Collector{store: store, sched: sched, bus: bus, now: now, log: log, animalCount: animalCount}
}

// Sample takes one aggregate snapshot, logs a summary line, and caches the
// result for Latest. Intended to be called every tuning.MetricsSampleInterval
// from a ticker of its own (see SampleLoop), not from a scheduler hook.
func (c *Collector) Sample() Snapshot {
	ids := c.store.GetAliveAgents()
	var totalWeight float64
	wealth := make([]float64, 0, len(ids))
	var coherenceSum float64
	var coherenceCount int
	for _, id := range ids {
		if inv, ok := c.store.GetInventory(id); ok {
			totalWeight += inv.CurrentLoad
			wealth = append(wealth, inv.CurrentLoad)
		}
		if so, ok := c.store.GetSocial(id); ok {
			coherenceSum += so.Mood
			coherenceCount++
		}
	}
	avgCoherence := 0.0
	if coherenceCount > 0 {
		avgCoherence = coherenceSum / float64(coherenceCount)
	}

	animals := 0
	if c.animalCount != nil {
		animals = c.animalCount()
	}

	rateStats := make(map[scheduler.Rate]RateSample, 3)
	for _, r := range []scheduler.Rate{scheduler.Fast, scheduler.Medium, scheduler.Slow} {
		count, avgMS, skips := c.sched.Stats(r)
		rateStats[r] = RateSample{Count: count, AvgMS: avgMS, Skips: skips}
	}

	snap := Snapshot{
		SampledAtMS:          c.now(),
		Population:           len(ids),
		AnimalCount:          animals,
		TotalInventoryWeight: totalWeight,
		WealthGini:           giniCoefficient(wealth),
		AvgSocialCoherence:   avgCoherence,
		RateStats:            rateStats,
	}
	if c.bus != nil {
		snap.EventsTotal = c.bus.TotalEvents()
	}

	c.mu.Lock()
	c.last = snap
	c.mu.Unlock()

	c.log.Info("world metrics",
		slog.String("population", humanize.Comma(int64(snap.Population))),
		slog.String("animals", humanize.Comma(int64(snap.AnimalCount))),
		slog.String("inventory_weight", humanize.Commaf(snap.TotalInventoryWeight)),
		slog.String("wealth_gini", humanize.Commaf(snap.WealthGini)),
		slog.String("events_total", humanize.Comma(int64(snap.EventsTotal))),
	)
	return snap
}

// giniCoefficient computes the Gini coefficient of values via the standard
// mean-absolute-difference formula. Returns 0 for fewer than two values or
// when every value is zero (perfect equality, vacuously).
func giniCoefficient(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var sum, weightedSum float64
	for i, v := range sorted {
		sum += v
		weightedSum += float64(i+1) * v
	}
	if sum == 0 {
		return 0
	}
	return (2*weightedSum)/(float64(n)*sum) - float64(n+1)/float64(n)
}

// Latest returns the most recently taken snapshot.
func (c *Collector) Latest() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// SampleLoop runs Sample on a ticker until stop fires; callers typically
// launch this as its own goroutine rather than piggybacking on the
// scheduler's own rate loops, since the metrics cadence
// (tuning.MetricsSampleInterval = 5s) doesn't match FAST/MEDIUM/SLOW.
func (c *Collector) SampleLoop(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.Sample()
		}
	}
}
