package systems

import (
	"context"
	"sync"
	"time"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
)

// lineageCensus is the minimal genealogy surface EmergenceSystem reads for
// the death:birth ratio trend.
type lineageCensus interface {
	Lineages() []*Lineage
}

// EmergenceSystem implements the supplemental EmergenceSystem of
// SPEC_FULL.md §4.8.12: a pure observer, run once per SLOW tick, that
// never mutates Store or any other subsystem's state. Grounded on the
// teacher's deterministic (non-LLM) world-health triage
// (_examples/tobyjaguar-mini-world/internal/engine/perpetuation.go's
// economicCircuitBreaker/culturalDrift checks), generalized from ad hoc
// per-tick corrections into a single read-only assessment emitted for
// downstream consumers (transport/admin) to act on, rather than the
// observer mutating state itself.
type EmergenceSystem struct {
	store    *ecs.Store
	bus      *eventbus.Bus
	now      func() int64
	genealogy lineageCensus

	mu          sync.Mutex
	lastBorn    int
	lastDied    int
	tradeVolume float64
}

// NewEmergenceSystem returns an EmergenceSystem. genealogy may be nil (the
// death:birth trend then reads as 0).
func NewEmergenceSystem(store *ecs.Store, bus *eventbus.Bus, now func() int64, genealogy lineageCensus) *EmergenceSystem {
	e := &EmergenceSystem{store: store, bus: bus, now: now, genealogy: genealogy}
	bus.On(eventbus.ProductionOutput, func(ev eventbus.Event) {
		if p, ok := ev.Payload.(eventbus.ProductionOutputPayload); ok {
			e.mu.Lock()
			e.tradeVolume += p.Amount
			e.mu.Unlock()
		}
	})
	return e
}

// Update implements scheduler.UpdateFunc. It recomputes the assessment on
// every call and has no throttle of its own; cmd/worldsim registers it at
// SLOW, so it runs once per SLOW tick (the Metrics Collector samples on
// its own tuning.MetricsSampleInterval ticker instead).
func (e *EmergenceSystem) Update(ctx context.Context, dt time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	population := len(e.store.GetAliveAgents())
	histogram := e.settlementHistogram()

	born, died := 0, 0
	if e.genealogy != nil {
		for _, lin := range e.genealogy.Lineages() {
			born += lin.TotalBorn
			died += lin.TotalDied
		}
	}
	deathBirthRatio := 0.0
	if born > 0 {
		deathBirthRatio = float64(died) / float64(born)
	}

	tradePerCapita := 0.0
	if population > 0 {
		tradePerCapita = e.tradeVolume / float64(population)
	}

	crisis := "nominal"
	switch {
	case population == 0 || deathBirthRatio > 0.9:
		crisis = "critical"
	case deathBirthRatio > 0.6 || tradePerCapita < 0.01:
		crisis = "strained"
	}

	e.bus.Emit(eventbus.EmergenceAssessment, eventbus.EmergenceAssessmentPayload{
		CrisisLevel:     crisis,
		SettlementSizes: histogram,
		DeathBirthRatio: deathBirthRatio,
		TradePerCapita:  tradePerCapita,
	}, e.now())

	e.lastBorn, e.lastDied = born, died
	e.tradeVolume = 0
	return nil
}

func (e *EmergenceSystem) settlementHistogram() []int {
	counts := make(map[string]int)
	for _, id := range e.store.GetAliveAgents() {
		t, ok := e.store.GetTransform(id)
		if !ok || t.ZoneID == "" {
			continue
		}
		counts[t.ZoneID]++
	}
	out := make([]int, 0, len(counts))
	for _, n := range counts {
		out = append(out, n)
	}
	return out
}
