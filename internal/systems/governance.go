package systems

import (
	"context"
	"sync"
	"time"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/society"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

// GovernanceSystem implements the supplemental GovernanceSystem of
// SPEC_FULL.md §4.8.12: per-settlement governance score/tax/treasury/
// culture axes, an overmass signal consumed by Building/Lifecycle, and a
// fixed faction roster with pairwise relations. Grounded on the teacher's
// internal/social.Settlement/Faction model and internal/engine/factions.go's
// InitFactions relation seeding, generalized from the hex-settlement model
// to this engine's zone-based one.
type GovernanceSystem struct {
	store *ecs.Store
	bus   *eventbus.Bus
	now   func() int64

	mu          sync.Mutex
	settlements map[string]*society.Settlement
	factions    []*society.Faction
}

// NewGovernanceSystem returns a GovernanceSystem seeded with the fixed
// five-faction roster and the starting inter-faction relations mirroring
// the teacher's InitFactions.
func NewGovernanceSystem(store *ecs.Store, bus *eventbus.Bus, now func() int64) *GovernanceSystem {
	g := &GovernanceSystem{
		store: store, bus: bus, now: now,
		settlements: make(map[string]*society.Settlement),
		factions:    society.SeedFactions(),
	}
	g.seedRelations()
	return g
}

func (g *GovernanceSystem) seedRelations() {
	set := func(a, b string, v float64) {
		fa, fb := g.factionByID(a), g.factionByID(b)
		if fa == nil || fb == nil {
			return
		}
		fa.Relations[b] = v
		fb.Relations[a] = v
	}
	set("crown", "compact", -20)
	set("crown", "brotherhood", 30)
	set("crown", "circle", 10)
	set("crown", "path", -50)
	set("compact", "brotherhood", -10)
	set("compact", "circle", 20)
	set("compact", "path", -30)
	set("brotherhood", "circle", -20)
	set("brotherhood", "path", -40)
	set("circle", "path", -60)
}

func (g *GovernanceSystem) factionByID(id string) *society.Faction {
	for _, f := range g.factions {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// RegisterSettlement adds a new settlement under governance.
func (g *GovernanceSystem) RegisterSettlement(s *society.Settlement) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settlements[s.ID] = s
}

// Settlement returns the settlement with id, if any.
func (g *GovernanceSystem) Settlement(id string) (*society.Settlement, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.settlements[id]
	return s, ok
}

// Settlements returns every registered settlement, for snapshotting.
func (g *GovernanceSystem) Settlements() []*society.Settlement {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*society.Settlement, 0, len(g.settlements))
	for _, s := range g.settlements {
		out = append(out, s)
	}
	return out
}

// Factions returns the live faction roster.
func (g *GovernanceSystem) Factions() []*society.Faction {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*society.Faction(nil), g.factions...)
}

// Credit implements systems.TreasuryLedger (consumed by MarketSystem).
func (g *GovernanceSystem) Credit(settlementID string, amount float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.settlements[settlementID]; ok {
		s.Treasury += amount
	}
}

// Debit implements systems.TreasuryLedger.
func (g *GovernanceSystem) Debit(settlementID string, amount float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.settlements[settlementID]
	if !ok || s.Treasury < amount {
		return false
	}
	s.Treasury -= amount
	return true
}

// Update implements scheduler.UpdateFunc: recomputes each settlement's
// population from the Store, evaluates overmass, and lets the tax rate
// drift gently toward each settlement's culture axes.
func (g *GovernanceSystem) Update(ctx context.Context, dt time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	populations := make(map[string]int)
	for _, id := range g.store.GetAliveAgents() {
		t, ok := g.store.GetTransform(id)
		if !ok || t.ZoneID == "" {
			continue
		}
		populations[t.ZoneID]++
	}

	for _, s := range g.settlements {
		s.Population = populations[s.ZoneID]
		if s.IsOvermassed(tuning.OvermassLoadFactor) {
			g.bus.Emit(eventbus.GovernanceOvermass, eventbus.GovernanceOvermassPayload{
				SettlementID: s.ID,
				Load:         float64(s.Population) + s.Treasury*0.01,
				Capacity:     s.GovernanceScore * 10.0 * tuning.OvermassLoadFactor,
			}, g.now())
		}
		// tax rate drifts toward (0.5 - openness*0.3 + tradition*0.2), clamped.
		target := clamp(0.5-s.CultureOpenness*0.3+s.CultureTradition*0.2, 0.05, 0.6)
		s.TaxRate += (target - s.TaxRate) * 0.01
	}
	return nil
}

// ExodusCandidates returns agent IDs LifecycleSystem may choose to remove
// (emigrate) from an overmassed settlement, sized to EmigrationFraction of
// its population, only once population clears MinPopulationForExodus.
func (g *GovernanceSystem) ExodusCandidates(settlementID string) []string {
	g.mu.Lock()
	s, ok := g.settlements[settlementID]
	g.mu.Unlock()
	if !ok || s.Population < tuning.MinPopulationForExodus || !s.IsOvermassed(tuning.OvermassLoadFactor) {
		return nil
	}
	n := int(float64(s.Population) * tuning.EmigrationFraction)
	out := make([]string, 0, n)
	for _, id := range g.store.GetAliveAgents() {
		if len(out) >= n {
			break
		}
		t, ok := g.store.GetTransform(id)
		if ok && t.ZoneID == settlementID {
			out = append(out, id)
		}
	}
	return out
}
