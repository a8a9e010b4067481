package systems

import (
	"context"
	"time"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/ports"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

// lineageResolver is the narrow genealogy surface DivineFavorSystem needs:
// mapping a lineage to the founder agent its Favor component lives on (see
// ecs.Favor's doc comment on why favor is modeled per-founder-agent).
type lineageResolver interface {
	LineageOf(agentID string) (string, bool)
	LineageFounder(lineageID string) (string, bool)
}

// DivineFavorSystem implements the supplemental DivineFavorSystem of
// SPEC_FULL.md §4.8.12: per-lineage accumulated favor earned from
// sustained high average need satisfaction, spent on time-limited
// blessings that modulate NeedsSystem's decay via DivineModifier. Grounded
// on the teacher's phi-based conjugate-field settlement scoring
// (_examples/tobyjaguar-mini-world/internal/social/settlement.go's
// ChargingPressure/DischargingPressure), generalized from a settlement-wide
// single score into a per-lineage accumulator spent on discrete blessings.
type DivineFavorSystem struct {
	store    *ecs.Store
	bus      *eventbus.Bus
	now      func() int64
	genealogy lineageResolver
}

// NewDivineFavorSystem returns a DivineFavorSystem.
func NewDivineFavorSystem(store *ecs.Store, bus *eventbus.Bus, now func() int64, genealogy lineageResolver) *DivineFavorSystem {
	return &DivineFavorSystem{store: store, bus: bus, now: now, genealogy: genealogy}
}

// Update implements scheduler.UpdateFunc: accrues favor per lineage from
// its members' average need satisfaction, and prunes expired blessings.
func (s *DivineFavorSystem) Update(ctx context.Context, dt time.Duration) error {
	if s.genealogy == nil {
		return nil
	}
	now := s.now()
	lineageAvg := make(map[string]float64)
	lineageCount := make(map[string]int)
	for _, id := range s.store.GetAliveAgents() {
		lineageID, ok := s.genealogy.LineageOf(id)
		if !ok {
			continue
		}
		needs, ok := s.store.GetNeeds(id)
		if !ok {
			continue
		}
		avg := (needs.Hunger + needs.Thirst + needs.Energy + needs.Hygiene + needs.Social + needs.Fun + needs.MentalHealth) / 7.0
		lineageAvg[lineageID] += avg
		lineageCount[lineageID]++
	}

	for lineageID, sum := range lineageAvg {
		count := lineageCount[lineageID]
		if count == 0 {
			continue
		}
		founderID, ok := s.genealogy.LineageFounder(lineageID)
		if !ok {
			continue
		}
		avg := sum / float64(count)
		if avg <= tuning.NeedWarningThreshold {
			continue
		}
		favor, _ := s.store.GetFavor(founderID)
		favor.Accumulated += (avg - tuning.NeedWarningThreshold) * tuning.FavorPerAvgSatisfactionPoint * dt.Seconds()

		pruned := favor.Active[:0]
		for _, b := range favor.Active {
			if now < b.ExpiresAt {
				pruned = append(pruned, b)
			}
		}
		favor.Active = pruned
		_ = s.store.SetFavor(founderID, favor)
	}
	return nil
}

// GrantBlessing implements ports.FavorPort: spends favor to grant
// lineageID a time-limited blessing of kind.
func (s *DivineFavorSystem) GrantBlessing(lineageID, kind string) ports.HandlerResult {
	if s.genealogy == nil {
		return ports.Failed("divinefavor", "no genealogy wired")
	}
	founderID, ok := s.genealogy.LineageFounder(lineageID)
	if !ok {
		return ports.Failed("divinefavor", "unknown lineage")
	}
	favor, _ := s.store.GetFavor(founderID)
	const cost = 10.0
	if favor.Accumulated < cost {
		return ports.Failed("divinefavor", "insufficient favor")
	}
	favor.Accumulated -= cost
	expires := s.now() + tuning.BlessingDuration.Milliseconds()
	favor.Active = append(favor.Active, ecs.Blessing{Kind: kind, ExpiresAt: expires, Magnitude: 1.2})
	if err := s.store.SetFavor(founderID, favor); err != nil {
		return ports.Failed("divinefavor", err.Error())
	}
	s.bus.Emit(eventbus.DivineBlessingGranted, eventbus.DivineBlessingGrantedPayload{
		LineageID: lineageID, Kind: kind, ExpiresAt: expires,
	}, s.now())
	return ports.Completed("divinefavor", nil)
}

// DivineModifier is wired into NeedsSystem.DivineModifier: it softens need
// decay (multiplier < 1) for any agent whose lineage currently has an
// active blessing.
func (s *DivineFavorSystem) DivineModifier(agentID string) float64 {
	if s.genealogy == nil {
		return 1.0
	}
	lineageID, ok := s.genealogy.LineageOf(agentID)
	if !ok {
		return 1.0
	}
	founderID, ok := s.genealogy.LineageFounder(lineageID)
	if !ok {
		return 1.0
	}
	favor, ok := s.store.GetFavor(founderID)
	if !ok || len(favor.Active) == 0 {
		return 1.0
	}
	now := s.now()
	modifier := 1.0
	for _, b := range favor.Active {
		if now < b.ExpiresAt && b.Kind == "needs_ease" {
			modifier /= b.Magnitude
		}
	}
	return modifier
}
