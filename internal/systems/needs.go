// Package systems implements the 16 subsystems of C9, each owning a narrow
// slice of state and reading/writing Agent components only through the
// Store (C4), emitting through the Event Bus (C2), and reaching other
// subsystems only through Port Interfaces (C7) resolved via the Registry
// (C6). Grounded throughout on the teacher's internal/agents and
// internal/engine packages, generalized from a flat Agent struct and a
// single real-time loop into the spec's component/rate-gated model.
package systems

import (
	"context"
	"log/slog"
	"time"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/ports"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

// needKinds enumerates the seven need names, matching ecs.Needs.Get/Set.
var needKinds = []string{"hunger", "thirst", "energy", "hygiene", "social", "fun", "mentalHealth"}

var decayRates = map[string]float64{
	"hunger":       tuning.DecayHunger,
	"thirst":       tuning.DecayThirst,
	"energy":       tuning.DecayEnergy,
	"hygiene":      tuning.DecayHygiene,
	"social":       tuning.DecaySocial,
	"fun":          tuning.DecayFun,
	"mentalHealth": tuning.DecayMentalHealth,
}

// lifeStageFactor returns the decay multiplier for an agent's life stage;
// children and elders feel need decay a bit more acutely.
func lifeStageFactor(stage ecs.LifeStage) float64 {
	switch stage {
	case ecs.LifeStageChild:
		return 1.2
	case ecs.LifeStageElder:
		return 1.15
	default:
		return 1.0
	}
}

// NeedsSystem implements SPEC_FULL.md §4.8.1. Grounded on the teacher's
// agents.DecayNeeds (_examples/tobyjaguar-mini-world/internal/agents/
// behavior.go) and NeedsState (internal/agents/needs.go), generalized
// from a 5-value Maslow hierarchy on a [0,1] scale to the spec's 7-need
// [0,100] component.
type NeedsSystem struct {
	store *ecs.Store
	bus   *eventbus.Bus
	now   func() int64
	log   *slog.Logger

	// DivineModifier, when set, lets DivineFavorSystem blessings soften or
	// sharpen decay for a lineage's agents without NeedsSystem depending on
	// the favor package directly (favor consults a small callback instead
	// of an import, avoiding a port for a single float).
	DivineModifier func(agentID string) float64
}

// NewNeedsSystem returns a NeedsSystem bound to store/bus.
func NewNeedsSystem(store *ecs.Store, bus *eventbus.Bus, now func() int64, log *slog.Logger) *NeedsSystem {
	return &NeedsSystem{store: store, bus: bus, now: now, log: log, DivineModifier: func(string) float64 { return 1.0 }}
}

// Update implements scheduler.UpdateFunc.
func (s *NeedsSystem) Update(ctx context.Context, dt time.Duration) error {
	dtSec := dt.Seconds()
	for _, id := range s.store.GetAliveAgents() {
		needs, ok := s.store.GetNeeds(id)
		if !ok {
			continue
		}
		profile, _ := s.store.GetProfile(id)
		factor := lifeStageFactor(profile.LifeStage) * s.DivineModifier(id)

		for _, kind := range needKinds {
			v, _ := needs.Get(kind)
			v -= decayRates[kind] * dtSec * factor
			v = clamp(v, tuning.NeedMin, tuning.NeedMax)
			needs = needs.Set(kind, v)
		}

		// Cross-effects: sustained low energy/hygiene depress mental health.
		energy, _ := needs.Get("energy")
		hygiene, _ := needs.Get("hygiene")
		mental, _ := needs.Get("mentalHealth")
		if energy < tuning.NeedWarningThreshold {
			mental -= tuning.LowEnergyMentalPenalty * (tuning.NeedWarningThreshold - energy) / tuning.NeedWarningThreshold * dtSec
		}
		if hygiene < tuning.NeedWarningThreshold {
			mental -= tuning.LowHygieneMentalPenalty * (tuning.NeedWarningThreshold - hygiene) / tuning.NeedWarningThreshold * dtSec
		}
		needs = needs.Set("mentalHealth", clamp(mental, tuning.NeedMin, tuning.NeedMax))

		needs = s.trackCriticalEdges(id, needs)

		if err := s.store.SetNeeds(id, needs); err != nil {
			s.log.Warn("needs update failed", slog.String("agent", id), slog.Any("error", err))
			continue
		}

		hunger, _ := needs.Get("hunger")
		thirst, _ := needs.Get("thirst")
		if hunger <= 0 || thirst <= 0 {
			s.markForDeath(id)
		}
	}
	return nil
}

func (s *NeedsSystem) trackCriticalEdges(id string, needs ecs.Needs) ecs.Needs {
	for _, kind := range needKinds {
		v, _ := needs.Get(kind)
		wasBelow := needs.WasBelowCritical(kind)
		isBelow := v < tuning.NeedCriticalThreshold
		isAbove := v >= tuning.NeedWarningThreshold

		if isBelow && !wasBelow {
			s.bus.Emit(eventbus.NeedsCritical, eventbus.NeedsCriticalPayload{
				AgentID: id, NeedType: kind, Value: v,
			}, s.now())
			needs = needs.MarkBelowCritical(kind, true)
		} else if isAbove && wasBelow {
			s.bus.Emit(eventbus.NeedsRecovered, eventbus.NeedsRecoveredPayload{
				AgentID: id, NeedType: kind, Value: v,
			}, s.now())
			needs = needs.MarkBelowCritical(kind, false)
		}
	}
	return needs
}

func (s *NeedsSystem) markForDeath(id string) {
	h, ok := s.store.GetHealth(id)
	if !ok || h.IsDead {
		return
	}
	h.IsDead = true
	h.Current = 0
	h.LastDamageAt = s.now()
	_ = s.store.SetHealth(id, h)
}

// SatisfyNeed implements ports.NeedsPort.
func (s *NeedsSystem) SatisfyNeed(agentID, kind string, delta float64) ports.HandlerResult {
	needs, ok := s.store.GetNeeds(agentID)
	if !ok {
		return ports.Failed("needs", "unknown agent or no needs component")
	}
	v, known := needs.Get(kind)
	if !known {
		return ports.Failed("needs", "unknown need kind "+kind)
	}
	v = clamp(v+delta, tuning.NeedMin, tuning.NeedMax)
	needs = needs.Set(kind, v)
	if err := s.store.SetNeeds(agentID, needs); err != nil {
		return ports.Failed("needs", err.Error())
	}
	return ports.Completed("needs", v)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
