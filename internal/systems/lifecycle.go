package systems

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/ports"
	"github.com/crossroads-sim/worldengine/internal/taskqueue"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

// LifecycleSystem implements SPEC_FULL.md §4.8.6 (SLOW). Grounded on the
// teacher's internal/engine/population.go (aging/death sweep) and
// internal/agents/spawner.go (trait inheritance), generalized from a
// hex-position birth site to a zone-based one and from the teacher's
// uint64 agent ids to uuid strings.
type LifecycleSystem struct {
	store *ecs.Store
	bus   *eventbus.Bus
	tasks *taskqueue.Queue
	now   func() int64
	rng   *rand.Rand
}

// NewLifecycleSystem returns a LifecycleSystem.
func NewLifecycleSystem(store *ecs.Store, bus *eventbus.Bus, tasks *taskqueue.Queue, now func() int64, seed int64) *LifecycleSystem {
	return &LifecycleSystem{store: store, bus: bus, tasks: tasks, now: now, rng: rand.New(rand.NewSource(seed))}
}

// Update implements scheduler.UpdateFunc: ages every agent, promotes
// life-stage transitions, and sweeps agents past MaxAge or already marked
// dead out of the Store.
func (s *LifecycleSystem) Update(ctx context.Context, dt time.Duration) error {
	yearsPerSec := 1.0 / tuning.SecondsPerSimYear
	for _, id := range s.store.GetAllAgentIDs() {
		profile, ok := s.store.GetProfile(id)
		if !ok || profile.Immortal {
			continue
		}
		health, hasHealth := s.store.GetHealth(id)
		if hasHealth && health.IsDead {
			s.RemoveAgent(id, "died")
			continue
		}

		profile.AgeYears += yearsPerSec * dt.Seconds()
		profile.LifeStage = lifeStageFor(profile.AgeYears)
		_ = s.store.SetProfile(id, profile)

		if profile.AgeYears >= tuning.MaxAge {
			s.RemoveAgent(id, "old age")
		}
	}
	return nil
}

func lifeStageFor(age float64) ecs.LifeStage {
	switch {
	case age < tuning.ChildToAdultAge:
		return ecs.LifeStageChild
	case age < tuning.AdultToElderAge:
		return ecs.LifeStageAdult
	default:
		return ecs.LifeStageElder
	}
}

// SpawnAgent creates a new agent entity with a full component bundle,
// optionally inheriting traits from two parents (asexual/initial spawn when
// both are empty). Traits are averaged then mutated by ±TraitMutationSpread,
// mirroring the teacher's spawner.inheritTraits.
func (s *LifecycleSystem) SpawnAgent(name string, sex ecs.Sex, x, y float64, zoneID string, fatherID, motherID string) string {
	id := uuid.NewString()
	s.store.RegisterAgent(id)
	if s.tasks != nil {
		s.tasks.RegisterAgent(id)
	}

	traits := s.inheritTraits(fatherID, motherID)
	gen := 0
	if fatherID != "" || motherID != "" {
		if fp, ok := s.store.GetProfile(fatherID); ok {
			gen = fp.Generation + 1
		} else if mp, ok := s.store.GetProfile(motherID); ok {
			gen = mp.Generation + 1
		}
	}

	_ = s.store.SetProfile(id, ecs.Profile{
		Name: name, Sex: sex, AgeYears: 0, LifeStage: ecs.LifeStageChild,
		Generation: gen, Traits: traits, FatherID: fatherID, MotherID: motherID,
	})
	_ = s.store.SetHealth(id, ecs.Health{Current: 100, Max: 100, Regen: 0.1})
	_ = s.store.SetNeeds(id, ecs.Needs{
		Hunger: tuning.NeedInitial, Thirst: tuning.NeedInitial, Energy: tuning.NeedInitial,
		Hygiene: tuning.NeedInitialHygiene, Social: tuning.NeedInitial, Fun: tuning.NeedInitial,
		MentalHealth: tuning.NeedInitialMental,
	})
	_ = s.store.SetTransform(id, ecs.Transform{X: x, Y: y, ZoneID: zoneID})
	_ = s.store.SetMovement(id, ecs.Movement{Speed: tuning.DefaultAgentSpeed, BaseSpeed: tuning.DefaultAgentSpeed})
	_ = s.store.SetInventory(id, ecs.Inventory{Items: make(map[string]ecs.InventoryItem), Capacity: tuning.DefaultCapacity})
	_ = s.store.SetCombat(id, ecs.Combat{BaseDamage: tuning.UnarmedBaseDamage})
	_ = s.store.SetSocial(id, ecs.Social{Relationships: make(map[string]ecs.Relationship)})
	_ = s.store.SetAI(id, ecs.AI{})

	s.bus.Emit(eventbus.AgentBorn, eventbus.AgentBornPayload{AgentID: id, Father: fatherID, Mother: motherID}, s.now())
	return id
}

func (s *LifecycleSystem) inheritTraits(fatherID, motherID string) map[string]float64 {
	names := []string{"cooperation", "aggression", "diligence", "curiosity"}
	out := make(map[string]float64, len(names))
	fp, hasFather := s.store.GetProfile(fatherID)
	mp, hasMother := s.store.GetProfile(motherID)
	for _, n := range names {
		var base float64
		switch {
		case hasFather && hasMother:
			base = (fp.Traits[n] + mp.Traits[n]) / 2
		case hasFather:
			base = fp.Traits[n]
		case hasMother:
			base = mp.Traits[n]
		default:
			base = s.rng.Float64()
		}
		spread := (s.rng.Float64()*2 - 1) * tuning.TraitMutationSpread
		out[n] = clamp(base+spread, 0, 1)
	}
	return out
}

// ImportAgent registers agentID with the task queue after a snapshot
// restore has already populated its components directly via
// ecs.Store.ImportAll. This is the "Lifecycle's import path" SPEC_FULL.md
// §4.10 calls for: Store-level import alone only guarantees component
// data, not the task queue's per-agent bookkeeping.
func (s *LifecycleSystem) ImportAgent(agentID string) {
	if s.tasks != nil {
		s.tasks.RegisterAgent(agentID)
	}
}

// RemoveAgent implements ports.LifecyclePort: removes the agent from the
// Store and task queue and emits agent:removed. Unlike NeedsSystem/
// CombatSystem marking Health.IsDead (a soft death other systems can still
// observe for one tick), RemoveAgent is the hard deletion that follows once
// death has been processed.
func (s *LifecycleSystem) RemoveAgent(agentID, reason string) ports.HandlerResult {
	if !s.store.HasAgent(agentID) {
		return ports.Failed("lifecycle", "unknown agent")
	}
	s.store.RemoveAgent(agentID)
	if s.tasks != nil {
		s.tasks.ClearAgent(agentID)
	}
	s.bus.Emit(eventbus.AgentRemoved, eventbus.AgentRemovedPayload{AgentID: agentID, Reason: reason}, s.now())
	return ports.Completed("lifecycle", nil)
}
