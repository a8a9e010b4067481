package systems

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/spatial"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

// AnimalState is the animal FSM, one-way only in the sense that "dead" is
// terminal; every other transition is re-evaluated each tick by priority.
type AnimalState string

const (
	AnimalIdle         AnimalState = "idle"
	AnimalWandering    AnimalState = "wandering"
	AnimalFleeing      AnimalState = "fleeing"
	AnimalHunting      AnimalState = "hunting"
	AnimalSeekingFood  AnimalState = "seeking_food"
	AnimalSeekingWater AnimalState = "seeking_water"
	AnimalEating       AnimalState = "eating"
	AnimalDrinking     AnimalState = "drinking"
	AnimalMating       AnimalState = "mating"
	AnimalDead         AnimalState = "dead"
)

// Animal is one non-agent creature. Intentionally not an ecs.Store entity:
// animals never carry the agent component taxonomy (no Profile/Role/AI),
// so they get their own flat struct and their own spatial grid, mirroring
// the Tier 0 agent's needs-priority decision style
// (_examples/tobyjaguar-mini-world/internal/agents/behavior.go's
// Tier0Decide/decideSurvival priority cascade) but over an animal-specific
// state set rather than agent Actions.
type Animal struct {
	ID       string
	Species  string
	X, Y     float64
	Hunger   float64
	Thirst   float64
	Libido   float64
	State    AnimalState
	Predator bool // predators hunt prey animals; prey flee predators and agents
	Age      float64
}

type predatorCacheEntry struct {
	id       string
	cachedAt int64
}

// AnimalSystem implements SPEC_FULL.md §4.8.11 (MEDIUM).
type AnimalSystem struct {
	bus *eventbus.Bus
	now func() int64
	rng *rand.Rand

	grid        *spatial.Grid // animals' own 256-unit-cell grid
	agentGrid   *spatial.Grid // shared with CombatSystem/SocialSystem, read-only here
	animals     map[string]*Animal
	maxAnimals  int

	nearestPredatorCache map[string]predatorCacheEntry
	cacheSampledAt       int64
}

// NewAnimalSystem returns an AnimalSystem. agentGrid is the shared
// agent-position index (read-only from here, used only to let prey flee
// from nearby agents); it may be nil if agent proximity
// shouldn't affect animal behavior.
func NewAnimalSystem(bus *eventbus.Bus, now func() int64, seed int64, agentGrid *spatial.Grid, maxAnimals int) *AnimalSystem {
	return &AnimalSystem{
		bus: bus, now: now, rng: rand.New(rand.NewSource(seed)),
		grid: spatial.New(tuning.AnimalCellSize), agentGrid: agentGrid,
		animals: make(map[string]*Animal), maxAnimals: maxAnimals,
		nearestPredatorCache: make(map[string]predatorCacheEntry),
	}
}

// SpawnAnimal creates a new animal at (x, y). Called at simulation start
// and dynamically in response to chunk:rendered (see OnChunkRendered).
func (s *AnimalSystem) SpawnAnimal(species string, x, y float64, predator bool) string {
	if len(s.animals) >= s.maxAnimals {
		return ""
	}
	id := uuid.NewString()
	s.animals[id] = &Animal{
		ID: id, Species: species, X: x, Y: y, Predator: predator,
		Hunger: 50, Thirst: 50, State: AnimalIdle,
	}
	s.grid.Insert(id, x, y)
	return id
}

// OnChunkRendered is the chunk:rendered handler that spawns a small, seed-
// deterministic batch of animals into a freshly generated chunk.
func (s *AnimalSystem) OnChunkRendered(ev eventbus.Event) {
	p, ok := ev.Payload.(eventbus.ChunkRenderedPayload)
	if !ok {
		return
	}
	count := s.rng.Intn(3)
	for i := 0; i < count; i++ {
		x := float64(p.ChunkX*16) + s.rng.Float64()*16
		y := float64(p.ChunkY*16) + s.rng.Float64()*16
		predator := s.rng.Float64() < 0.2
		species := "deer"
		if predator {
			species = "wolf"
		}
		s.SpawnAnimal(species, x, y, predator)
	}
}

// Update implements scheduler.UpdateFunc: rebuilds the animal grid, then
// evaluates the priority FSM for every live animal: flee > hunt (predators,
// hunger-critical) > forage (prey, hunger-critical) > seek water
// (thirst-critical) > mate (libido) > idle/wander.
func (s *AnimalSystem) Update(ctx context.Context, dt time.Duration) error {
	dtSec := dt.Seconds()
	s.grid.Clear()
	for id, a := range s.animals {
		if a.State == AnimalDead {
			continue
		}
		s.grid.Insert(id, a.X, a.Y)
	}

	now := s.now()
	for id, a := range s.animals {
		if a.State == AnimalDead {
			continue
		}
		a.Age += dtSec
		a.Hunger = clamp(a.Hunger-1.5*dtSec, 0, 100)
		a.Thirst = clamp(a.Thirst-2.0*dtSec, 0, 100)
		a.Libido = clamp(a.Libido+0.3*dtSec, 0, 100)

		if a.Hunger <= 0 {
			s.kill(id, a, "starvation")
			continue
		}
		if a.Thirst <= 0 {
			s.kill(id, a, "dehydration")
			continue
		}
		if a.Age > 365*3 { // max lifespan: 1095 simulated seconds (36.5 sim-years at tuning.SecondsPerSimYear)
			s.kill(id, a, "old_age")
			continue
		}

		s.decide(id, a, now, dtSec)
	}
	return nil
}

func (s *AnimalSystem) decide(id string, a *Animal, now int64, dtSec float64) {
	if fleeTarget, ok := s.nearestThreat(id, a, now); ok {
		a.State = AnimalFleeing
		s.moveAway(a, fleeTarget, dtSec)
		return
	}
	if a.Predator && a.Hunger < tuning.AnimalHungerCritical {
		if prey, ok := s.nearestPrey(id, a); ok {
			a.State = AnimalHunting
			s.moveToward(a, prey, dtSec)
			if s.distanceTo(a, prey) < 1.0 {
				s.huntKill(id, prey.ID, "")
			}
			return
		}
	}
	if !a.Predator && a.Hunger < tuning.AnimalHungerCritical {
		a.State = AnimalSeekingFood
		a.Hunger = clamp(a.Hunger+5*dtSec, 0, 100)
		return
	}
	if a.Thirst < tuning.AnimalThirstCritical {
		a.State = AnimalSeekingWater
		a.Thirst = clamp(a.Thirst+5*dtSec, 0, 100)
		return
	}
	if a.Libido > 80 {
		a.State = AnimalMating
		a.Libido = 0
		return
	}
	a.State = AnimalWandering
	a.X += (s.rng.Float64()*2 - 1) * dtSec * 2
	a.Y += (s.rng.Float64()*2 - 1) * dtSec * 2
}

// nearestThreat returns, for prey, the nearest predator (from a short-TTL
// cache, tuning.AnimalLookupCacheTTL, refreshed only when stale) or else
// the first agent found near it on the agent grid. Only the predator
// lookup is cached; the agent lookup queries the grid on every call, and
// there is no nearest-food lookup.
func (s *AnimalSystem) nearestThreat(id string, a *Animal, now int64) (spatial.Entry, bool) {
	if entry, ok := s.cachedNearestPredator(id, a, now); ok {
		return entry, true
	}
	if !a.Predator && s.agentGrid != nil {
		nearby := s.agentGrid.QueryRadius(spatial.Point{X: a.X, Y: a.Y}, tuning.EngagementRadiusUnarmed*3)
		if len(nearby) > 0 {
			return nearby[0], true
		}
	}
	return spatial.Entry{}, false
}

func (s *AnimalSystem) cachedNearestPredator(id string, a *Animal, now int64) (spatial.Entry, bool) {
	if a.Predator {
		return spatial.Entry{}, false
	}
	if cached, ok := s.nearestPredatorCache[id]; ok && now-cached.cachedAt < tuning.AnimalLookupCacheTTL.Milliseconds() {
		if other, ok := s.animals[cached.id]; ok && other.State != AnimalDead {
			return spatial.Entry{ID: cached.id, Pos: spatial.Point{X: other.X, Y: other.Y}}, true
		}
	}
	nearby := s.grid.QueryRadius(spatial.Point{X: a.X, Y: a.Y}, tuning.AnimalCellSize/4)
	for _, e := range nearby {
		if e.ID == id {
			continue
		}
		other, ok := s.animals[e.ID]
		if !ok || !other.Predator || other.State == AnimalDead {
			continue
		}
		s.nearestPredatorCache[id] = predatorCacheEntry{id: e.ID, cachedAt: now}
		return e, true
	}
	return spatial.Entry{}, false
}

func (s *AnimalSystem) nearestPrey(selfID string, a *Animal) (*Animal, bool) {
	nearby := s.grid.QueryRadius(spatial.Point{X: a.X, Y: a.Y}, tuning.AnimalCellSize/4)
	for _, e := range nearby {
		if e.ID == selfID {
			continue
		}
		other, ok := s.animals[e.ID]
		if !ok || other.Predator || other.State == AnimalDead {
			continue
		}
		return other, true
	}
	return nil, false
}

func (s *AnimalSystem) distanceTo(a *Animal, other *Animal) float64 {
	return ecs.Distance(a.X, a.Y, other.X, other.Y)
}

func (s *AnimalSystem) moveToward(a *Animal, target spatial.Entry, dtSec float64) {
	s.step(a, target.Pos.X, target.Pos.Y, dtSec, 1)
}

func (s *AnimalSystem) moveAway(a *Animal, threat spatial.Entry, dtSec float64) {
	s.step(a, threat.Pos.X, threat.Pos.Y, dtSec, -1.5)
}

func (s *AnimalSystem) step(a *Animal, tx, ty float64, dtSec, dir float64) {
	dx, dy := tx-a.X, ty-a.Y
	dist := ecs.Distance(a.X, a.Y, tx, ty)
	if dist < 0.001 {
		return
	}
	speed := 3.0 * dtSec * dir
	a.X += dx / dist * speed
	a.Y += dy / dist * speed
}

func (s *AnimalSystem) kill(id string, a *Animal, cause string) {
	a.State = AnimalDead
	delete(s.animals, id)
	s.bus.Emit(eventbus.AnimalDied, eventbus.AnimalDiedPayload{AnimalID: id, Cause: cause}, s.now())
}

// HuntedBy is called by CombatSystem (or any agent-facing hunting action)
// when an agent successfully kills an animal; it emits both animal:died
// and animal:hunted, per SPEC_FULL.md §4.8.11.
func (s *AnimalSystem) HuntedBy(animalID, hunterID string) bool {
	a, ok := s.animals[animalID]
	if !ok || a.State == AnimalDead {
		return false
	}
	s.huntKill(animalID, "", hunterID)
	return true
}

func (s *AnimalSystem) huntKill(animalID, preyID, hunterID string) {
	target := animalID
	if preyID != "" {
		target = preyID
	}
	a, ok := s.animals[target]
	if !ok {
		return
	}
	a.State = AnimalDead
	delete(s.animals, target)
	now := s.now()
	s.bus.Emit(eventbus.AnimalDied, eventbus.AnimalDiedPayload{AnimalID: target, Cause: "hunted"}, now)
	if hunterID != "" {
		s.bus.Emit(eventbus.AnimalHunted, eventbus.AnimalHuntedPayload{AnimalID: target, HunterID: hunterID}, now)
	}
}

// Count returns the number of living animals.
func (s *AnimalSystem) Count() int { return len(s.animals) }

// Snapshot returns a copy of every living animal, for the Snapshot
// Serializer.
func (s *AnimalSystem) Snapshot() []Animal {
	out := make([]Animal, 0, len(s.animals))
	for _, a := range s.animals {
		out = append(out, *a)
	}
	return out
}
