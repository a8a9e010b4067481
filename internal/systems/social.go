package systems

import (
	"context"
	"time"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/ports"
	"github.com/crossroads-sim/worldengine/internal/spatial"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

// SocialSystem implements SPEC_FULL.md §4.8.5 (MEDIUM). Grounded on the
// teacher's internal/engine/relationships.go, generalized from its fixed
// affinity-and-memory model into a Store-backed Relationship map keyed by
// the other agent's id, with passive decay toward zero and proximity-based
// group-formation detection. Being near another agent does not reinforce
// affinity; reinforcement comes only through AddEdge.
type SocialSystem struct {
	store *ecs.Store
	bus   *eventbus.Bus
	grid  *spatial.Grid
	now   func() int64

	groupWindows map[string]int // candidate group key -> ticks seen clustered
}

// NewSocialSystem returns a SocialSystem.
func NewSocialSystem(store *ecs.Store, bus *eventbus.Bus, grid *spatial.Grid, now func() int64) *SocialSystem {
	return &SocialSystem{store: store, bus: bus, grid: grid, now: now, groupWindows: make(map[string]int)}
}

// Update implements scheduler.UpdateFunc: passive affinity decay for every
// known relationship, plus proximity-based group detection.
func (s *SocialSystem) Update(ctx context.Context, dt time.Duration) error {
	dtSec := dt.Seconds()
	step := tuning.AffinityDecayPerSec * dtSec
	for _, id := range s.store.GetAliveAgents() {
		soc, ok := s.store.GetSocial(id)
		if !ok || len(soc.Relationships) == 0 {
			continue
		}
		changed := false
		for other, rel := range soc.Relationships {
			decayed := 0.0 // within one step of zero: settle at zero
			if rel.Affinity > step {
				decayed = rel.Affinity - step
			} else if rel.Affinity < -step {
				decayed = rel.Affinity + step
			}
			if decayed != rel.Affinity {
				rel.Affinity = clamp(decayed, -100, 100)
				soc.Relationships[other] = rel
				changed = true
			}
		}
		if changed {
			_ = s.store.SetSocial(id, soc)
		}
	}
	s.detectGroups()
	return nil
}

// detectGroups flags clusters of mutually-positive-affinity agents who have
// stayed within SocialProximityRadius for GroupFormationWindowTicks
// consecutive ticks, emitting social:group_formed when the count reaches
// the window. A cluster is keyed by its sorted member IDs; a key not seen
// on a tick starts over from zero.
func (s *SocialSystem) detectGroups() {
	seen := make(map[string]bool)
	active := make(map[string]bool)
	for _, id := range s.store.GetAliveAgents() {
		if seen[id] {
			continue
		}
		t, ok := s.store.GetTransform(id)
		if !ok {
			continue
		}
		soc, ok := s.store.GetSocial(id)
		if !ok {
			continue
		}
		nearby := s.grid.QueryRadius(spatial.Point{X: t.X, Y: t.Y}, tuning.SocialProximityRadius)
		var members []string
		for _, n := range nearby {
			if n.ID == id {
				continue
			}
			if rel, known := soc.Relationships[n.ID]; known && rel.Affinity/100.0 >= tuning.GroupAffinityThreshold {
				members = append(members, n.ID)
			}
		}
		if len(members) == 0 {
			continue
		}
		members = append(members, id)
		sortStringsLocal(members)
		key := groupKey(members)
		active[key] = true
		s.groupWindows[key]++
		if s.groupWindows[key] == tuning.GroupFormationWindowTicks {
			s.bus.Emit(eventbus.SocialGroupFormed, eventbus.SocialGroupFormedPayload{Members: members}, s.now())
		}
		for _, m := range members {
			seen[m] = true
		}
	}
	for key := range s.groupWindows {
		if !active[key] {
			delete(s.groupWindows, key)
		}
	}
}

func groupKey(members []string) string {
	var k string
	for _, m := range members {
		k += m + ","
	}
	return k
}

// AddEdge implements ports.SocialPort: records an interaction between a and
// b, reinforcing or souring the relationship on both sides symmetrically.
func (s *SocialSystem) AddEdge(a, b string, delta float64) ports.HandlerResult {
	now := s.now()
	resultA, ok := s.applyEdge(a, b, delta)
	if !ok {
		return ports.Failed("social", "agent "+a+" has no social component")
	}
	if _, ok := s.applyEdge(b, a, delta); !ok {
		return ports.Failed("social", "agent "+b+" has no social component")
	}
	s.bus.Emit(eventbus.SocialInteraction, eventbus.SocialInteractionPayload{A: a, B: b, Delta: delta, Result: resultA}, now)
	return ports.Completed("social", resultA)
}

func (s *SocialSystem) applyEdge(self, other string, delta float64) (float64, bool) {
	soc, ok := s.store.GetSocial(self)
	if !ok {
		return 0, false
	}
	if soc.Relationships == nil {
		soc.Relationships = make(map[string]ecs.Relationship)
	}
	rel := soc.Relationships[other]
	reinforcement := delta
	if delta > 0 {
		reinforcement += tuning.AffinityReinforcePerSec
	}
	rel.Affinity = clamp(rel.Affinity+reinforcement, -100, 100)
	rel.LastInteraction = s.now()
	if rel.Kind == "" {
		rel.Kind = ecs.RelNeutral
	}
	soc.Relationships[other] = rel
	soc.LastSocialInteraction = s.now()
	_ = s.store.SetSocial(self, soc)
	return rel.Affinity, true
}
