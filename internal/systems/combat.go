package systems

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/ports"
	"github.com/crossroads-sim/worldengine/internal/spatial"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

// CombatLogEntry is one ring-buffer record of a resolved attack.
type CombatLogEntry struct {
	AttackerID, TargetID string
	Damage               float64
	Tick                 int64
}

// CombatSystem implements SPEC_FULL.md §4.8.3 (MEDIUM). The
// candidates-within-radius -> shouldAttack -> resolve -> emit shape is
// grounded on nicoberrocal-galaxyCore's ship engagement-resolution
// pipeline (ships/formation_combat.go), generalized from Mongo-backed
// ship stacks to Store-backed agents; the deterministic
// probability-gate-from-ids style is grounded on the teacher's
// internal/engine/crime.go.
type CombatSystem struct {
	store     *ecs.Store
	bus       *eventbus.Bus
	grid      *spatial.Grid
	now       func() int64
	lifecycle ports.LifecyclePort
	rng       *rand.Rand
	log       *slog.Logger

	logMu sync.Mutex
	ring  []CombatLogEntry
}

// NewCombatSystem returns a CombatSystem. lifecycle may be nil at
// construction and wired in later via SetLifecyclePort once the Registry
// has resolved it (breaks a construction-order cycle between Combat and
// Lifecycle).
func NewCombatSystem(store *ecs.Store, bus *eventbus.Bus, grid *spatial.Grid, now func() int64, seed int64, log *slog.Logger) *CombatSystem {
	return &CombatSystem{
		store: store, bus: bus, grid: grid, now: now,
		rng: rand.New(rand.NewSource(seed)), log: log,
	}
}

// SetLifecyclePort wires the LifecyclePort used to delegate agent removal
// on a kill.
func (s *CombatSystem) SetLifecyclePort(p ports.LifecyclePort) { s.lifecycle = p }

// Equip implements ports.CombatPort.
func (s *CombatSystem) Equip(agentID, weaponID string) ports.HandlerResult {
	c, ok := s.store.GetCombat(agentID)
	if !ok {
		return ports.Failed("combat", "agent has no combat component")
	}
	c.EquippedWeapon = weaponID
	if err := s.store.SetCombat(agentID, c); err != nil {
		return ports.Failed("combat", err.Error())
	}
	s.bus.Emit(eventbus.CombatWeaponEquipped, eventbus.CombatWeaponEquippedPayload{AgentID: agentID, WeaponID: weaponID}, s.now())
	return ports.Completed("combat", nil)
}

// CraftWeapon implements ports.CombatPort. Resource consumption for
// crafting is delegated to the caller (RecipeDiscovery/Inventory);
// CombatSystem only records the resulting equip and emits the craft
// event.
func (s *CombatSystem) CraftWeapon(agentID, weaponID string) ports.HandlerResult {
	res := s.Equip(agentID, weaponID)
	if res.Status == ports.StatusCompleted {
		s.bus.Emit(eventbus.CombatWeaponCrafted, eventbus.CombatWeaponCraftedPayload{AgentID: agentID, WeaponID: weaponID}, s.now())
	}
	return res
}

// IsInCombat implements ports.CombatPort.
func (s *CombatSystem) IsInCombat(agentID string) bool {
	c, ok := s.store.GetCombat(agentID)
	return ok && c.IsInCombat
}

// CombatLog returns a copy of the bounded combat log, most recent last.
func (s *CombatSystem) CombatLog() []CombatLogEntry {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	out := make([]CombatLogEntry, len(s.ring))
	copy(out, s.ring)
	return out
}

func (s *CombatSystem) appendLog(e CombatLogEntry) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	s.ring = append(s.ring, e)
	if len(s.ring) > tuning.CombatLogCapacity {
		s.ring = s.ring[len(s.ring)-tuning.CombatLogCapacity:]
	}
}

// Update implements scheduler.UpdateFunc.
func (s *CombatSystem) Update(ctx context.Context, dt time.Duration) error {
	now := s.now()
	for _, attackerID := range s.store.GetAliveAgents() {
		attackerCombat, ok := s.store.GetCombat(attackerID)
		if !ok {
			continue
		}
		t, ok := s.store.GetTransform(attackerID)
		if !ok {
			continue
		}
		cooldown := attackerCombat.Cooldown
		if cooldown == 0 {
			cooldown = tuning.UnarmedCooldown.Milliseconds()
		}
		if now-attackerCombat.LastAttackAt < cooldown {
			continue
		}

		radius := tuning.EngagementRadiusUnarmed
		candidates := s.grid.QueryRadius(spatial.Point{X: t.X, Y: t.Y}, radius)
		for _, cand := range candidates {
			if cand.ID == attackerID {
				continue
			}
			if s.resolveAttempt(attackerID, cand.ID, &attackerCombat, now) {
				break // at most one attack per tick per agent
			}
		}
	}
	return nil
}

func (s *CombatSystem) resolveAttempt(attackerID, targetID string, attacker *ecs.Combat, now int64) bool {
	targetHealth, ok := s.store.GetHealth(targetID)
	if !ok || targetHealth.IsDead {
		return false // no-op against an already-dead (or non-existent) target
	}
	attackerProfile, _ := s.store.GetProfile(attackerID)
	if !s.shouldAttack(attackerID, targetID, attackerProfile, *attacker) {
		return false
	}

	attacker.LastAttackAt = now
	attacker.IsInCombat = true
	_ = s.store.SetCombat(attackerID, *attacker)

	s.bus.Emit(eventbus.CombatEngaged, eventbus.CombatEngagedPayload{AttackerID: attackerID, TargetID: targetID}, now)

	base := attacker.BaseDamage
	if base == 0 {
		base = tuning.UnarmedBaseDamage
	}
	aggression := attackerProfile.Traits["aggression"]
	jitter := 0.85 + s.rng.Float64()*0.3
	critical := s.rng.Float64() < tuning.CritChance
	multiplier := 0.5 + aggression*0.5
	damage := base * jitter * multiplier
	if critical {
		damage *= tuning.CritMultiplier
	}

	targetHealth.Current = clamp(targetHealth.Current-damage, 0, targetHealth.Max)
	targetHealth.LastDamageAt = now
	_ = s.store.SetHealth(targetID, targetHealth)

	s.appendLog(CombatLogEntry{AttackerID: attackerID, TargetID: targetID, Damage: damage, Tick: now})
	s.bus.Emit(eventbus.CombatHit, eventbus.CombatHitPayload{
		AttackerID: attackerID, TargetID: targetID, Damage: damage,
		RemainingHealth: targetHealth.Current, Critical: critical,
	}, now)

	if targetHealth.Current <= 0 {
		targetHealth.IsDead = true
		_ = s.store.SetHealth(targetID, targetHealth)
		s.bus.Emit(eventbus.CombatKill, eventbus.CombatKillPayload{AttackerID: attackerID, TargetID: targetID}, now)
		if s.lifecycle != nil {
			s.lifecycle.RemoveAgent(targetID, "killed in combat")
		}
	}
	return true
}

// shouldAttack mirrors SPEC_FULL.md §4.8.3: a target is attacked if it has
// no Social component (treated as an animal-equivalent target with no
// diplomacy), OR the attacker's affinity toward it is hostile, OR the
// attacker's aggression clears the threshold with a small random gate.
func (s *CombatSystem) shouldAttack(attackerID, targetID string, attackerProfile ecs.Profile, attacker ecs.Combat) bool {
	if !attacker.Aggressive && attackerProfile.Traits["aggression"] < tuning.AggressionAttackGate {
		if _, targetHasSocial := s.store.GetSocial(targetID); !targetHasSocial {
			return true // no diplomacy state at all: treat as a wild target
		}
		social, _ := s.store.GetSocial(attackerID)
		rel, known := social.Relationships[targetID]
		if known && rel.Affinity/100.0 <= tuning.HostilityThreshold {
			return true
		}
		return false
	}
	return s.rng.Float64() < 0.5+attackerProfile.Traits["aggression"]*0.5
}
