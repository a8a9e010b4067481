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

// WorldBounds restricts agent positions; Movement clamps to this box.
type WorldBounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// ZoneLookup resolves a zoneID / entityID to a target position, letting
// MovementSystem serve RequestMoveToZone/RequestMoveToEntity without
// importing the world or ecs packages' concrete zone catalog directly
// beyond the small functions it needs.
type ZoneLookup interface {
	ZonePosition(zoneID string) (x, y float64, ok bool)
}

// MovementSystem implements SPEC_FULL.md §4.8.2 (FAST). Grounded on the
// teacher's general tick-driven per-agent update loop shape
// (_examples/tobyjaguar-mini-world/internal/engine/simulation.go's
// TickMinute), since the teacher has no dedicated movement module of its
// own — this is authored fresh in that file's idiom (small per-tick
// per-agent steps, explicit clamp helpers).
type MovementSystem struct {
	store  *ecs.Store
	bus    *eventbus.Bus
	now    func() int64
	bounds WorldBounds
	zones  ZoneLookup
	log    *slog.Logger
}

// NewMovementSystem returns a MovementSystem.
func NewMovementSystem(store *ecs.Store, bus *eventbus.Bus, now func() int64, bounds WorldBounds, zones ZoneLookup, log *slog.Logger) *MovementSystem {
	return &MovementSystem{store: store, bus: bus, now: now, bounds: bounds, zones: zones, log: log}
}

// RequestMove implements ports.MovementPort.
func (s *MovementSystem) RequestMove(agentID string, x, y float64) ports.HandlerResult {
	if x < s.bounds.MinX || x > s.bounds.MaxX || y < s.bounds.MinY || y > s.bounds.MaxY {
		s.bus.Emit(eventbus.MovementFailed, eventbus.MovementFailedPayload{AgentID: agentID, Reason: "out of bounds"}, s.now())
		return ports.Failed("movement", "target out of bounds")
	}
	m, ok := s.store.GetMovement(agentID)
	if !ok {
		return ports.Failed("movement", "agent has no movement component")
	}
	m.IsMoving = true
	m.TargetX, m.TargetY = x, y
	m.TargetZoneID, m.TargetEntity = "", ""
	m.Waypoints = []ecs.Point{{X: x, Y: y}}
	m.WaypointIndex = 0
	if m.Speed == 0 {
		m.Speed = tuning.DefaultAgentSpeed
		m.BaseSpeed = tuning.DefaultAgentSpeed
	}
	if err := s.store.SetMovement(agentID, m); err != nil {
		return ports.Failed("movement", err.Error())
	}
	return ports.Completed("movement", nil)
}

// RequestMoveToZone implements ports.MovementPort.
func (s *MovementSystem) RequestMoveToZone(agentID, zoneID string) ports.HandlerResult {
	if s.zones == nil {
		return ports.Failed("movement", "no zone lookup configured")
	}
	x, y, ok := s.zones.ZonePosition(zoneID)
	if !ok {
		s.bus.Emit(eventbus.MovementFailed, eventbus.MovementFailedPayload{AgentID: agentID, Reason: "unknown zone"}, s.now())
		return ports.Failed("movement", "unknown zone "+zoneID)
	}
	res := s.RequestMove(agentID, x, y)
	if res.Status == ports.StatusCompleted {
		m, _ := s.store.GetMovement(agentID)
		m.TargetZoneID = zoneID
		_ = s.store.SetMovement(agentID, m)
	}
	return res
}

// RequestMoveToEntity implements ports.MovementPort.
func (s *MovementSystem) RequestMoveToEntity(agentID, targetID string) ports.HandlerResult {
	t, ok := s.store.GetTransform(targetID)
	if !ok {
		s.bus.Emit(eventbus.MovementFailed, eventbus.MovementFailedPayload{AgentID: agentID, Reason: "unknown target entity"}, s.now())
		return ports.Failed("movement", "unknown entity "+targetID)
	}
	res := s.RequestMove(agentID, t.X, t.Y)
	if res.Status == ports.StatusCompleted {
		m, _ := s.store.GetMovement(agentID)
		m.TargetEntity = targetID
		_ = s.store.SetMovement(agentID, m)
	}
	return res
}

// StopMovement implements ports.MovementPort.
func (s *MovementSystem) StopMovement(agentID string) ports.HandlerResult {
	m, ok := s.store.GetMovement(agentID)
	if !ok {
		return ports.Failed("movement", "agent has no movement component")
	}
	m.IsMoving = false
	m.Waypoints = nil
	m.WaypointIndex = 0
	if err := s.store.SetMovement(agentID, m); err != nil {
		return ports.Failed("movement", err.Error())
	}
	return ports.Completed("movement", nil)
}

// Update implements scheduler.UpdateFunc.
func (s *MovementSystem) Update(ctx context.Context, dt time.Duration) error {
	dtSec := dt.Seconds()
	for _, id := range s.store.GetAgentsMoving() {
		m, ok := s.store.GetMovement(id)
		if !ok || !m.IsMoving {
			continue
		}
		t, ok := s.store.GetTransform(id)
		if !ok {
			continue
		}
		if m.WaypointIndex >= len(m.Waypoints) {
			s.arrive(id, &m, &t)
			continue
		}
		wp := m.Waypoints[m.WaypointIndex]
		dist := ecs.Distance(t.X, t.Y, wp.X, wp.Y)

		effectiveSpeed := m.Speed * (1 - m.Fatigue*tuning.FatigueSpeedPenalty)
		if effectiveSpeed < 0 {
			effectiveSpeed = 0
		}
		step := effectiveSpeed * dtSec

		if dist <= tuning.ArrivalRadius || step >= dist {
			t.X, t.Y = wp.X, wp.Y
			m.WaypointIndex++
		} else {
			ratio := step / dist
			t.X += (wp.X - t.X) * ratio
			t.Y += (wp.Y - t.Y) * ratio
		}

		t.X = clamp(t.X, s.bounds.MinX, s.bounds.MaxX)
		t.Y = clamp(t.Y, s.bounds.MinY, s.bounds.MaxY)

		m.Fatigue = clamp(m.Fatigue+tuning.FatigueGainPerSec*dtSec, 0, 1)

		if m.WaypointIndex >= len(m.Waypoints) {
			s.arrive(id, &m, &t)
			continue
		}

		_ = s.store.SetTransform(id, t)
		_ = s.store.SetMovement(id, m)
	}

	// Agents not moving recover fatigue.
	for _, id := range s.store.GetAllAgentIDs() {
		m, ok := s.store.GetMovement(id)
		if !ok || m.IsMoving || m.Fatigue == 0 {
			continue
		}
		m.Fatigue = clamp(m.Fatigue-tuning.FatigueDecayPerSec*dtSec, 0, 1)
		_ = s.store.SetMovement(id, m)
	}
	return nil
}

func (s *MovementSystem) arrive(id string, m *ecs.Movement, t *ecs.Transform) {
	m.IsMoving = false
	m.Waypoints = nil
	m.WaypointIndex = 0
	_ = s.store.SetTransform(id, *t)
	_ = s.store.SetMovement(id, *m)
	s.bus.Emit(eventbus.MovementArrived, eventbus.MovementArrivedPayload{
		AgentID: id, X: t.X, Y: t.Y,
	}, s.now())
}
