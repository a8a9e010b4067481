package systems

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/ports"
)

// toolPriority ranks roles for preemption: a higher-priority role claiming
// a fully-allocated tool kind can bump a lower-priority holder.
var toolPriority = map[ecs.RoleType]int{
	ecs.RoleGuard:    5,
	ecs.RoleCrafter:  4,
	ecs.RoleMiner:    3,
	ecs.RoleFarmer:   3,
	ecs.RoleFisher:   3,
	ecs.RoleHunter:   2,
	ecs.RoleMerchant: 1,
	ecs.RoleNone:     0,
}

type tool struct {
	id      string
	kind    string
	holder  string // agentID, "" if idle
}

// EquipmentSystem implements the supplemental EquipmentSystem of
// SPEC_FULL.md §4.8.12: per-agent equipped slots plus a shared tool pool
// with claim/return semantics, generalized from the teacher's worker-set
// management style (_examples/tobyjaguar-mini-world/internal/engine/
// production.go's per-zone worker assignment) to a role-priority-ordered
// preemptive tool pool.
type EquipmentSystem struct {
	store *ecs.Store
	bus   *eventbus.Bus
	now   func() int64

	mu    sync.Mutex
	pool  map[string]*tool // toolID -> tool
	byKind map[string][]string // kind -> toolIDs
}

// NewEquipmentSystem returns an EquipmentSystem.
func NewEquipmentSystem(store *ecs.Store, bus *eventbus.Bus, now func() int64) *EquipmentSystem {
	return &EquipmentSystem{
		store: store, bus: bus, now: now,
		pool: make(map[string]*tool), byKind: make(map[string][]string),
	}
}

// ProvisionTool adds n new idle tools of kind to the shared pool (called
// once at world setup by cmd/worldsim).
func (s *EquipmentSystem) ProvisionTool(kind string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		id := uuid.NewString()
		s.pool[id] = &tool{id: id, kind: kind}
		s.byKind[kind] = append(s.byKind[kind], id)
	}
}

// ClaimTool implements ports.EquipmentPort: prefers an idle tool of kind;
// if none is idle, preempts the lowest-role-priority current holder whose
// role ranks below the requester's.
func (s *EquipmentSystem) ClaimTool(agentID, kind string) ports.HandlerResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byKind[kind]
	for _, id := range ids {
		t := s.pool[id]
		if t.holder == "" {
			s.assign(agentID, t)
			return ports.Completed("equipment", t.id)
		}
	}

	requesterRole, _ := s.store.GetRole(agentID)
	requesterRank := toolPriority[requesterRole.RoleType]
	var weakest *tool
	weakestRank := requesterRank
	for _, id := range ids {
		t := s.pool[id]
		holderRole, _ := s.store.GetRole(t.holder)
		rank := toolPriority[holderRole.RoleType]
		if rank < weakestRank {
			weakestRank = rank
			weakest = t
		}
	}
	if weakest == nil {
		return ports.Failed("equipment", "no "+kind+" available and none preemptible")
	}
	s.free(weakest.holder, weakest)
	s.assign(agentID, weakest)
	return ports.Completed("equipment", weakest.id)
}

func (s *EquipmentSystem) assign(agentID string, t *tool) {
	t.holder = agentID
	eq, _ := s.store.GetEquipment(agentID)
	eq.ToolID = t.id
	_ = s.store.SetEquipment(agentID, eq)
	s.bus.Emit(eventbus.EquipmentClaimed, eventbus.EquipmentClaimedPayload{AgentID: agentID, Kind: t.kind, ToolID: t.id}, s.now())
}

func (s *EquipmentSystem) free(agentID string, t *tool) {
	if agentID == "" {
		return
	}
	t.holder = ""
	eq, ok := s.store.GetEquipment(agentID)
	if ok && eq.ToolID == t.id {
		eq.ToolID = ""
		_ = s.store.SetEquipment(agentID, eq)
	}
	s.bus.Emit(eventbus.EquipmentReturned, eventbus.EquipmentReturnedPayload{AgentID: agentID, ToolID: t.id}, s.now())
}

// ReturnTool implements ports.EquipmentPort: frees whatever tool agentID
// currently holds.
func (s *EquipmentSystem) ReturnTool(agentID string) ports.HandlerResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	eq, ok := s.store.GetEquipment(agentID)
	if !ok || eq.ToolID == "" {
		return ports.Failed("equipment", "agent holds no tool")
	}
	t, ok := s.pool[eq.ToolID]
	if !ok {
		return ports.Failed("equipment", "unknown tool")
	}
	s.free(agentID, t)
	return ports.Completed("equipment", nil)
}

// Update implements scheduler.UpdateFunc; EquipmentSystem's state only
// changes through ClaimTool/ReturnTool, so there is no per-tick sweep.
func (s *EquipmentSystem) Update(ctx context.Context, dt time.Duration) error { return nil }
