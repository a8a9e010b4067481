package systems

import (
	"context"
	"time"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/ports"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

// InventorySystem implements SPEC_FULL.md §4.8.4 (MEDIUM). Grounded on the
// teacher's flat a.Inventory[good] map
// (_examples/tobyjaguar-mini-world/internal/agents/types.go and
// engine/production.go's direct map writes), generalized into a component
// with capacity/weight accounting and an atomic multi-good transfer verb.
// InventorySystem has no periodic Update of its own; it is driven entirely
// by port calls from other systems, so Update is a no-op satisfying
// scheduler.UpdateFunc.
type InventorySystem struct {
	store *ecs.Store
	bus   *eventbus.Bus
	now   func() int64
}

// NewInventorySystem returns an InventorySystem.
func NewInventorySystem(store *ecs.Store, bus *eventbus.Bus, now func() int64) *InventorySystem {
	return &InventorySystem{store: store, bus: bus, now: now}
}

// Update implements scheduler.UpdateFunc; inventory has no decay of its own.
func (s *InventorySystem) Update(ctx context.Context, dt time.Duration) error { return nil }

// AddResource implements ports.InventoryPort.
func (s *InventorySystem) AddResource(agentID, kind string, n float64) ports.HandlerResult {
	inv, ok := s.store.GetInventory(agentID)
	if !ok {
		return ports.Failed("inventory", "agent has no inventory component")
	}
	if n <= 0 {
		return ports.Failed("inventory", "amount must be positive")
	}
	if inv.Items == nil {
		inv.Items = make(map[string]ecs.InventoryItem)
	}
	item := inv.Items[kind]
	item.Quantity += n
	inv.Items[kind] = item
	inv.CurrentLoad += n
	if err := s.store.SetInventory(agentID, inv); err != nil {
		return ports.Failed("inventory", err.Error())
	}
	s.bus.Emit(eventbus.InventoryChanged, eventbus.InventoryChangedPayload{AgentID: agentID, Kind: kind, Delta: n}, s.now())
	return ports.Completed("inventory", inv.Items[kind].Quantity)
}

// RemoveFromAgent implements ports.InventoryPort. It removes up to n of
// kind, returning however much was actually available rather than erroring
// on a partial stack — callers that need an all-or-nothing withdrawal use
// ConsumeFromAgent instead.
func (s *InventorySystem) RemoveFromAgent(agentID, kind string, n float64) (float64, ports.HandlerResult) {
	inv, ok := s.store.GetInventory(agentID)
	if !ok {
		return 0, ports.Failed("inventory", "agent has no inventory component")
	}
	item, has := inv.Items[kind]
	if !has || item.Quantity <= 0 {
		return 0, ports.Failed("inventory", "no "+kind+" held")
	}
	actual := n
	if actual > item.Quantity {
		actual = item.Quantity
	}
	item.Quantity -= actual
	if item.Quantity <= 0 {
		delete(inv.Items, kind)
	} else {
		inv.Items[kind] = item
	}
	inv.CurrentLoad -= actual
	if inv.CurrentLoad < 0 {
		inv.CurrentLoad = 0
	}
	if err := s.store.SetInventory(agentID, inv); err != nil {
		return 0, ports.Failed("inventory", err.Error())
	}
	s.bus.Emit(eventbus.InventoryChanged, eventbus.InventoryChangedPayload{AgentID: agentID, Kind: kind, Delta: -actual}, s.now())
	return actual, ports.Completed("inventory", actual)
}

// ConsumeFromAgent implements ports.InventoryPort: an all-or-nothing
// withdrawal of several goods at once (a crafting recipe's inputs, a
// trade's payment). Nothing is removed unless every amount is available.
func (s *InventorySystem) ConsumeFromAgent(agentID string, amounts map[string]float64) ports.HandlerResult {
	inv, ok := s.store.GetInventory(agentID)
	if !ok {
		return ports.Failed("inventory", "agent has no inventory component")
	}
	for kind, n := range amounts {
		if inv.Items[kind].Quantity < n {
			return ports.Failed("inventory", "insufficient "+kind)
		}
	}
	for kind, n := range amounts {
		item := inv.Items[kind]
		item.Quantity -= n
		if item.Quantity <= 0 {
			delete(inv.Items, kind)
		} else {
			inv.Items[kind] = item
		}
		inv.CurrentLoad -= n
		s.bus.Emit(eventbus.InventoryChanged, eventbus.InventoryChangedPayload{AgentID: agentID, Kind: kind, Delta: -n}, s.now())
	}
	if inv.CurrentLoad < 0 {
		inv.CurrentLoad = 0
	}
	if err := s.store.SetInventory(agentID, inv); err != nil {
		return ports.Failed("inventory", err.Error())
	}
	return ports.Completed("inventory", nil)
}

// TransferBetweenAgents implements ports.InventoryPort: an atomic multi-good
// move from one agent's inventory to another's, bounded by the
// destination's remaining capacity. Either every requested good clears
// both checks and the whole transfer applies, or nothing moves.
func (s *InventorySystem) TransferBetweenAgents(from, to string, amounts map[string]float64) ports.HandlerResult {
	src, ok := s.store.GetInventory(from)
	if !ok {
		return ports.Failed("inventory", "source agent has no inventory component")
	}
	dst, ok := s.store.GetInventory(to)
	if !ok {
		return ports.Failed("inventory", "destination agent has no inventory component")
	}
	var total float64
	for kind, n := range amounts {
		if src.Items[kind].Quantity < n {
			return ports.Failed("inventory", "source lacks "+kind)
		}
		total += n
	}
	cap := dst.Capacity
	if cap == 0 {
		cap = tuning.DefaultCapacity
	}
	if dst.CurrentLoad+total > cap {
		return ports.Failed("inventory", "destination over capacity")
	}

	if dst.Items == nil {
		dst.Items = make(map[string]ecs.InventoryItem)
	}
	for kind, n := range amounts {
		si := src.Items[kind]
		si.Quantity -= n
		if si.Quantity <= 0 {
			delete(src.Items, kind)
		} else {
			src.Items[kind] = si
		}
		di := dst.Items[kind]
		di.Quantity += n
		dst.Items[kind] = di
	}
	src.CurrentLoad -= total
	if src.CurrentLoad < 0 {
		src.CurrentLoad = 0
	}
	dst.CurrentLoad += total

	if err := s.store.SetInventory(from, src); err != nil {
		return ports.Failed("inventory", err.Error())
	}
	if err := s.store.SetInventory(to, dst); err != nil {
		return ports.Failed("inventory", err.Error())
	}
	now := s.now()
	for kind, n := range amounts {
		s.bus.Emit(eventbus.InventoryChanged, eventbus.InventoryChangedPayload{AgentID: from, Kind: kind, Delta: -n}, now)
		s.bus.Emit(eventbus.InventoryChanged, eventbus.InventoryChangedPayload{AgentID: to, Kind: kind, Delta: n}, now)
	}
	return ports.Completed("inventory", nil)
}
