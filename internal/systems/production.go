package systems

import (
	"context"
	"time"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/tuning"
	"github.com/crossroads-sim/worldengine/internal/world"
)

// zoneResource maps a Role to the stockpile kind it draws from and the good
// it deposits, generalizing the teacher's occupationResource/occupationGood
// maps (_examples/tobyjaguar-mini-world/internal/engine/production.go) from
// a fixed hex-resource model to zone-stockpile withdrawals.
var zoneResource = map[ecs.RoleType]string{
	ecs.RoleFarmer: "grain",
	ecs.RoleMiner:  "ore",
	ecs.RoleFisher: "fish",
	ecs.RoleHunter: "furs",
}

// ProductionSystem implements SPEC_FULL.md §4.8.7 (SLOW). On-duty agents
// assigned a resource-producing Role draw from their work zone's stockpile
// each tick; partial draws accumulate in a residual so fractional yields
// aren't lost to integer-like rounding tick over tick, unlike the teacher's
// int(produced) truncation.
type ProductionSystem struct {
	store *ecs.Store
	bus   *eventbus.Bus
	zones *world.ZoneManager
	now   func() int64

	residual map[string]float64 // agentID -> fractional yield carried over
}

// NewProductionSystem returns a ProductionSystem.
func NewProductionSystem(store *ecs.Store, bus *eventbus.Bus, zones *world.ZoneManager, now func() int64) *ProductionSystem {
	return &ProductionSystem{store: store, bus: bus, zones: zones, now: now, residual: make(map[string]float64)}
}

// Update implements scheduler.UpdateFunc.
func (s *ProductionSystem) Update(ctx context.Context, dt time.Duration) error {
	dtSec := dt.Seconds()
	for _, id := range s.store.GetAliveAgents() {
		role, ok := s.store.GetRole(id)
		if !ok || !role.OnDuty || role.WorkZoneID == "" {
			continue
		}
		good, producing := zoneResource[role.RoleType]
		if !producing {
			continue
		}
		efficiency := role.Efficiency
		if efficiency == 0 {
			efficiency = 1
		}
		yield := tuning.BaseYieldPerWorker * efficiency * dtSec
		s.residual[id] += yield
		if s.residual[id] < 1.0 {
			continue
		}
		whole := float64(int(s.residual[id]))
		s.residual[id] -= whole

		spID := role.WorkZoneID + ":" + good
		withdrawn := s.zones.WithdrawFromStockpile(spID, whole)
		if withdrawn <= 0 {
			continue
		}
		inv, hasInv := s.store.GetInventory(id)
		if !hasInv {
			continue
		}
		if inv.Items == nil {
			inv.Items = make(map[string]ecs.InventoryItem)
		}
		item := inv.Items[good]
		item.Quantity += withdrawn
		inv.Items[good] = item
		inv.CurrentLoad += withdrawn
		if err := s.store.SetInventory(id, inv); err != nil {
			continue
		}
		s.bus.Emit(eventbus.ProductionOutput, eventbus.ProductionOutputPayload{
			ZoneID: role.WorkZoneID, Resource: good, Amount: withdrawn,
		}, s.now())
	}
	return nil
}
