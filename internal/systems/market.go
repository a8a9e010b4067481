package systems

import (
	"context"
	"sync"
	"time"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/ports"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

// MarketEntry is the supply/demand state for one good in one settlement.
// Grounded directly on the teacher's economy.MarketEntry
// (_examples/tobyjaguar-mini-world/internal/economy/goods.go), generalized
// from fixed-constant (phi.Agnosis/phi.Totality) floor/ceiling ratios to
// named tuning constants.
type MarketEntry struct {
	Good      string
	Supply    float64
	Demand    float64
	Price     float64
	BasePrice float64
}

// ResolvePrice mirrors the teacher's MarketEntry.ResolvePrice: price tracks
// the demand/supply ratio, seasonally and regionally modulated, bounded by
// a floor (cost to produce) and ceiling (no runaway hyperinflation).
func (e *MarketEntry) ResolvePrice(seasonalMod, regionalMod float64) float64 {
	supply := e.Supply
	if supply < tuning.PriceFloorRatio {
		supply = tuning.PriceFloorRatio
	}
	price := e.BasePrice * (e.Demand / supply) * seasonalMod * regionalMod
	floor := e.BasePrice * tuning.PriceFloorRatio
	ceiling := e.BasePrice * tuning.PriceCeilingRatio
	if price < floor {
		price = floor
	}
	if price > ceiling {
		price = ceiling
	}
	return price
}

var basePrices = map[string]float64{
	"grain": 2, "fish": 2, "timber": 3, "ore": 4, "stone": 3,
	"furs": 6, "tools": 10, "weapons": 15, "herbs": 5,
}

// Market is one settlement's trading post.
type Market struct {
	SettlementID string
	Entries      map[string]*MarketEntry
}

func newMarket(settlementID string) *Market {
	entries := make(map[string]*MarketEntry, len(basePrices))
	for good, base := range basePrices {
		entries[good] = &MarketEntry{Good: good, Supply: 1, Demand: 1, Price: base, BasePrice: base}
	}
	return &Market{SettlementID: settlementID, Entries: entries}
}

// TreasuryLedger is the minimal capability MarketSystem needs from
// GovernanceSystem's settlements, kept narrow so Market doesn't import the
// society package's full Settlement type.
type TreasuryLedger interface {
	Credit(settlementID string, amount float64)
	Debit(settlementID string, amount float64) bool
}

// MarketSystem implements SPEC_FULL.md §4.8.9 (SLOW).
type MarketSystem struct {
	store    *ecs.Store
	ledger   TreasuryLedger
	seasonal func() float64

	mu      sync.Mutex
	markets map[string]*Market
}

// NewMarketSystem returns a MarketSystem. seasonal, if non-nil, supplies a
// per-tick seasonal price modifier; nil means no seasonal effect.
func NewMarketSystem(store *ecs.Store, ledger TreasuryLedger, seasonal func() float64) *MarketSystem {
	return &MarketSystem{store: store, ledger: ledger, seasonal: seasonal, markets: make(map[string]*Market)}
}

func (s *MarketSystem) marketFor(settlementID string) *Market {
	m, ok := s.markets[settlementID]
	if !ok {
		m = newMarket(settlementID)
		s.markets[settlementID] = m
	}
	return m
}

// Update implements scheduler.UpdateFunc: floors every entry's supply and
// demand at 1 and re-resolves its price (seasonal modifier applied,
// regional modifier 1). Supply and demand change only through SellResource
// and BuyResource; Update does not recompute them from agents or stockpiles.
func (s *MarketSystem) Update(ctx context.Context, dt time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seasonMod := 1.0
	if s.seasonal != nil {
		seasonMod = s.seasonal()
	}
	for _, m := range s.markets {
		for _, entry := range m.Entries {
			if entry.Supply < 1 {
				entry.Supply = 1
			}
			if entry.Demand < 1 {
				entry.Demand = 1
			}
			entry.Price = entry.ResolvePrice(seasonMod, 1.0)
		}
	}
	return nil
}

// BuyResource implements ports.TradePort: agent pays price*n from personal
// funds tracked in their "coin" inventory stack, receives n of kind.
func (s *MarketSystem) BuyResource(agentID, settlementID, kind string, n float64) ports.HandlerResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.marketFor(settlementID)
	entry, ok := m.Entries[kind]
	if !ok {
		return ports.Failed("market", "unknown good "+kind)
	}
	cost := entry.Price * n
	inv, ok := s.store.GetInventory(agentID)
	if !ok {
		return ports.Failed("market", "agent has no inventory component")
	}
	coin := inv.Items["coin"]
	if coin.Quantity < cost {
		return ports.Failed("market", "insufficient funds")
	}
	coin.Quantity -= cost
	inv.Items["coin"] = coin
	good := inv.Items[kind]
	good.Quantity += n
	inv.Items[kind] = good
	if err := s.store.SetInventory(agentID, inv); err != nil {
		return ports.Failed("market", err.Error())
	}
	entry.Demand += n
	if s.ledger != nil {
		s.ledger.Credit(settlementID, cost)
	}
	return ports.Completed("market", entry.Price)
}

// SellResource implements ports.TradePort: the inverse of BuyResource.
func (s *MarketSystem) SellResource(agentID, settlementID, kind string, n float64) ports.HandlerResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.marketFor(settlementID)
	entry, ok := m.Entries[kind]
	if !ok {
		return ports.Failed("market", "unknown good "+kind)
	}
	inv, ok := s.store.GetInventory(agentID)
	if !ok {
		return ports.Failed("market", "agent has no inventory component")
	}
	good := inv.Items[kind]
	if good.Quantity < n {
		return ports.Failed("market", "insufficient "+kind)
	}
	proceeds := entry.Price * n
	if s.ledger != nil && !s.ledger.Debit(settlementID, proceeds) {
		return ports.Failed("market", "settlement treasury insufficient")
	}
	good.Quantity -= n
	if good.Quantity <= 0 {
		delete(inv.Items, kind)
	} else {
		inv.Items[kind] = good
	}
	coin := inv.Items["coin"]
	coin.Quantity += proceeds
	inv.Items["coin"] = coin
	if err := s.store.SetInventory(agentID, inv); err != nil {
		return ports.Failed("market", err.Error())
	}
	entry.Supply += n
	return ports.Completed("market", proceeds)
}
