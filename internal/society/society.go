// Package society holds the settlement and faction data model: supplemental
// structures (see SPEC_FULL.md "SUPPLEMENTED FEATURES") grounded in the
// teacher's internal/social package, generalized from its hex-settlement
// specifics to the zone-based world model used here. GovernanceSystem owns
// and mutates these; nothing else writes to them directly.
package society

// GovernanceType is how a settlement is ruled.
type GovernanceType string

const (
	Monarchy         GovernanceType = "monarchy"
	Council          GovernanceType = "council"
	MerchantRepublic GovernanceType = "merchant_republic"
	Commune          GovernanceType = "commune"
)

// Settlement is a populated place with its own governance and treasury.
type Settlement struct {
	ID         string
	Name       string
	ZoneID     string
	Population int
	Governance GovernanceType
	LeaderID   string
	TaxRate    float64
	Treasury   float64

	CultureTradition  float64 // -1..1
	CultureOpenness   float64
	CultureMilitarism float64

	GovernanceScore float64 // 0..1, drives overmass capacity
	WallLevel       int
	RoadLevel       int
	MarketLevel     int
}

// IsOvermassed reports whether the settlement's load exceeds the capacity
// its governance can sustain, mirroring the teacher's
// Settlement.IsOvermassed (_examples/tobyjaguar-mini-world/internal/
// social/settlement.go), generalized away from golden-ratio constants.
func (s *Settlement) IsOvermassed(overmassLoadFactor float64) bool {
	capacity := s.GovernanceScore * 10.0 * overmassLoadFactor
	load := float64(s.Population) + s.Treasury*0.01
	return load > capacity
}

// FactionKind categorizes a faction's nature.
type FactionKind string

const (
	FactionPolitical FactionKind = "political"
	FactionEconomic  FactionKind = "economic"
	FactionMilitary  FactionKind = "military"
	FactionReligious FactionKind = "religious"
	FactionCriminal  FactionKind = "criminal"
)

// Faction is a named organization with per-settlement influence and
// inter-faction relations.
type Faction struct {
	ID        string
	Name      string
	Kind      FactionKind
	Influence map[string]float64 // settlementID -> 0..100
	Relations map[string]float64 // factionID -> -100..100

	LeaderID string
	Treasury float64

	TaxPreference      float64
	TradePreference    float64
	MilitaryPreference float64
}

// SeedFactions returns the simulation's fixed starting set of five
// factions, directly adapted from the teacher's SeedFactions
// (_examples/tobyjaguar-mini-world/internal/social/faction.go).
func SeedFactions() []*Faction {
	return []*Faction{
		{ID: "crown", Name: "The Crown", Kind: FactionPolitical,
			Influence: map[string]float64{}, Relations: map[string]float64{},
			TaxPreference: 0.3, TradePreference: 0.0, MilitaryPreference: 0.5},
		{ID: "compact", Name: "Merchant's Compact", Kind: FactionEconomic,
			Influence: map[string]float64{}, Relations: map[string]float64{},
			TaxPreference: -0.5, TradePreference: 0.8, MilitaryPreference: -0.3},
		{ID: "brotherhood", Name: "Iron Brotherhood", Kind: FactionMilitary,
			Influence: map[string]float64{}, Relations: map[string]float64{},
			TaxPreference: 0.2, TradePreference: -0.2, MilitaryPreference: 0.9},
		{ID: "circle", Name: "Verdant Circle", Kind: FactionReligious,
			Influence: map[string]float64{}, Relations: map[string]float64{},
			TaxPreference: 0.0, TradePreference: -0.3, MilitaryPreference: -0.5},
		{ID: "path", Name: "Ashen Path", Kind: FactionCriminal,
			Influence: map[string]float64{}, Relations: map[string]float64{},
			TaxPreference: -0.8, TradePreference: 0.4, MilitaryPreference: 0.2},
	}
}
