// Package snapshot implements the Snapshot Serializer (C11) of
// SPEC_FULL.md §4.10: a deterministic, versioned, self-describing dump of
// every piece of live simulation state, and the matching restore path.
// Grounded on the teacher's own save/load shape
// (_examples/tobyjaguar-mini-world/internal/persistence/store.go's
// SaveWorld/LoadWorld), generalized from a single sqlite blob write into an
// explicit, independently testable in-memory record the persistence layer
// then hands to sqlite (or the transport layer hands to a WebSocket client)
// as either JSON or MessagePack.
//
// Map-like containers are represented as ordered slices of key/value
// entries rather than Go maps, per SPEC_FULL.md §4.10's language-independent
// serialization rule; every exported struct carries explicit json tags for
// that reason. MessagePack ignores them: transport.Encode calls
// msgpack.Marshal with no custom struct tag, so msgpack keys fields by
// their Go names.
package snapshot

import (
	"sort"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/society"
	"github.com/crossroads-sim/worldengine/internal/systems"
	"github.com/crossroads-sim/worldengine/internal/world"
)

// SchemaVersion is bumped on any incompatible change to Snapshot's shape.
const SchemaVersion = 1

// Snapshot is the complete exported state of one simulation instant.
type Snapshot struct {
	SchemaVersion int   `json:"schema_version"`
	Tick          int64 `json:"tick"`
	FrameTimeMS   int64 `json:"frame_time_ms"`

	Agents     []ecs.AgentBundle  `json:"agents"`
	Zones      []ZoneEntry        `json:"zones"`
	Stockpiles []StockpileEntry   `json:"stockpiles"`
	Lineages   []LineageEntry     `json:"lineages"`
	Ancestors  []systems.Ancestor `json:"ancestors"`
	Recipes    []AgentRecipes     `json:"recipes"`
	CombatLog  []systems.CombatLogEntry `json:"combat_log"`
	Animals    []systems.Animal   `json:"animals"`
	Settlements []SettlementEntry `json:"settlements"`
	Factions    []FactionEntry    `json:"factions"`
}

// ZoneEntry is one world.Zone flattened for serialization; Metadata is
// already a map in the live type but small and string-keyed, so it is kept
// as-is rather than further exploded into entries.
type ZoneEntry struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Polygon  [][2]float64      `json:"polygon"`
	Metadata map[string]string `json:"metadata"`
}

// StockpileEntry mirrors world.Stockpile.
type StockpileEntry struct {
	ID       string  `json:"id"`
	ZoneID   string  `json:"zone_id"`
	Kind     string  `json:"kind"`
	Capacity float64 `json:"capacity"`
	Amount   float64 `json:"amount"`
}

// LineageEntry mirrors systems.Lineage with Members exploded into an
// ordered ID list instead of a map.
type LineageEntry struct {
	ID            string   `json:"id"`
	FounderID     string   `json:"founder_id"`
	Members       []string `json:"members"`
	LivingMembers int      `json:"living_members"`
	TotalBorn     int      `json:"total_born"`
	TotalDied     int      `json:"total_died"`
}

// AgentRecipes is one agent's known-recipe set, ordered.
type AgentRecipes struct {
	AgentID string   `json:"agent_id"`
	Known   []string `json:"known"`
}

// SettlementEntry mirrors society.Settlement.
type SettlementEntry struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	ZoneID            string  `json:"zone_id"`
	Population        int     `json:"population"`
	Governance        string  `json:"governance"`
	LeaderID          string  `json:"leader_id"`
	TaxRate           float64 `json:"tax_rate"`
	Treasury          float64 `json:"treasury"`
	CultureTradition  float64 `json:"culture_tradition"`
	CultureOpenness   float64 `json:"culture_openness"`
	CultureMilitarism float64 `json:"culture_militarism"`
	GovernanceScore   float64 `json:"governance_score"`
	WallLevel         int     `json:"wall_level"`
	RoadLevel         int     `json:"road_level"`
	MarketLevel       int     `json:"market_level"`
}

// RelationEntry is one faction's relation toward another, exploded from
// society.Faction.Relations.
type RelationEntry struct {
	FactionID string  `json:"faction_id"`
	Value     float64 `json:"value"`
}

// InfluenceEntry is one faction's influence over a settlement, exploded
// from society.Faction.Influence.
type InfluenceEntry struct {
	SettlementID string  `json:"settlement_id"`
	Value        float64 `json:"value"`
}

// FactionEntry mirrors society.Faction with its two maps exploded.
type FactionEntry struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Kind               string           `json:"kind"`
	Influence          []InfluenceEntry `json:"influence"`
	Relations          []RelationEntry  `json:"relations"`
	LeaderID           string           `json:"leader_id"`
	Treasury           float64          `json:"treasury"`
	TaxPreference      float64          `json:"tax_preference"`
	TradePreference    float64          `json:"trade_preference"`
	MilitaryPreference float64          `json:"military_preference"`
}

// Sources bundles every live component the Exporter reads from. All fields
// are optional except Store; a nil subsystem is simply omitted from the
// resulting Snapshot, letting callers export a partially-wired engine
// (useful in tests).
type Sources struct {
	Store       *ecs.Store
	Zones       *world.ZoneManager
	Genealogy   *systems.GenealogySystem
	Recipes     *systems.RecipeDiscoverySystem
	Combat      *systems.CombatSystem
	Animals     *systems.AnimalSystem
	Governance  *systems.GovernanceSystem
	Now         func() int64
	Tick        func() int64
}

// Export builds a deterministic Snapshot from the live engine state in src.
func Export(src Sources) Snapshot {
	snap := Snapshot{SchemaVersion: SchemaVersion}
	if src.Tick != nil {
		snap.Tick = src.Tick()
	}
	if src.Now != nil {
		snap.FrameTimeMS = src.Now()
	}
	if src.Store != nil {
		snap.Agents = src.Store.ExportAll()
	}
	if src.Zones != nil {
		snap.Zones = exportZones(src.Zones)
		snap.Stockpiles = exportStockpiles(src.Zones)
	}
	if src.Genealogy != nil {
		snap.Lineages = exportLineages(src.Genealogy)
		snap.Ancestors = src.Genealogy.Ancestors()
		sort.Slice(snap.Ancestors, func(i, j int) bool { return snap.Ancestors[i].AgentID < snap.Ancestors[j].AgentID })
	}
	if src.Recipes != nil && src.Store != nil {
		snap.Recipes = exportRecipes(src.Store, src.Recipes)
	}
	if src.Combat != nil {
		snap.CombatLog = src.Combat.CombatLog()
	}
	if src.Animals != nil {
		snap.Animals = src.Animals.Snapshot()
		sort.Slice(snap.Animals, func(i, j int) bool { return snap.Animals[i].ID < snap.Animals[j].ID })
	}
	if src.Governance != nil {
		snap.Settlements = exportSettlements(src.Governance)
		snap.Factions = exportFactions(src.Governance)
	}
	return snap
}

func exportZones(zm *world.ZoneManager) []ZoneEntry {
	zones := zm.AllZones()
	out := make([]ZoneEntry, 0, len(zones))
	for _, z := range zones {
		out = append(out, ZoneEntry{ID: z.ID, Type: string(z.Type), Polygon: z.Polygon, Metadata: z.Metadata})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func exportStockpiles(zm *world.ZoneManager) []StockpileEntry {
	sps := zm.AllStockpiles()
	out := make([]StockpileEntry, 0, len(sps))
	for _, sp := range sps {
		out = append(out, StockpileEntry{ID: sp.ID, ZoneID: sp.ZoneID, Kind: sp.Kind, Capacity: sp.Capacity, Amount: sp.Amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func exportLineages(g *systems.GenealogySystem) []LineageEntry {
	lineages := g.Lineages()
	out := make([]LineageEntry, 0, len(lineages))
	for _, l := range lineages {
		members := make([]string, 0, len(l.Members))
		for id := range l.Members {
			members = append(members, id)
		}
		sort.Strings(members)
		out = append(out, LineageEntry{
			ID: l.ID, FounderID: l.FounderID, Members: members,
			LivingMembers: l.LivingMembers, TotalBorn: l.TotalBorn, TotalDied: l.TotalDied,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func exportRecipes(store *ecs.Store, rd *systems.RecipeDiscoverySystem) []AgentRecipes {
	ids := store.GetAllAgentIDs()
	sort.Strings(ids)
	out := make([]AgentRecipes, 0, len(ids))
	for _, id := range ids {
		known := rd.KnownRecipes(id)
		if len(known) == 0 {
			continue
		}
		out = append(out, AgentRecipes{AgentID: id, Known: known})
	}
	return out
}

func exportSettlements(g *systems.GovernanceSystem) []SettlementEntry {
	settlements := g.Settlements()
	out := make([]SettlementEntry, 0, len(settlements))
	for _, s := range settlements {
		out = append(out, SettlementEntry{
			ID: s.ID, Name: s.Name, ZoneID: s.ZoneID, Population: s.Population,
			Governance: string(s.Governance), LeaderID: s.LeaderID, TaxRate: s.TaxRate,
			Treasury: s.Treasury, CultureTradition: s.CultureTradition,
			CultureOpenness: s.CultureOpenness, CultureMilitarism: s.CultureMilitarism,
			GovernanceScore: s.GovernanceScore, WallLevel: s.WallLevel,
			RoadLevel: s.RoadLevel, MarketLevel: s.MarketLevel,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func exportFactions(g *systems.GovernanceSystem) []FactionEntry {
	factions := g.Factions()
	out := make([]FactionEntry, 0, len(factions))
	for _, f := range factions {
		influence := make([]InfluenceEntry, 0, len(f.Influence))
		for sid, v := range f.Influence {
			influence = append(influence, InfluenceEntry{SettlementID: sid, Value: v})
		}
		sort.Slice(influence, func(i, j int) bool { return influence[i].SettlementID < influence[j].SettlementID })

		relations := make([]RelationEntry, 0, len(f.Relations))
		for fid, v := range f.Relations {
			relations = append(relations, RelationEntry{FactionID: fid, Value: v})
		}
		sort.Slice(relations, func(i, j int) bool { return relations[i].FactionID < relations[j].FactionID })

		out = append(out, FactionEntry{
			ID: f.ID, Name: f.Name, Kind: string(f.Kind), Influence: influence, Relations: relations,
			LeaderID: f.LeaderID, Treasury: f.Treasury, TaxPreference: f.TaxPreference,
			TradePreference: f.TradePreference, MilitaryPreference: f.MilitaryPreference,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Sinks bundles every live subsystem Import restores into. Store is
// required; the rest are optional, mirroring Sources.
type Sinks struct {
	Store      *ecs.Store
	Zones      *world.ZoneManager
	Genealogy  *systems.GenealogySystem
	Recipes    *systems.RecipeDiscoverySystem
	Governance *systems.GovernanceSystem
	Lifecycle  *systems.LifecycleSystem
}

// Import restores snap into the wired sinks. Agents are restored through
// ecs.Store.ImportAll (which clears the Store first) and then re-registered
// with the task queue via Lifecycle.ImportAgent, so restored agents are not
// left present in the Store but invisible to the task queue. The other
// sinks are not cleared: zones, stockpiles, lineages, recipes and
// settlements from snap are added to whatever they already hold. Animals,
// the combat log and factions are exported but not restored.
func Import(snap Snapshot, sink Sinks) {
	if sink.Store != nil {
		sink.Store.ImportAll(snap.Agents)
		if sink.Lifecycle != nil {
			for _, b := range snap.Agents {
				sink.Lifecycle.ImportAgent(b.ID)
			}
		}
	}
	if sink.Zones != nil {
		importZones(sink.Zones, snap.Zones, snap.Stockpiles)
	}
	if sink.Genealogy != nil {
		importGenealogy(sink.Genealogy, snap.Lineages, snap.Ancestors)
	}
	if sink.Recipes != nil {
		for _, ar := range snap.Recipes {
			for _, recipeID := range ar.Known {
				sink.Recipes.LearnRecipe(ar.AgentID, recipeID)
			}
		}
	}
	if sink.Governance != nil {
		for _, se := range snap.Settlements {
			sink.Governance.RegisterSettlement(&society.Settlement{
				ID: se.ID, Name: se.Name, ZoneID: se.ZoneID, Population: se.Population,
				Governance: society.GovernanceType(se.Governance), LeaderID: se.LeaderID,
				TaxRate: se.TaxRate, Treasury: se.Treasury, CultureTradition: se.CultureTradition,
				CultureOpenness: se.CultureOpenness, CultureMilitarism: se.CultureMilitarism,
				GovernanceScore: se.GovernanceScore, WallLevel: se.WallLevel,
				RoadLevel: se.RoadLevel, MarketLevel: se.MarketLevel,
			})
		}
	}
}

func importZones(zm *world.ZoneManager, zones []ZoneEntry, stockpiles []StockpileEntry) {
	for _, z := range zones {
		zm.CreateZone(&world.Zone{ID: z.ID, Type: world.ZoneType(z.Type), Polygon: z.Polygon, Metadata: z.Metadata})
	}
	for _, sp := range stockpiles {
		created := zm.CreateStockpile(sp.ZoneID, sp.Kind, sp.Capacity)
		zm.AddToStockpile(created.ID, sp.Amount)
	}
}

// importGenealogy replays births/deaths in generation order so resolveLineage
// sees each ancestor's parents already registered when it processes a child.
func importGenealogy(g *systems.GenealogySystem, lineages []LineageEntry, ancestors []systems.Ancestor) {
	byGen := append([]systems.Ancestor(nil), ancestors...)
	sort.Slice(byGen, func(i, j int) bool { return byGen[i].Generation < byGen[j].Generation })
	for _, a := range byGen {
		g.RegisterBirth(a.AgentID, a.FatherID, a.MotherID)
	}

	deaths := make(map[string]int)
	for _, l := range lineages {
		deaths[l.ID] = l.TotalDied
	}
	for _, l := range lineages {
		for i := 0; i < l.TotalDied; i++ {
			// RecordDeath only needs a known ancestor to decrement bookkeeping;
			// replay against the founder since individual dead-member identity
			// isn't preserved once LivingMembers/TotalDied are aggregated.
			g.RecordDeath(l.FounderID)
		}
	}
}
