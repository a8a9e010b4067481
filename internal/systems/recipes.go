package systems

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/ports"
)

// Recipe is one craftable transformation: a fixed set of input quantities
// consumed to produce an output, optionally gated behind a Role and/or an
// equipped tool kind. Grounded on the teacher's crafter/alchemist
// material-check-then-produce branches
// (_examples/tobyjaguar-mini-world/internal/agents/behavior.go's
// applyWork OccupationCrafter/OccupationAlchemist cases), generalized from
// a fixed if/else-if priority chain into a data-driven catalog any agent
// can learn and attempt.
type Recipe struct {
	ID           string
	Inputs       map[string]float64
	Output       string
	OutputAmount float64
	RequiredRole ecs.RoleType // RoleNone means any role may attempt it
	RequiredTool string       // "" means no tool required
}

var defaultRecipes = []*Recipe{
	{ID: "tools", Inputs: map[string]float64{"ore": 2, "timber": 1}, Output: "tools", OutputAmount: 1, RequiredRole: ecs.RoleCrafter},
	{ID: "weapons", Inputs: map[string]float64{"ore": 2, "stone": 1}, Output: "weapons", OutputAmount: 1, RequiredRole: ecs.RoleCrafter, RequiredTool: "tools"},
	{ID: "medicine", Inputs: map[string]float64{"herbs": 2}, Output: "medicine", OutputAmount: 1},
}

// RecipeDiscoverySystem implements the supplemental RecipeDiscovery of
// SPEC_FULL.md §4.8.12.
type RecipeDiscoverySystem struct {
	store *ecs.Store
	inv   ports.InventoryPort
	bus   *eventbus.Bus
	now   func() int64
	rng   *rand.Rand

	mu      sync.Mutex
	recipes map[string]*Recipe
	known   map[string]map[string]bool // agentID -> recipeID -> known
}

// NewRecipeDiscoverySystem returns a RecipeDiscoverySystem seeded with the
// default recipe catalog. inv is used to apply a successful Attempt's
// input consumption/output deposit transactionally.
func NewRecipeDiscoverySystem(store *ecs.Store, inv ports.InventoryPort, bus *eventbus.Bus, now func() int64, seed int64) *RecipeDiscoverySystem {
	catalog := make(map[string]*Recipe, len(defaultRecipes))
	for _, r := range defaultRecipes {
		catalog[r.ID] = r
	}
	return &RecipeDiscoverySystem{
		store: store, inv: inv, bus: bus, now: now, rng: rand.New(rand.NewSource(seed)),
		recipes: catalog, known: make(map[string]map[string]bool),
	}
}

// Update implements scheduler.UpdateFunc; RecipeDiscovery does no per-tick
// sweep, all its state changes happen through Attempt/LearnRecipe/
// InheritFrom.
func (s *RecipeDiscoverySystem) Update(ctx context.Context, dt time.Duration) error { return nil }

// KnowsRecipe implements ports.CraftingPort.
func (s *RecipeDiscoverySystem) KnowsRecipe(agentID, recipeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.known[agentID][recipeID]
}

// LearnRecipe implements ports.CraftingPort: unconditionally grants
// knowledge of recipeID to agentID (used for explicit teaching/training,
// as opposed to the probabilistic discovery Attempt grants on success).
func (s *RecipeDiscoverySystem) LearnRecipe(agentID, recipeID string) ports.HandlerResult {
	if _, ok := s.recipes[recipeID]; !ok {
		return ports.Failed("recipes", "unknown recipe "+recipeID)
	}
	s.mu.Lock()
	if s.known[agentID] == nil {
		s.known[agentID] = make(map[string]bool)
	}
	s.known[agentID][recipeID] = true
	s.mu.Unlock()
	s.bus.Emit(eventbus.RecipeLearned, eventbus.RecipeLearnedPayload{AgentID: agentID, RecipeID: recipeID}, s.now())
	return ports.Completed("recipes", nil)
}

// Attempt implements ports.CraftingPort: if agentID already knows
// recipeID, consumes its inputs from inventory (all-or-nothing via
// InventoryPort.ConsumeFromAgent) and deposits the output. If agentID
// doesn't yet know it, attempting still consumes materials on success but
// only teaches the recipe with probability scaled by the agent's curiosity
// trait, per SPEC_FULL.md §4.8.12.
func (s *RecipeDiscoverySystem) Attempt(agentID, recipeID string) ports.HandlerResult {
	recipe, ok := s.recipes[recipeID]
	if !ok {
		return ports.Failed("recipes", "unknown recipe "+recipeID)
	}
	if recipe.RequiredRole != ecs.RoleNone {
		role, hasRole := s.store.GetRole(agentID)
		if !hasRole || role.RoleType != recipe.RequiredRole {
			return ports.Failed("recipes", "agent lacks required role")
		}
	}
	if recipe.RequiredTool != "" {
		eq, hasEq := s.store.GetEquipment(agentID)
		if !hasEq || eq.ToolID != recipe.RequiredTool {
			return ports.Failed("recipes", "agent lacks required tool")
		}
	}

	result := s.inv.ConsumeFromAgent(agentID, recipe.Inputs)
	if result.Status != ports.StatusCompleted {
		return result
	}
	_ = s.inv.AddResource(agentID, recipe.Output, recipe.OutputAmount)

	if !s.KnowsRecipe(agentID, recipeID) {
		profile, _ := s.store.GetProfile(agentID)
		curiosity := profile.Traits["curiosity"]
		if s.rng.Float64() < 0.1+curiosity*0.4 {
			s.LearnRecipe(agentID, recipeID)
		}
	}
	return ports.Completed("recipes", recipe.Output)
}

// KnownRecipes returns the sorted recipe IDs agentID currently knows, for
// snapshotting.
func (s *RecipeDiscoverySystem) KnownRecipes(agentID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	known := s.known[agentID]
	out := make([]string, 0, len(known))
	for id, ok := range known {
		if ok {
			out = append(out, id)
		}
	}
	sortStringsLocal(out)
	return out
}

func sortStringsLocal(ids []string) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// InheritFrom copies every recipe parentID knows onto childID, the
// inheritance path of SPEC_FULL.md §4.8.12. Nothing outside the tests calls
// it: LifecycleSystem's spawn path does not, so a newborn starts with no
// known recipes.
func (s *RecipeDiscoverySystem) InheritFrom(childID, parentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parentKnown, ok := s.known[parentID]
	if !ok {
		return
	}
	if s.known[childID] == nil {
		s.known[childID] = make(map[string]bool)
	}
	for recipeID, known := range parentKnown {
		if known {
			s.known[childID][recipeID] = true
		}
	}
}
