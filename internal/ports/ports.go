// Package ports declares the narrow contracts (C7) through which one
// subsystem calls another without importing its concrete package. This is
// the fix for the cyclic-import pattern SPEC_FULL.md §9 calls out: Combat
// needs Inventory (for ammo/weapon crafting), Inventory's events feed
// Crafting, and the AI layer dispatches to all of them — none of those
// packages may import each other directly, only this leaf package.
package ports

// Status is the uniform outcome of a port verb that triggers work.
type Status string

const (
	StatusDelegated  Status = "delegated"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusInProgress Status = "in_progress"
)

// HandlerResult is the uniform return shape for every port verb that
// triggers work, so a caller (typically the AI layer) can treat all
// cross-system delegations the same way.
type HandlerResult struct {
	Status  Status
	System  string
	Message string
	Data    any
}

func Completed(system string, data any) HandlerResult {
	return HandlerResult{Status: StatusCompleted, System: system, Data: data}
}

func Failed(system, message string) HandlerResult {
	return HandlerResult{Status: StatusFailed, System: system, Message: message}
}

func Delegated(system string) HandlerResult {
	return HandlerResult{Status: StatusDelegated, System: system}
}

func InProgress(system string) HandlerResult {
	return HandlerResult{Status: StatusInProgress, System: system}
}

// MovementPort is the capability Movement exposes to every other system.
type MovementPort interface {
	RequestMove(agentID string, x, y float64) HandlerResult
	RequestMoveToZone(agentID, zoneID string) HandlerResult
	RequestMoveToEntity(agentID, targetID string) HandlerResult
	StopMovement(agentID string) HandlerResult
}

// CombatPort is the capability Combat exposes.
type CombatPort interface {
	Equip(agentID, weaponID string) HandlerResult
	CraftWeapon(agentID, weaponID string) HandlerResult
	IsInCombat(agentID string) bool
}

// InventoryPort is the capability Inventory exposes.
type InventoryPort interface {
	AddResource(agentID, kind string, n float64) HandlerResult
	RemoveFromAgent(agentID, kind string, n float64) (actual float64, result HandlerResult)
	TransferBetweenAgents(from, to string, amounts map[string]float64) HandlerResult
	ConsumeFromAgent(agentID string, amounts map[string]float64) HandlerResult
}

// NeedsPort is the capability Needs exposes.
type NeedsPort interface {
	SatisfyNeed(agentID, kind string, delta float64) HandlerResult
}

// SocialPort is the capability Social exposes.
type SocialPort interface {
	AddEdge(a, b string, delta float64) HandlerResult
}

// CraftingPort is the capability RecipeDiscovery exposes.
type CraftingPort interface {
	KnowsRecipe(agentID, recipeID string) bool
	LearnRecipe(agentID, recipeID string) HandlerResult
	Attempt(agentID, recipeID string) HandlerResult
}

// BuildingPort is the capability Building exposes.
type BuildingPort interface {
	ProposeJob(zoneID, label string) HandlerResult
}

// TradePort is the capability Market/Economy exposes.
type TradePort interface {
	BuyResource(agentID, settlementID, kind string, n float64) HandlerResult
	SellResource(agentID, settlementID, kind string, n float64) HandlerResult
}

// EquipmentPort is the capability Equipment exposes.
type EquipmentPort interface {
	ClaimTool(agentID, kind string) HandlerResult
	ReturnTool(agentID string) HandlerResult
}

// FavorPort is the capability DivineFavor exposes.
type FavorPort interface {
	GrantBlessing(lineageID, kind string) HandlerResult
}

// LifecyclePort is the capability Lifecycle exposes (used by Combat
// to delegate agent removal rather than mutating Health/Profile directly).
type LifecyclePort interface {
	RemoveAgent(agentID, reason string) HandlerResult
}
