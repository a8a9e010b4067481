package systems

import (
	"context"
	"sync"
	"time"

	"github.com/crossroads-sim/worldengine/internal/eventbus"
)

// Lineage tracks one founding line's membership and vital statistics.
type Lineage struct {
	ID             string
	FounderID      string
	Members        map[string]bool
	LivingMembers  int
	TotalBorn      int
	TotalDied      int
}

// Ancestor is one agent's place in the family tree.
type Ancestor struct {
	AgentID    string
	FatherID   string
	MotherID   string
	LineageID  string
	Generation int
}

// GenealogySystem implements SPEC_FULL.md §4.8.10. It is a pure observer:
// it never mutates ecs.Store, only its own ancestor/lineage maps, and
// learns of births/deaths entirely by listening on the event bus rather
// than being called directly by LifecycleSystem. Grounded on the teacher's
// population bookkeeping (_examples/tobyjaguar-mini-world/internal/engine/
// population.go's processBirths/processNaturalDeaths), generalized from a
// single flat agent roster into an explicit lineage/ancestor graph.
type GenealogySystem struct {
	mu        sync.Mutex
	ancestors map[string]*Ancestor
	lineages  map[string]*Lineage
}

// NewGenealogySystem returns a GenealogySystem subscribed to agent:born and
// agent:removed on bus.
func NewGenealogySystem(bus *eventbus.Bus) *GenealogySystem {
	g := &GenealogySystem{
		ancestors: make(map[string]*Ancestor),
		lineages:  make(map[string]*Lineage),
	}
	bus.On(eventbus.AgentBorn, func(ev eventbus.Event) {
		p, ok := ev.Payload.(eventbus.AgentBornPayload)
		if !ok {
			return
		}
		g.RegisterBirth(p.AgentID, p.Father, p.Mother)
	})
	bus.On(eventbus.AgentRemoved, func(ev eventbus.Event) {
		p, ok := ev.Payload.(eventbus.AgentRemovedPayload)
		if !ok {
			return
		}
		g.RecordDeath(p.AgentID)
	})
	return g
}

// Update implements scheduler.UpdateFunc; GenealogySystem does no per-tick
// work of its own, all state changes are event-driven, but it is still
// registered with the scheduler like every other system.
func (g *GenealogySystem) Update(ctx context.Context, dt time.Duration) error {
	return nil
}

// RegisterBirth assigns agentID a lineage (inherited from whichever parent
// already has one, or founding a new one if neither does) and records its
// ancestor entry.
func (g *GenealogySystem) RegisterBirth(agentID, fatherID, motherID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lineageID, generation := g.resolveLineage(fatherID, motherID)
	if lineageID == "" {
		lineageID = agentID // founds its own lineage
		g.lineages[lineageID] = &Lineage{
			ID: lineageID, FounderID: agentID,
			Members: map[string]bool{agentID: true},
		}
	}
	lin := g.lineages[lineageID]
	lin.Members[agentID] = true
	lin.LivingMembers++
	lin.TotalBorn++

	g.ancestors[agentID] = &Ancestor{
		AgentID: agentID, FatherID: fatherID, MotherID: motherID,
		LineageID: lineageID, Generation: generation,
	}
}

func (g *GenealogySystem) resolveLineage(fatherID, motherID string) (string, int) {
	if a, ok := g.ancestors[fatherID]; ok {
		return a.LineageID, a.Generation + 1
	}
	if a, ok := g.ancestors[motherID]; ok {
		return a.LineageID, a.Generation + 1
	}
	return "", 0
}

// RecordDeath decrements the dying agent's lineage living-member count.
func (g *GenealogySystem) RecordDeath(agentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.ancestors[agentID]
	if !ok {
		return
	}
	if lin, ok := g.lineages[a.LineageID]; ok {
		lin.LivingMembers--
		lin.TotalDied++
	}
}

// LineageOf returns the lineage ID for agentID, if known.
func (g *GenealogySystem) LineageOf(agentID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.ancestors[agentID]
	if !ok {
		return "", false
	}
	return a.LineageID, true
}

// LineageFounder returns the founder agent ID for lineageID, satisfying the
// lineage->founder resolution DivineFavorSystem needs (Favor is modeled as
// a component on the founder agent, see ecs.Favor).
func (g *GenealogySystem) LineageFounder(lineageID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	lin, ok := g.lineages[lineageID]
	if !ok {
		return "", false
	}
	return lin.FounderID, true
}

// Lineages returns a snapshot list of every tracked lineage.
func (g *GenealogySystem) Lineages() []*Lineage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Lineage, 0, len(g.lineages))
	for _, l := range g.lineages {
		members := make(map[string]bool, len(l.Members))
		for k, v := range l.Members {
			members[k] = v
		}
		cp := *l
		cp.Members = members
		out = append(out, &cp)
	}
	return out
}

// Ancestors returns a snapshot list of every tracked ancestor record.
func (g *GenealogySystem) Ancestors() []Ancestor {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Ancestor, 0, len(g.ancestors))
	for _, a := range g.ancestors {
		out = append(out, *a)
	}
	return out
}
