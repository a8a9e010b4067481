package systems

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/society"
)

func newGovernanceFixture(t *testing.T) (*ecs.Store, *eventbus.Bus, *GovernanceSystem) {
	t.Helper()
	store := ecs.New()
	bus := eventbus.New(nil)
	bus.SetBatchingEnabled(false)
	sys := NewGovernanceSystem(store, bus, func() int64 { return 0 })
	return store, bus, sys
}

func TestNewGovernanceSystemSeedsFiveFactionsWithRelations(t *testing.T) {
	_, _, sys := newGovernanceFixture(t)
	factions := sys.Factions()
	require.Len(t, factions, 5)

	crown := sys.factionByID("crown")
	require.NotNil(t, crown)
	assert.Equal(t, -50.0, crown.Relations["path"])
	// relation seeding is symmetric
	path := sys.factionByID("path")
	assert.Equal(t, -50.0, path.Relations["crown"])
}

func TestCreditAndDebitAdjustTreasury(t *testing.T) {
	_, _, sys := newGovernanceFixture(t)
	sys.RegisterSettlement(&society.Settlement{ID: "s1", Treasury: 10})

	sys.Credit("s1", 5)
	s, ok := sys.Settlement("s1")
	require.True(t, ok)
	assert.Equal(t, 15.0, s.Treasury)

	ok = sys.Debit("s1", 100)
	assert.False(t, ok)
	assert.Equal(t, 15.0, s.Treasury)

	ok = sys.Debit("s1", 5)
	assert.True(t, ok)
	assert.Equal(t, 10.0, s.Treasury)
}

func TestUpdateRecomputesPopulationAndEmitsOvermass(t *testing.T) {
	store, bus, sys := newGovernanceFixture(t)
	sys.RegisterSettlement(&society.Settlement{ID: "s1", ZoneID: "z1", GovernanceScore: 0.1})

	store.RegisterAgent("a")
	require.NoError(t, store.SetTransform("a", ecs.Transform{ZoneID: "z1"}))
	store.RegisterAgent("b")
	require.NoError(t, store.SetTransform("b", ecs.Transform{ZoneID: "z1"}))

	var overmass []eventbus.GovernanceOvermassPayload
	bus.On(eventbus.GovernanceOvermass, func(e eventbus.Event) {
		overmass = append(overmass, e.Payload.(eventbus.GovernanceOvermassPayload))
	})

	require.NoError(t, sys.Update(context.Background(), time.Second))

	s, _ := sys.Settlement("s1")
	assert.Equal(t, 2, s.Population)
	require.Len(t, overmass, 1)
	assert.Equal(t, "s1", overmass[0].SettlementID)
}

func TestExodusCandidatesEmptyBelowMinPopulation(t *testing.T) {
	store, _, sys := newGovernanceFixture(t)
	sys.RegisterSettlement(&society.Settlement{ID: "s1", ZoneID: "z1", Population: 5, GovernanceScore: 0.01})
	store.RegisterAgent("a")
	require.NoError(t, store.SetTransform("a", ecs.Transform{ZoneID: "z1"}))

	out := sys.ExodusCandidates("s1")
	assert.Empty(t, out)
}

func TestExodusCandidatesSizedToEmigrationFraction(t *testing.T) {
	store, _, sys := newGovernanceFixture(t)
	sys.RegisterSettlement(&society.Settlement{ID: "s1", ZoneID: "z1", Population: 100, GovernanceScore: 0.01})
	for i := 0; i < 30; i++ {
		id := string(rune('a' + i))
		store.RegisterAgent(id)
		require.NoError(t, store.SetTransform(id, ecs.Transform{ZoneID: "z1"}))
	}

	out := sys.ExodusCandidates("s1")
	assert.Equal(t, 24, len(out)) // 100 * 0.24
}
