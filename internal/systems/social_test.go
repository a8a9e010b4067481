package systems

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/spatial"
)

func newSocialFixture(t *testing.T) (*ecs.Store, *eventbus.Bus, *spatial.Grid, *SocialSystem) {
	t.Helper()
	store := ecs.New()
	bus := eventbus.New(nil)
	bus.SetBatchingEnabled(false)
	grid := spatial.New(10)
	sys := NewSocialSystem(store, bus, grid, func() int64 { return 0 })
	return store, bus, grid, sys
}

func TestAddEdgeIsSymmetric(t *testing.T) {
	store, bus, _, sys := newSocialFixture(t)
	store.RegisterAgent("a")
	store.RegisterAgent("b")
	require.NoError(t, store.SetSocial("a", ecs.Social{Relationships: map[string]ecs.Relationship{}}))
	require.NoError(t, store.SetSocial("b", ecs.Social{Relationships: map[string]ecs.Relationship{}}))

	var interactions int
	bus.On(eventbus.SocialInteraction, func(e eventbus.Event) { interactions++ })

	res := sys.AddEdge("a", "b", 10)
	require.Equal(t, "completed", string(res.Status))
	assert.Equal(t, 1, interactions)

	socA, _ := store.GetSocial("a")
	socB, _ := store.GetSocial("b")
	assert.Equal(t, socA.Relationships["b"].Affinity, socB.Relationships["a"].Affinity)
}

func TestAddEdgeUnknownAgentFails(t *testing.T) {
	store, _, _, sys := newSocialFixture(t)
	store.RegisterAgent("a")
	require.NoError(t, store.SetSocial("a", ecs.Social{Relationships: map[string]ecs.Relationship{}}))

	res := sys.AddEdge("a", "ghost", 5)
	assert.Equal(t, "failed", string(res.Status))
}

func TestAffinityDecaysTowardZero(t *testing.T) {
	store, _, _, sys := newSocialFixture(t)
	store.RegisterAgent("a")
	require.NoError(t, store.SetHealth("a", ecs.Health{Current: 1, Max: 1}))
	require.NoError(t, store.SetSocial("a", ecs.Social{Relationships: map[string]ecs.Relationship{
		"b": {Affinity: 50},
	}}))

	require.NoError(t, sys.Update(context.Background(), 10*time.Second))

	soc, _ := store.GetSocial("a")
	assert.Less(t, soc.Relationships["b"].Affinity, 50.0)
	assert.Greater(t, soc.Relationships["b"].Affinity, 0.0)
}

func TestAffinityClampedToBounds(t *testing.T) {
	store, _, _, sys := newSocialFixture(t)
	store.RegisterAgent("a")
	store.RegisterAgent("b")
	require.NoError(t, store.SetSocial("a", ecs.Social{Relationships: map[string]ecs.Relationship{}}))
	require.NoError(t, store.SetSocial("b", ecs.Social{Relationships: map[string]ecs.Relationship{}}))

	sys.AddEdge("a", "b", 1000) // clamp on the high end

	socA, _ := store.GetSocial("a")
	assert.LessOrEqual(t, socA.Relationships["b"].Affinity, 100.0)
}
