package systems

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
)

type fakeLineageResolver struct {
	lineageOf map[string]string
	founder   map[string]string
}

func (f *fakeLineageResolver) LineageOf(agentID string) (string, bool) {
	v, ok := f.lineageOf[agentID]
	return v, ok
}

func (f *fakeLineageResolver) LineageFounder(lineageID string) (string, bool) {
	v, ok := f.founder[lineageID]
	return v, ok
}

func newDivineFavorFixture(t *testing.T) (*ecs.Store, *eventbus.Bus, *fakeLineageResolver, *DivineFavorSystem) {
	t.Helper()
	store := ecs.New()
	bus := eventbus.New(nil)
	bus.SetBatchingEnabled(false)
	genealogy := &fakeLineageResolver{lineageOf: map[string]string{}, founder: map[string]string{}}
	sys := NewDivineFavorSystem(store, bus, func() int64 { return 0 }, genealogy)
	return store, bus, genealogy, sys
}

func TestFavorAccruesFromHighAverageNeedSatisfaction(t *testing.T) {
	store, _, genealogy, sys := newDivineFavorFixture(t)
	store.RegisterAgent("founder")
	require.NoError(t, store.SetNeeds("founder", ecs.Needs{Hunger: 100, Thirst: 100, Energy: 100, Hygiene: 100, Social: 100, Fun: 100, MentalHealth: 100}))
	genealogy.lineageOf["founder"] = "lineage-1"
	genealogy.founder["lineage-1"] = "founder"

	require.NoError(t, sys.Update(context.Background(), 10*time.Second))

	favor, ok := store.GetFavor("founder")
	require.True(t, ok)
	assert.Greater(t, favor.Accumulated, 0.0)
}

func TestFavorDoesNotAccrueBelowWarningThreshold(t *testing.T) {
	store, _, genealogy, sys := newDivineFavorFixture(t)
	store.RegisterAgent("founder")
	require.NoError(t, store.SetNeeds("founder", ecs.Needs{Hunger: 10, Thirst: 10, Energy: 10, Hygiene: 10, Social: 10, Fun: 10, MentalHealth: 10}))
	genealogy.lineageOf["founder"] = "lineage-1"
	genealogy.founder["lineage-1"] = "founder"

	require.NoError(t, sys.Update(context.Background(), 10*time.Second))

	favor, _ := store.GetFavor("founder")
	assert.Equal(t, 0.0, favor.Accumulated)
}

func TestGrantBlessingSpendsFavorAndEmitsEvent(t *testing.T) {
	store, bus, genealogy, sys := newDivineFavorFixture(t)
	store.RegisterAgent("founder")
	require.NoError(t, store.SetFavor("founder", ecs.Favor{Accumulated: 20}))
	genealogy.founder["lineage-1"] = "founder"

	var granted []eventbus.DivineBlessingGrantedPayload
	bus.On(eventbus.DivineBlessingGranted, func(e eventbus.Event) {
		granted = append(granted, e.Payload.(eventbus.DivineBlessingGrantedPayload))
	})

	res := sys.GrantBlessing("lineage-1", "needs_ease")
	assert.Equal(t, "completed", string(res.Status))
	require.Len(t, granted, 1)

	favor, _ := store.GetFavor("founder")
	assert.Equal(t, 10.0, favor.Accumulated)
	require.Len(t, favor.Active, 1)
}

func TestGrantBlessingFailsOnInsufficientFavor(t *testing.T) {
	store, _, genealogy, sys := newDivineFavorFixture(t)
	store.RegisterAgent("founder")
	require.NoError(t, store.SetFavor("founder", ecs.Favor{Accumulated: 1}))
	genealogy.founder["lineage-1"] = "founder"

	res := sys.GrantBlessing("lineage-1", "needs_ease")
	assert.Equal(t, "failed", string(res.Status))
}

func TestDivineModifierSoftensNeedsDecayForActiveBlessing(t *testing.T) {
	store, _, genealogy, sys := newDivineFavorFixture(t)
	store.RegisterAgent("founder")
	require.NoError(t, store.SetFavor("founder", ecs.Favor{
		Active: []ecs.Blessing{{Kind: "needs_ease", ExpiresAt: 1000, Magnitude: 2.0}},
	}))
	genealogy.lineageOf["agent"] = "lineage-1"
	genealogy.founder["lineage-1"] = "founder"

	assert.Equal(t, 0.5, sys.DivineModifier("agent"))
}

func TestDivineModifierDefaultsToOneWithNoBlessing(t *testing.T) {
	_, _, _, sys := newDivineFavorFixture(t)
	assert.Equal(t, 1.0, sys.DivineModifier("unknown-agent"))
}

func TestUpdatePrunesExpiredBlessings(t *testing.T) {
	store, _, genealogy, sys := newDivineFavorFixture(t)
	store.RegisterAgent("founder")
	require.NoError(t, store.SetFavor("founder", ecs.Favor{
		Active: []ecs.Blessing{{Kind: "needs_ease", ExpiresAt: -1}},
	}))
	genealogy.lineageOf["founder"] = "lineage-1"
	genealogy.founder["lineage-1"] = "founder"
	require.NoError(t, store.SetNeeds("founder", ecs.Needs{Hunger: 100, Thirst: 100, Energy: 100, Hygiene: 100, Social: 100, Fun: 100, MentalHealth: 100}))

	require.NoError(t, sys.Update(context.Background(), time.Second))

	favor, _ := store.GetFavor("founder")
	assert.Empty(t, favor.Active)
}
