package systems

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/taskqueue"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

func newLifecycleFixture(t *testing.T) (*ecs.Store, *eventbus.Bus, *taskqueue.Queue, *LifecycleSystem) {
	t.Helper()
	store := ecs.New()
	bus := eventbus.New(nil)
	bus.SetBatchingEnabled(false)
	tasks := taskqueue.New(taskqueue.Config{}, bus, func() int64 { return 0 }, nil)
	sys := NewLifecycleSystem(store, bus, tasks, func() int64 { return 0 }, 7)
	return store, bus, tasks, sys
}

// TestSpawnAndAgeToAdult is seed scenario 1 from SPEC_FULL.md §8: spawn a
// child, advance 30 simulated years (900s at secondsPerYear=30), expect
// lifeStage==adult and the agent still in getAliveAgents.
func TestSpawnAndAgeToAdult(t *testing.T) {
	store, _, _, sys := newLifecycleFixture(t)

	id := sys.SpawnAgent("A", ecs.SexMale, 0, 0, "", "", "")
	p, ok := store.GetProfile(id)
	require.True(t, ok)
	assert.Equal(t, ecs.LifeStageChild, p.LifeStage)

	const step = time.Second
	total := time.Duration(0)
	for total < 900*time.Second {
		require.NoError(t, sys.Update(context.Background(), step))
		total += step
	}

	p, _ = store.GetProfile(id)
	assert.Equal(t, ecs.LifeStageAdult, p.LifeStage)
	assert.Contains(t, store.GetAliveAgents(), id)
}

func TestSpawnAgentBuildsFullComponentBundle(t *testing.T) {
	store, bus, _, sys := newLifecycleFixture(t)
	var born []eventbus.AgentBornPayload
	bus.On(eventbus.AgentBorn, func(e eventbus.Event) { born = append(born, e.Payload.(eventbus.AgentBornPayload)) })

	id := sys.SpawnAgent("A", ecs.SexFemale, 1, 2, "zone-1", "", "")

	_, ok := store.GetHealth(id)
	assert.True(t, ok)
	_, ok = store.GetNeeds(id)
	assert.True(t, ok)
	_, ok = store.GetTransform(id)
	assert.True(t, ok)
	_, ok = store.GetInventory(id)
	assert.True(t, ok)
	_, ok = store.GetCombat(id)
	assert.True(t, ok)
	_, ok = store.GetSocial(id)
	assert.True(t, ok)

	require.Len(t, born, 1)
	assert.Equal(t, id, born[0].AgentID)
}

func TestInheritedTraitsAverageParentsWithinMutationSpread(t *testing.T) {
	store, _, _, sys := newLifecycleFixture(t)
	father := sys.SpawnAgent("F", ecs.SexMale, 0, 0, "", "", "")
	mother := sys.SpawnAgent("M", ecs.SexFemale, 0, 0, "", "", "")

	fp, _ := store.GetProfile(father)
	mp, _ := store.GetProfile(mother)
	fp.Traits["aggression"] = 0.2
	mp.Traits["aggression"] = 0.8
	require.NoError(t, store.SetProfile(father, fp))
	require.NoError(t, store.SetProfile(mother, mp))

	child := sys.SpawnAgent("C", ecs.SexMale, 0, 0, "", father, mother)
	cp, _ := store.GetProfile(child)

	assert.InDelta(t, 0.5, cp.Traits["aggression"], tuning.TraitMutationSpread+1e-9)
	assert.Equal(t, 1, cp.Generation)
}

func TestRemoveAgentEmitsAgentRemovedAndClearsTasks(t *testing.T) {
	store, bus, tasks, sys := newLifecycleFixture(t)
	id := sys.SpawnAgent("A", ecs.SexMale, 0, 0, "", "", "")
	tasks.Enqueue(id, "idle", 10, nil)

	var removed []eventbus.AgentRemovedPayload
	bus.On(eventbus.AgentRemoved, func(e eventbus.Event) { removed = append(removed, e.Payload.(eventbus.AgentRemovedPayload)) })

	res := sys.RemoveAgent(id, "old age")
	assert.Equal(t, "completed", string(res.Status))
	assert.False(t, store.HasAgent(id))
	assert.False(t, tasks.HasTasks(id))
	require.Len(t, removed, 1)
	assert.Equal(t, "old age", removed[0].Reason)
}

func TestRemoveAgentUnknownFails(t *testing.T) {
	_, _, _, sys := newLifecycleFixture(t)
	res := sys.RemoveAgent("ghost", "old age")
	assert.Equal(t, "failed", string(res.Status))
}

func TestUpdateSweepsAgentsMarkedDead(t *testing.T) {
	store, _, _, sys := newLifecycleFixture(t)
	id := sys.SpawnAgent("A", ecs.SexMale, 0, 0, "", "", "")
	h, _ := store.GetHealth(id)
	h.IsDead = true
	require.NoError(t, store.SetHealth(id, h))

	require.NoError(t, sys.Update(context.Background(), time.Second))
	assert.False(t, store.HasAgent(id))
}
