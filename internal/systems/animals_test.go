package systems

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossroads-sim/worldengine/internal/eventbus"
)

func newAnimalFixture(t *testing.T, maxAnimals int) (*eventbus.Bus, *AnimalSystem) {
	t.Helper()
	bus := eventbus.New(nil)
	bus.SetBatchingEnabled(false)
	sys := NewAnimalSystem(bus, func() int64 { return 0 }, 1, nil, maxAnimals)
	return bus, sys
}

func TestSpawnAnimalRejectsOverCapacity(t *testing.T) {
	_, sys := newAnimalFixture(t, 1)
	id1 := sys.SpawnAnimal("deer", 0, 0, false)
	require.NotEmpty(t, id1)

	id2 := sys.SpawnAnimal("deer", 1, 1, false)
	assert.Empty(t, id2)
	assert.Equal(t, 1, sys.Count())
}

func TestAnimalStarvesToDeath(t *testing.T) {
	bus, sys := newAnimalFixture(t, 10)
	id := sys.SpawnAnimal("deer", 0, 0, false)
	sys.animals[id].Hunger = 1

	var died []eventbus.AnimalDiedPayload
	bus.On(eventbus.AnimalDied, func(e eventbus.Event) { died = append(died, e.Payload.(eventbus.AnimalDiedPayload)) })

	require.NoError(t, sys.Update(context.Background(), time.Second))

	assert.Equal(t, 0, sys.Count())
	require.Len(t, died, 1)
	assert.Equal(t, "starvation", died[0].Cause)
}

func TestHuntedByRemovesAnimalAndEmitsBothEvents(t *testing.T) {
	bus, sys := newAnimalFixture(t, 10)
	id := sys.SpawnAnimal("deer", 0, 0, false)

	var died []eventbus.AnimalDiedPayload
	var hunted []eventbus.AnimalHuntedPayload
	bus.On(eventbus.AnimalDied, func(e eventbus.Event) { died = append(died, e.Payload.(eventbus.AnimalDiedPayload)) })
	bus.On(eventbus.AnimalHunted, func(e eventbus.Event) { hunted = append(hunted, e.Payload.(eventbus.AnimalHuntedPayload)) })

	ok := sys.HuntedBy(id, "hunter-1")
	require.True(t, ok)
	assert.Equal(t, 0, sys.Count())
	require.Len(t, died, 1)
	require.Len(t, hunted, 1)
	assert.Equal(t, "hunter-1", hunted[0].HunterID)
}

func TestHuntedByUnknownAnimalFails(t *testing.T) {
	_, sys := newAnimalFixture(t, 10)
	ok := sys.HuntedBy("ghost", "hunter-1")
	assert.False(t, ok)
}

func TestPreyFleesNearbyPredator(t *testing.T) {
	_, sys := newAnimalFixture(t, 10)
	wolf := sys.SpawnAnimal("wolf", 0, 0, true)
	deer := sys.SpawnAnimal("deer", 1, 0, false)

	require.NoError(t, sys.Update(context.Background(), 100*time.Millisecond))

	d := sys.animals[deer]
	w := sys.animals[wolf]
	require.NotNil(t, d)
	require.NotNil(t, w)
	assert.Equal(t, AnimalFleeing, d.State)
}

func TestSnapshotReturnsCopyOfLivingAnimals(t *testing.T) {
	_, sys := newAnimalFixture(t, 10)
	sys.SpawnAnimal("deer", 0, 0, false)
	sys.SpawnAnimal("wolf", 5, 5, true)

	snap := sys.Snapshot()
	assert.Len(t, snap, 2)
}
