package systems

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

func newBuildingFixture(t *testing.T) (*eventbus.Bus, *BuildingSystem) {
	t.Helper()
	bus := eventbus.New(nil)
	bus.SetBatchingEnabled(false)
	return bus, NewBuildingSystem(bus, func() int64 { return 0 })
}

func TestProposeJobRejectsDoubleReservation(t *testing.T) {
	_, sys := newBuildingFixture(t)

	res := sys.ProposeJob("z1", string(BuildingHouse))
	assert.Equal(t, "in_progress", string(res.Status))

	res2 := sys.ProposeJob("z1", string(BuildingMine))
	assert.Equal(t, "failed", string(res2.Status))
}

func TestProposeJobRejectsAtCapacity(t *testing.T) {
	_, sys := newBuildingFixture(t)
	sys.completed[BuildingHouse] = tuning.MaxHouses

	res := sys.ProposeJob("z-extra", string(BuildingHouse))
	assert.Equal(t, "failed", string(res.Status))
}

func TestJobCompletesAfterSimulatedMinuteAndReleasesReservation(t *testing.T) {
	bus, sys := newBuildingFixture(t)
	var outputs []eventbus.ProductionOutputPayload
	bus.On(eventbus.ProductionOutput, func(e eventbus.Event) {
		outputs = append(outputs, e.Payload.(eventbus.ProductionOutputPayload))
	})

	res := sys.ProposeJob("z1", string(BuildingWorkbench))
	require.Equal(t, "in_progress", string(res.Status))

	require.NoError(t, sys.Update(context.Background(), 61*time.Second))

	require.Len(t, outputs, 1)
	assert.Equal(t, "z1", outputs[0].ZoneID)
	assert.Equal(t, 1, sys.CountOf(BuildingWorkbench))

	// reservation released: a new job can now be proposed in the same zone
	res2 := sys.ProposeJob("z1", string(BuildingWorkbench))
	assert.Equal(t, "in_progress", string(res2.Status))
}

func TestJobInProgressDoesNotEmitBeforeCompletion(t *testing.T) {
	bus, sys := newBuildingFixture(t)
	var outputs int
	bus.On(eventbus.ProductionOutput, func(e eventbus.Event) { outputs++ })

	sys.ProposeJob("z1", string(BuildingHouse))
	require.NoError(t, sys.Update(context.Background(), 10*time.Second))

	assert.Equal(t, 0, outputs)
	assert.Equal(t, 0, sys.CountOf(BuildingHouse))
}
