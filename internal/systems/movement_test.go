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

func newMovementFixture(t *testing.T) (*ecs.Store, *eventbus.Bus, *MovementSystem) {
	t.Helper()
	store := ecs.New()
	bus := eventbus.New(nil)
	bus.SetBatchingEnabled(false)
	bounds := WorldBounds{MinX: -1000, MinY: -1000, MaxX: 1000, MaxY: 1000}
	sys := NewMovementSystem(store, bus, func() int64 { return 0 }, bounds, nil, nil)
	return store, bus, sys
}

// TestMovementArrival is seed scenario 6 from SPEC_FULL.md §8: requestMove
// to (100,0) from the origin at speed 10 arrives after ~10s of FAST ticks,
// firing movement:arrived exactly once.
func TestMovementArrival(t *testing.T) {
	store, bus, sys := newMovementFixture(t)
	store.RegisterAgent("a")
	require.NoError(t, store.SetTransform("a", ecs.Transform{X: 0, Y: 0}))
	require.NoError(t, store.SetMovement("a", ecs.Movement{Speed: 10, BaseSpeed: 10}))

	var arrivals []eventbus.MovementArrivedPayload
	bus.On(eventbus.MovementArrived, func(e eventbus.Event) {
		arrivals = append(arrivals, e.Payload.(eventbus.MovementArrivedPayload))
	})

	res := sys.RequestMove("a", 100, 0)
	assert.Equal(t, "completed", string(res.Status))

	for i := 0; i < 250; i++ { // 250 * 50ms = 12.5s, comfortably past arrival
		require.NoError(t, sys.Update(context.Background(), 50*time.Millisecond))
	}

	require.Len(t, arrivals, 1)
	assert.InDelta(t, 100, arrivals[0].X, 0.5)
	assert.InDelta(t, 0, arrivals[0].Y, 0.5)

	m, _ := store.GetMovement("a")
	assert.False(t, m.IsMoving)
}

func TestRequestMoveOutOfBoundsFails(t *testing.T) {
	store, bus, sys := newMovementFixture(t)
	store.RegisterAgent("a")
	require.NoError(t, store.SetTransform("a", ecs.Transform{}))
	require.NoError(t, store.SetMovement("a", ecs.Movement{Speed: 10}))

	var failed []eventbus.MovementFailedPayload
	bus.On(eventbus.MovementFailed, func(e eventbus.Event) {
		failed = append(failed, e.Payload.(eventbus.MovementFailedPayload))
	})

	res := sys.RequestMove("a", 99999, 0)
	assert.Equal(t, "failed", string(res.Status))
	require.Len(t, failed, 1)

	m, _ := store.GetMovement("a")
	assert.False(t, m.IsMoving)
}

func TestStopMovementClearsTarget(t *testing.T) {
	store, _, sys := newMovementFixture(t)
	store.RegisterAgent("a")
	require.NoError(t, store.SetTransform("a", ecs.Transform{}))
	require.NoError(t, store.SetMovement("a", ecs.Movement{Speed: 10}))

	sys.RequestMove("a", 50, 50)
	res := sys.StopMovement("a")
	assert.Equal(t, "completed", string(res.Status))

	m, _ := store.GetMovement("a")
	assert.False(t, m.IsMoving)
	assert.Empty(t, m.Waypoints)
}

func TestPositionClampedToWorldBounds(t *testing.T) {
	store := ecs.New()
	bus := eventbus.New(nil)
	bus.SetBatchingEnabled(false)
	bounds := WorldBounds{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	sys := NewMovementSystem(store, bus, func() int64 { return 0 }, bounds, nil, nil)

	store.RegisterAgent("a")
	require.NoError(t, store.SetTransform("a", ecs.Transform{X: 9, Y: 9}))
	require.NoError(t, store.SetMovement("a", ecs.Movement{Speed: 1000, BaseSpeed: 1000}))

	sys.RequestMove("a", 10, 10)
	require.NoError(t, sys.Update(context.Background(), time.Second))

	tr, _ := store.GetTransform("a")
	assert.LessOrEqual(t, tr.X, 10.0)
	assert.LessOrEqual(t, tr.Y, 10.0)
}
