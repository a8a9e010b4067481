package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitBatchesUntilFlush(t *testing.T) {
	b := New(nil)
	var got []Name
	b.On(MovementArrived, func(e Event) { got = append(got, e.Name) })

	b.Emit(MovementArrived, MovementArrivedPayload{AgentID: "a"}, 100)
	assert.Equal(t, 1, b.GetQueueSize())
	assert.Empty(t, got, "batched emit must not dispatch synchronously")

	b.FlushEvents()
	assert.Equal(t, []Name{MovementArrived}, got)
	assert.Equal(t, 0, b.GetQueueSize())
}

func TestEmitDispatchOrderMatchesEnqueueOrder(t *testing.T) {
	b := New(nil)
	var order []string
	b.On(AgentBorn, func(e Event) { order = append(order, "born") })
	b.On(AgentRemoved, func(e Event) { order = append(order, "removed") })

	b.Emit(AgentBorn, nil, 0)
	b.Emit(AgentRemoved, nil, 0)
	b.Emit(AgentBorn, nil, 0)
	b.FlushEvents()

	assert.Equal(t, []string{"born", "removed", "born"}, order)
}

// TestFlushDrainsEventsEmittedByHandlers covers the "handler emits further
// events during flush; they are flushed in the same pass" rule.
func TestFlushDrainsEventsEmittedByHandlers(t *testing.T) {
	b := New(nil)
	var order []string
	b.On(NeedsCritical, func(e Event) {
		order = append(order, "critical")
		b.Emit(NeedsRecovered, nil, 0)
	})
	b.On(NeedsRecovered, func(e Event) { order = append(order, "recovered") })

	b.Emit(NeedsCritical, nil, 0)
	b.FlushEvents()

	assert.Equal(t, []string{"critical", "recovered"}, order)
	assert.Equal(t, 0, b.GetQueueSize())
}

// TestHandlerPanicDoesNotBlockLaterHandlers is the boundary case: a
// handler that throws must not prevent later handlers of the same event
// (or later events) from running.
func TestHandlerPanicDoesNotBlockLaterHandlers(t *testing.T) {
	b := New(nil)
	var ranSecond, ranOther bool
	b.On(CombatKill, func(e Event) { panic("boom") })
	b.On(CombatKill, func(e Event) { ranSecond = true })
	b.On(AgentRemoved, func(e Event) { ranOther = true })

	b.Emit(CombatKill, nil, 0)
	b.Emit(AgentRemoved, nil, 0)
	require.NotPanics(t, func() { b.FlushEvents() })

	assert.True(t, ranSecond)
	assert.True(t, ranOther)
}

func TestOnceFiresOnlyOnce(t *testing.T) {
	b := New(nil)
	count := 0
	b.Once(AgentBorn, func(e Event) { count++ })

	b.Emit(AgentBorn, nil, 0)
	b.Emit(AgentBorn, nil, 0)
	b.FlushEvents()

	assert.Equal(t, 1, count)
}

func TestSetBatchingDisabledFlushesImmediately(t *testing.T) {
	b := New(nil)
	var got int
	b.On(AgentBorn, func(e Event) { got++ })

	b.Emit(AgentBorn, nil, 0)
	assert.Equal(t, 1, b.GetQueueSize())

	b.SetBatchingEnabled(false)
	assert.Equal(t, 1, got, "disabling batching must flush the pending queue")
	assert.Equal(t, 0, b.GetQueueSize())

	// With batching off, further emits dispatch synchronously.
	b.Emit(AgentBorn, nil, 0)
	assert.Equal(t, 2, got)
	assert.Equal(t, 0, b.GetQueueSize())
}

func TestClearQueueDiscardsWithoutDispatch(t *testing.T) {
	b := New(nil)
	var got int
	b.On(AgentBorn, func(e Event) { got++ })

	b.Emit(AgentBorn, nil, 0)
	b.ClearQueue()
	b.FlushEvents()

	assert.Equal(t, 0, got)
}

// TestReemittingSameBatchTwiceMatchesEmittingTwiceSeparately is the
// idempotence law from SPEC_FULL.md §8: re-emitting the same event batch
// twice after a ClearQueue between them has the same effect as emitting
// once then once.
func TestReemittingSameBatchTwiceMatchesEmittingTwiceSeparately(t *testing.T) {
	b := New(nil)
	var count int
	b.On(AgentBorn, func(e Event) { count++ })

	b.Emit(AgentBorn, nil, 0)
	b.FlushEvents()
	b.ClearQueue()
	b.Emit(AgentBorn, nil, 0)
	b.FlushEvents()

	assert.Equal(t, 2, count)
	assert.EqualValues(t, 2, b.TotalEvents())
}

func TestOffRemovesHandlers(t *testing.T) {
	b := New(nil)
	called := false
	b.On(AgentBorn, func(e Event) { called = true })
	b.Off(AgentBorn)

	b.Emit(AgentBorn, nil, 0)
	b.FlushEvents()

	assert.False(t, called)
}
