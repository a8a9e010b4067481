package taskqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossroads-sim/worldengine/internal/eventbus"
)

// fakeClock lets tests advance frame time deterministically instead of
// racing the OS clock, matching the Queue constructor's `now func() int64`
// injection point.
type fakeClock struct{ ms int64 }

func (c *fakeClock) now() int64    { return c.ms }
func (c *fakeClock) advance(d int64) { c.ms += d }

func newTestQueue(t *testing.T, cfg Config) (*Queue, *fakeClock, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New(nil)
	bus.SetBatchingEnabled(false)
	clk := &fakeClock{}
	q := New(cfg, bus, clk.now, nil)
	return q, clk, bus
}

func TestEnqueueRejectsUnknownAgent(t *testing.T) {
	q, _, _ := newTestQueue(t, Config{})
	_, ok := q.Enqueue("ghost", "eat", 50, nil)
	assert.False(t, ok)
}

// TestTaskPriorityOrdering is seed scenario 5 from SPEC_FULL.md §8.
func TestTaskPriorityOrdering(t *testing.T) {
	q, _, _ := newTestQueue(t, Config{})
	q.RegisterAgent("a")

	t1, ok := q.Enqueue("a", "t1", 30, nil)
	require.True(t, ok)
	t2, ok := q.Enqueue("a", "t2", 70, nil)
	require.True(t, ok)
	t3, ok := q.Enqueue("a", "t3", 50, nil)
	require.True(t, ok)

	next, ok := q.GetNextTask("a")
	require.True(t, ok)
	assert.Equal(t, t2.ID, next.ID)
	q.CompleteTask("a")

	next, ok = q.GetNextTask("a")
	require.True(t, ok)
	assert.Equal(t, t3.ID, next.ID)
	q.CompleteTask("a")

	next, ok = q.GetNextTask("a")
	require.True(t, ok)
	assert.Equal(t, t1.ID, next.ID)
}

func TestGetNextTaskReturnsActiveTaskUntilComplete(t *testing.T) {
	q, _, _ := newTestQueue(t, Config{})
	q.RegisterAgent("a")
	q.Enqueue("a", "eat", 50, nil)

	first, ok := q.GetNextTask("a")
	require.True(t, ok)
	second, ok := q.GetNextTask("a")
	require.True(t, ok)
	assert.Equal(t, first.ID, second.ID, "an active task must not be re-popped from pending")
}

// TestEnqueueUrgentCancelsActiveTask is the boundary case named in
// SPEC_FULL.md §8: enqueueUrgent while an active task exists cancels it
// and surfaces the new one on the next getNextTask.
func TestEnqueueUrgentCancelsActiveTask(t *testing.T) {
	q, _, _ := newTestQueue(t, Config{})
	q.RegisterAgent("a")
	q.Enqueue("a", "gather", 50, nil)
	active, ok := q.GetNextTask("a")
	require.True(t, ok)
	assert.Equal(t, "gather", active.Type)

	q.EnqueueUrgent("a", "flee", nil)

	next, ok := q.GetNextTask("a")
	require.True(t, ok)
	assert.Equal(t, "flee", next.Type)
	assert.Equal(t, 100, next.Priority)
}

// TestTaskTimeoutFiresAtDeadlineNotBefore covers the boundary case:
// timeout must not fire strictly before the deadline, and fires exactly at it.
func TestTaskTimeoutFiresAtDeadlineNotBefore(t *testing.T) {
	q, clk, bus := newTestQueue(t, Config{Timeout: 10 * time.Second})
	q.RegisterAgent("a")
	q.Enqueue("a", "eat", 50, nil)
	_, ok := q.GetNextTask("a")
	require.True(t, ok)

	clk.advance(9999) // 1ms before the deadline
	_, ok = q.GetNextTask("a")
	require.True(t, ok, "must not time out before the deadline")

	var failed []eventbus.AITaskFailedPayload
	bus.On(eventbus.AITaskFailed, func(e eventbus.Event) {
		failed = append(failed, e.Payload.(eventbus.AITaskFailedPayload))
	})

	clk.advance(1) // now exactly at 10000ms == the timeout
	_, ok = q.GetNextTask("a")
	require.False(t, ok, "exactly-at-deadline must time out (>=, not >) and promote the next pending task if any")
	assert.Len(t, failed, 1)
	assert.Equal(t, "timeout", failed[0].Reason)
}

func TestMaxTasksPerAgentReplacesLowestPriorityOnlyIfStrictlyGreater(t *testing.T) {
	q, _, _ := newTestQueue(t, Config{MaxTasksPerAgent: 2})
	q.RegisterAgent("a")
	q.Enqueue("a", "low", 10, nil)
	q.Enqueue("a", "mid", 20, nil)

	// Equal-or-lower priority than the current lowest (10): dropped.
	_, ok := q.Enqueue("a", "tie", 10, nil)
	assert.False(t, ok)
	assert.Equal(t, 2, q.GetPendingCount("a"))

	// Strictly greater than the current lowest (10): replaces it.
	task, ok := q.Enqueue("a", "high", 30, nil)
	require.True(t, ok)
	assert.Equal(t, 2, q.GetPendingCount("a"))
	pending := q.GetPendingTasks("a")
	var types []string
	for _, p := range pending {
		types = append(types, p.Type)
	}
	assert.Contains(t, types, "mid")
	assert.Contains(t, types, "high")
	assert.NotContains(t, types, "low")
	assert.Equal(t, "high", task.Type)
}

func TestCompleteAndFailTaskEmitEvents(t *testing.T) {
	q, _, bus := newTestQueue(t, Config{})
	var completed, failed int
	bus.On(eventbus.AITaskCompleted, func(e eventbus.Event) { completed++ })
	bus.On(eventbus.AITaskFailed, func(e eventbus.Event) { failed++ })

	q.RegisterAgent("a")
	q.Enqueue("a", "eat", 50, nil)
	q.GetNextTask("a")
	q.CompleteTask("a")
	assert.Equal(t, 1, completed)

	q.Enqueue("a", "drink", 50, nil)
	q.GetNextTask("a")
	q.FailTask("a", "interrupted")
	assert.Equal(t, 1, failed)
}

func TestHasTasksAndHasTaskOfType(t *testing.T) {
	q, _, _ := newTestQueue(t, Config{})
	q.RegisterAgent("a")
	assert.False(t, q.HasTasks("a"))

	q.Enqueue("a", "eat", 50, nil)
	assert.True(t, q.HasTasks("a"))
	assert.True(t, q.HasTaskOfType("a", "eat"))
	assert.False(t, q.HasTaskOfType("a", "drink"))
}

func TestClearAgentAndClearAll(t *testing.T) {
	q, _, _ := newTestQueue(t, Config{})
	q.RegisterAgent("a")
	q.RegisterAgent("b")
	q.Enqueue("a", "eat", 50, nil)
	q.Enqueue("b", "eat", 50, nil)

	q.ClearAgent("a")
	assert.False(t, q.HasTasks("a"))

	q.ClearAll()
	_, ok := q.Enqueue("b", "drink", 50, nil)
	assert.False(t, ok, "ClearAll removes the agent registration itself")
}
