// Package taskqueue implements the per-agent priority Task Queue (C5): a
// pending queue plus at most one active task per agent, with timeout and
// urgent-preemption semantics. Loosely inspired by the shape of the
// teacher's AI decision loop (internal/agents/behavior.go's Decide/Action
// pair) generalized into an explicit, inspectable queue per spec §4.5.
package taskqueue

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crossroads-sim/worldengine/internal/eventbus"
)

// Status is the Task FSM: queued -> active -> completed|failed|timed_out,
// one-way.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Task is one unit of work for an agent's AI layer to execute.
type Task struct {
	ID        string
	AgentID   string
	Type      string
	Priority  int
	Detail    map[string]any
	Status    Status
	EnqueuedAt int64
	StartedAt  int64
}

type agentQueue struct {
	pending []*Task
	active  *Task
}

// Queue is the Task Queue. One Queue instance is shared across all agents;
// Register/Unregister an agent before enqueueing work for it.
type Queue struct {
	mu            sync.Mutex
	agents        map[string]*agentQueue
	maxPerAgent   int
	timeout       time.Duration
	bus           *eventbus.Bus
	now           func() int64
	log           *slog.Logger
}

// Config controls queue limits.
type Config struct {
	MaxTasksPerAgent int
	Timeout          time.Duration // 0 disables timeout checking
}

// New returns a Queue. now supplies the frame-clock timestamp (ms) used to
// stamp tasks and evaluate timeouts; bus receives ai:task_* events.
func New(cfg Config, bus *eventbus.Bus, now func() int64, log *slog.Logger) *Queue {
	if cfg.MaxTasksPerAgent <= 0 {
		cfg.MaxTasksPerAgent = 8
	}
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		agents:      make(map[string]*agentQueue),
		maxPerAgent: cfg.MaxTasksPerAgent,
		timeout:     cfg.Timeout,
		bus:         bus,
		now:         now,
		log:         log,
	}
}

// RegisterAgent creates an empty queue slot for agentID. Enqueue on an
// unregistered agent is rejected.
func (q *Queue) RegisterAgent(agentID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.agents[agentID]; !ok {
		q.agents[agentID] = &agentQueue{}
	}
}

// ClearAgent drops an agent's entire queue (used on agent:removed).
func (q *Queue) ClearAgent(agentID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.agents, agentID)
}

// ClearAll drops every agent's queue.
func (q *Queue) ClearAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.agents = make(map[string]*agentQueue)
}

// Enqueue inserts task at priority (descending-priority order). If the
// agent's pending queue would exceed maxTasksPerAgent, the lowest-priority
// pending entry is replaced iff the new priority is strictly greater;
// otherwise the new task is dropped. Rejects unknown agents.
func (q *Queue) Enqueue(agentID, taskType string, priority int, detail map[string]any) (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	aq, ok := q.agents[agentID]
	if !ok {
		return nil, false
	}
	t := &Task{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		Type:       taskType,
		Priority:   priority,
		Detail:     detail,
		Status:     StatusQueued,
		EnqueuedAt: q.now(),
	}
	if len(aq.pending) >= q.maxPerAgent {
		lowestIdx := -1
		for i, p := range aq.pending {
			if lowestIdx == -1 || p.Priority < aq.pending[lowestIdx].Priority {
				lowestIdx = i
			}
		}
		if lowestIdx == -1 || priority <= aq.pending[lowestIdx].Priority {
			return nil, false
		}
		aq.pending = append(aq.pending[:lowestIdx], aq.pending[lowestIdx+1:]...)
	}
	aq.pending = append(aq.pending, t)
	sort.SliceStable(aq.pending, func(i, j int) bool {
		return aq.pending[i].Priority > aq.pending[j].Priority
	})
	q.emit(eventbus.AITaskStarted, eventbus.AITaskStartedPayload{
		AgentID: agentID, TaskType: taskType, TaskID: t.ID, Priority: priority,
	})
	return t, true
}

// EnqueueUrgent cancels any active task then enqueues task at the maximum
// priority.
func (q *Queue) EnqueueUrgent(agentID, taskType string, detail map[string]any) (*Task, bool) {
	q.cancelActiveLocked(agentID, true)
	return q.Enqueue(agentID, taskType, 100, detail)
}

func (q *Queue) cancelActiveLocked(agentID string, takeLock bool) {
	if takeLock {
		q.mu.Lock()
		defer q.mu.Unlock()
	}
	aq, ok := q.agents[agentID]
	if !ok || aq.active == nil {
		return
	}
	aq.active = nil
}

// CancelActive silently clears the active task, if any.
func (q *Queue) CancelActive(agentID string) {
	q.cancelActiveLocked(agentID, true)
}

// GetNextTask returns the agent's current active task, promoting the
// highest-priority pending task to active if there is none, or if the
// current active task has timed out (which fails it first).
func (q *Queue) GetNextTask(agentID string) (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	aq, ok := q.agents[agentID]
	if !ok {
		return nil, false
	}
	if aq.active != nil {
		if q.timeout > 0 && q.now()-aq.active.StartedAt >= q.timeout.Milliseconds() {
			q.failTaskLocked(agentID, aq, "timeout")
		} else {
			return aq.active, true
		}
	}
	if len(aq.pending) == 0 {
		return nil, false
	}
	next := aq.pending[0]
	aq.pending = aq.pending[1:]
	next.Status = StatusActive
	next.StartedAt = q.now()
	aq.active = next
	return next, true
}

// CompleteTask clears the active task and emits ai:task_completed.
func (q *Queue) CompleteTask(agentID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	aq, ok := q.agents[agentID]
	if !ok || aq.active == nil {
		return
	}
	t := aq.active
	t.Status = StatusCompleted
	aq.active = nil
	q.emit(eventbus.AITaskCompleted, eventbus.AITaskCompletedPayload{
		AgentID: agentID, TaskID: t.ID, DurationMS: q.now() - t.StartedAt,
	})
}

// FailTask clears the active task and emits ai:task_failed with reason.
func (q *Queue) FailTask(agentID, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	aq, ok := q.agents[agentID]
	if !ok {
		return
	}
	q.failTaskLocked(agentID, aq, reason)
}

func (q *Queue) failTaskLocked(agentID string, aq *agentQueue, reason string) {
	if aq.active == nil {
		return
	}
	t := aq.active
	if reason == "timeout" {
		t.Status = StatusTimedOut
	} else {
		t.Status = StatusFailed
	}
	aq.active = nil
	q.emit(eventbus.AITaskFailed, eventbus.AITaskFailedPayload{
		AgentID: agentID, TaskID: t.ID, Reason: reason,
	})
}

// HasTasks reports whether agentID has a pending or active task.
func (q *Queue) HasTasks(agentID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	aq, ok := q.agents[agentID]
	if !ok {
		return false
	}
	return aq.active != nil || len(aq.pending) > 0
}

// HasTaskOfType reports whether any pending or active task matches taskType.
func (q *Queue) HasTaskOfType(agentID, taskType string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	aq, ok := q.agents[agentID]
	if !ok {
		return false
	}
	if aq.active != nil && aq.active.Type == taskType {
		return true
	}
	for _, t := range aq.pending {
		if t.Type == taskType {
			return true
		}
	}
	return false
}

// GetPendingCount returns the number of pending (not active) tasks.
func (q *Queue) GetPendingCount(agentID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	aq, ok := q.agents[agentID]
	if !ok {
		return 0
	}
	return len(aq.pending)
}

// GetPendingTasks returns a copy of the pending queue, highest priority first.
func (q *Queue) GetPendingTasks(agentID string) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	aq, ok := q.agents[agentID]
	if !ok {
		return nil
	}
	out := make([]*Task, len(aq.pending))
	copy(out, aq.pending)
	return out
}

// GetActiveTask returns the agent's active task, if any.
func (q *Queue) GetActiveTask(agentID string) (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	aq, ok := q.agents[agentID]
	if !ok || aq.active == nil {
		return nil, false
	}
	return aq.active, true
}

func (q *Queue) emit(name eventbus.Name, payload any) {
	if q.bus == nil {
		return
	}
	q.bus.Emit(name, payload, q.now())
}
