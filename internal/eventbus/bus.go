// Package eventbus implements the typed, batched event bus (C2). It is the
// generalization of the teacher's ad hoc Subscribe/Unsubscribe/EmitEvent
// channel fan-out (internal/engine/simulation.go) into a closed,
// discriminated event-name set with in-tick batching and a postTick flush.
package eventbus

import (
	"log/slog"
	"sync"
)

// Handler processes one event. A panicking handler is recovered by the
// bus so that later handlers of the same event, and later events in the
// same flush, still run.
type Handler func(Event)

// Bus is the event bus. Zero value is not usable; use New.
type Bus struct {
	mu            sync.Mutex
	handlers      map[Name][]Handler
	once          map[Name][]Handler
	queue         []Event
	batching      bool
	totalEvents   uint64
	log           *slog.Logger
}

// New returns a Bus with batching enabled by default, per SPEC_FULL.md §4.2.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		handlers: make(map[Name][]Handler),
		once:     make(map[Name][]Handler),
		batching: true,
		log:      log,
	}
}

// On registers a persistent handler for name.
func (b *Bus) On(name Name, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Once registers a handler that fires at most once then is removed.
func (b *Bus) Once(name Name, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.once[name] = append(b.once[name], h)
}

// Off removes ALL handlers (persistent and once) registered for name (the
// common case: a subsystem shutting down its own subscription list). Go
// cannot compare func values, so a single handler cannot be removed on
// its own.
func (b *Bus) Off(name Name) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, name)
	delete(b.once, name)
}

// SetBatchingEnabled toggles batching. Disabling flushes any queued events
// first.
func (b *Bus) SetBatchingEnabled(enabled bool) {
	b.mu.Lock()
	wasBatching := b.batching
	b.batching = enabled
	b.mu.Unlock()
	if wasBatching && !enabled {
		b.FlushEvents()
	}
}

// GetQueueSize returns the number of events currently queued.
func (b *Bus) GetQueueSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// ClearQueue discards any queued events without dispatching them.
func (b *Bus) ClearQueue() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = nil
}

// TotalEvents returns the lifetime count of emitted events.
func (b *Bus) TotalEvents() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalEvents
}

// Emit records an event. When batching is enabled (the default) it is
// appended to the in-tick queue for the next FlushEvents; otherwise it
// dispatches synchronously.
func (b *Bus) Emit(name Name, payload any, frameTimeMS int64) {
	ev := Event{Name: name, Payload: payload, Timestamp: frameTimeMS}
	b.mu.Lock()
	b.totalEvents++
	batching := b.batching
	if batching {
		b.queue = append(b.queue, ev)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	b.dispatch(ev)
}

// FlushEvents dispatches every queued event in enqueue order, draining to
// empty even if a handler emits further events during the flush (they are
// appended to the same queue and processed in the same pass).
func (b *Bus) FlushEvents() {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		ev := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()
		b.dispatch(ev)
	}
}

func (b *Bus) dispatch(ev Event) {
	b.mu.Lock()
	hs := append([]Handler(nil), b.handlers[ev.Name]...)
	once := b.once[ev.Name]
	if len(once) > 0 {
		delete(b.once, ev.Name)
	}
	b.mu.Unlock()

	for _, h := range hs {
		b.safeCall(ev, h)
	}
	for _, h := range once {
		b.safeCall(ev, h)
	}
}

func (b *Bus) safeCall(ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				slog.String("event", string(ev.Name)),
				slog.Any("recover", r),
			)
		}
	}()
	h(ev)
}
