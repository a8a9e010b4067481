package systems

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/ports"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

// BuildingKind is what a construction job produces.
type BuildingKind string

const (
	BuildingHouse      BuildingKind = "house"
	BuildingMine       BuildingKind = "mine"
	BuildingWorkbench  BuildingKind = "workbench"
)

// BuildJob is one proposed-then-resolved construction job. Grounded on the
// teacher's settlement founding/expansion flow
// (_examples/tobyjaguar-mini-world/internal/engine/settlement_lifecycle.go),
// generalized from "found a whole settlement" to "build one structure in
// one zone", with an explicit reservation so two jobs can't claim the same
// zone at once.
type BuildJob struct {
	ID       string
	ZoneID   string
	Kind     BuildingKind
	Progress float64 // 0..1
}

var kindCaps = map[BuildingKind]int{
	BuildingHouse:     tuning.MaxHouses,
	BuildingMine:      tuning.MaxMines,
	BuildingWorkbench: tuning.MaxWorkbenches,
}

// BuildingSystem implements SPEC_FULL.md §4.8.8 (SLOW).
type BuildingSystem struct {
	bus *eventbus.Bus
	now func() int64

	mu        sync.Mutex
	jobs      map[string]*BuildJob
	reserved  map[string]string // zoneID -> jobID holding the reservation
	completed map[BuildingKind]int
}

// NewBuildingSystem returns a BuildingSystem.
func NewBuildingSystem(bus *eventbus.Bus, now func() int64) *BuildingSystem {
	return &BuildingSystem{
		bus: bus, now: now,
		jobs: make(map[string]*BuildJob), reserved: make(map[string]string),
		completed: make(map[BuildingKind]int),
	}
}

// ProposeJob implements ports.BuildingPort. label names the BuildingKind.
// Rejected if the zone already has a reservation, or the kind is already at
// its population cap.
func (s *BuildingSystem) ProposeJob(zoneID, label string) ports.HandlerResult {
	kind := BuildingKind(label)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.reserved[zoneID]; held {
		return ports.Failed("building", "zone already has a job in progress")
	}
	if cap, known := kindCaps[kind]; known && s.completed[kind] >= cap {
		return ports.Failed("building", "kind at capacity")
	}
	job := &BuildJob{ID: uuid.NewString(), ZoneID: zoneID, Kind: kind}
	s.jobs[job.ID] = job
	s.reserved[zoneID] = job.ID
	return ports.InProgress("building")
}

// Update implements scheduler.UpdateFunc: advances every in-progress job;
// a completed job releases its zone reservation and increments the kind's
// count against its cap.
func (s *BuildingSystem) Update(ctx context.Context, dt time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rate := dt.Seconds() / 60.0 // one job takes roughly a simulated minute
	for id, job := range s.jobs {
		job.Progress += rate
		if job.Progress < 1.0 {
			continue
		}
		delete(s.jobs, id)
		delete(s.reserved, job.ZoneID)
		s.completed[job.Kind]++
		s.bus.Emit(eventbus.ProductionOutput, eventbus.ProductionOutputPayload{
			ZoneID: job.ZoneID, Resource: "building:" + string(job.Kind), Amount: 1,
		}, s.now())
	}
	return nil
}

// CountOf returns how many of kind have been completed so far.
func (s *BuildingSystem) CountOf(kind BuildingKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed[kind]
}
