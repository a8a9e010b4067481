// Command worldsim runs the world simulation engine: it wires the Store,
// Event Bus, Task Queue, System Registry, and every subsystem together
// behind the Multi-Rate Scheduler, then exposes the result over the
// Transport layer's WebSocket/REST admin surface. This is the composition
// root; every package it imports is otherwise free of cross-imports among
// siblings, reaching each other only through internal/ports + internal/registry.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/crossroads-sim/worldengine/internal/clock"
	"github.com/crossroads-sim/worldengine/internal/config"
	"github.com/crossroads-sim/worldengine/internal/ecs"
	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/metrics"
	"github.com/crossroads-sim/worldengine/internal/persistence"
	"github.com/crossroads-sim/worldengine/internal/ports"
	"github.com/crossroads-sim/worldengine/internal/registry"
	"github.com/crossroads-sim/worldengine/internal/scheduler"
	"github.com/crossroads-sim/worldengine/internal/snapshot"
	"github.com/crossroads-sim/worldengine/internal/society"
	"github.com/crossroads-sim/worldengine/internal/spatial"
	"github.com/crossroads-sim/worldengine/internal/systems"
	"github.com/crossroads-sim/worldengine/internal/taskqueue"
	"github.com/crossroads-sim/worldengine/internal/transport"
	"github.com/crossroads-sim/worldengine/internal/tuning"
	"github.com/crossroads-sim/worldengine/internal/world"
	"github.com/crossroads-sim/worldengine/internal/worldgen"
)

// banner prints the startup line, colorized only when stdout is a real
// terminal — the teacher's own CLI banner convention, generalized from a
// fixed ANSI-always style to one that degrades cleanly when piped to a
// log file or CI, where escape codes would just be noise.
func banner(msg string) {
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		fmt.Printf("\x1b[1;36m%s\x1b[0m\n", msg)
		return
	}
	fmt.Println(msg)
}

// engine bundles every wired subsystem and implements
// transport.CommandHandler, the narrow control surface the WebSocket hub
// and REST server both drive.
type engine struct {
	cfg config.Config
	log *slog.Logger
	db  *persistence.DB

	store *ecs.Store
	bus   *eventbus.Bus
	clk   *clock.Clock
	tasks *taskqueue.Queue
	agentGrid *spatial.Grid
	reg   *registry.Registry
	sched *scheduler.Scheduler
	zones *world.ZoneManager
	wrld  *world.World

	needs       *systems.NeedsSystem
	movement    *systems.MovementSystem
	combat      *systems.CombatSystem
	inventory   *systems.InventorySystem
	social      *systems.SocialSystem
	lifecycle   *systems.LifecycleSystem
	production  *systems.ProductionSystem
	building    *systems.BuildingSystem
	market      *systems.MarketSystem
	governance  *systems.GovernanceSystem
	recipes     *systems.RecipeDiscoverySystem
	equipment   *systems.EquipmentSystem
	favor       *systems.DivineFavorSystem
	emergence   *systems.EmergenceSystem
	conflict    *systems.ConflictResolutionSystem
	genealogy   *systems.GenealogySystem
	animals     *systems.AnimalSystem

	metrics *metrics.Collector
	hub     *transport.Hub
	server  *transport.Server

	metricsStop chan struct{}
	hubStop     chan struct{}
}

func newEngine(cfg config.Config, log *slog.Logger) *engine {
	e := &engine{cfg: cfg, log: log}

	e.store = ecs.New()
	e.bus = eventbus.New(log)
	e.clk = clock.New()
	e.agentGrid = spatial.New(tuning.EngagementRadiusUnarmed * 4)
	e.reg = registry.New()
	e.zones = world.NewZoneManager()
	e.tasks = taskqueue.New(taskqueue.Config{
		MaxTasksPerAgent: tuning.MaxTasksPerAgent,
		Timeout:          tuning.DefaultTaskTimeout,
	}, e.bus, e.clk.Now, log)

	gen := worldgen.NewSimplexGenerator()
	e.wrld = world.New(gen, 16, cfg.Seed, func(cx, cy int) {
		e.bus.Emit(eventbus.ChunkRendered, eventbus.ChunkRenderedPayload{ChunkX: cx, ChunkY: cy}, e.clk.Now())
	})

	bounds := systems.WorldBounds{MinX: -2000, MinY: -2000, MaxX: 2000, MaxY: 2000}
	e.needs = systems.NewNeedsSystem(e.store, e.bus, e.clk.Now, log)
	e.movement = systems.NewMovementSystem(e.store, e.bus, e.clk.Now, bounds, e.zones, log)
	e.combat = systems.NewCombatSystem(e.store, e.bus, e.agentGrid, e.clk.Now, cfg.Seed+1, log)
	e.inventory = systems.NewInventorySystem(e.store, e.bus, e.clk.Now)
	e.social = systems.NewSocialSystem(e.store, e.bus, e.agentGrid, e.clk.Now)
	e.lifecycle = systems.NewLifecycleSystem(e.store, e.bus, e.tasks, e.clk.Now, cfg.Seed+2)
	e.production = systems.NewProductionSystem(e.store, e.bus, e.zones, e.clk.Now)
	e.building = systems.NewBuildingSystem(e.bus, e.clk.Now)
	e.governance = systems.NewGovernanceSystem(e.store, e.bus, e.clk.Now)
	e.market = systems.NewMarketSystem(e.store, e.governance, nil)
	e.recipes = systems.NewRecipeDiscoverySystem(e.store, e.inventory, e.bus, e.clk.Now, cfg.Seed+3)
	e.equipment = systems.NewEquipmentSystem(e.store, e.bus, e.clk.Now)
	e.genealogy = systems.NewGenealogySystem(e.bus)
	e.favor = systems.NewDivineFavorSystem(e.store, e.bus, e.clk.Now, e.genealogy)
	e.emergence = systems.NewEmergenceSystem(e.store, e.bus, e.clk.Now, e.genealogy)
	e.conflict = systems.NewConflictResolutionSystem(e.bus, e.social, e.clk.Now, cfg.Seed+4)
	e.animals = systems.NewAnimalSystem(e.bus, e.clk.Now, cfg.Seed+5, e.agentGrid, cfg.MaxAnimals)

	e.combat.SetLifecyclePort(e.lifecycle)
	e.needs.DivineModifier = e.favor.DivineModifier
	e.bus.On(eventbus.ChunkRendered, func(ev eventbus.Event) { e.animals.OnChunkRendered(ev) })

	e.registerPorts()
	e.buildScheduler()

	e.metrics = metrics.New(e.store, e.sched, e.bus, e.clk.Now, log, e.animals.Count)
	e.hub = transport.NewHub(e, log)
	e.server = transport.NewServer(cfg.Port, cfg.AdminKey, cfg.Codec, e, e.hub, e.metrics, e.exportSnapshot, log)

	if db, err := persistence.Open(cfg.DBPath); err != nil {
		log.Error("opening persistence db, continuing without it", "path", cfg.DBPath, "err", err)
	} else {
		e.db = db
		e.db.Subscribe(e.bus)
	}

	return e
}

// registerPorts publishes every subsystem's capability under its
// registry.* name, per SPEC_FULL.md §4.6. Nothing in internal/systems
// imports the registry itself; only this composition root does the
// resolving, so systems stay reachable purely through internal/ports.
func (e *engine) registerPorts() {
	e.reg.Register(registry.Movement, e.movement)
	e.reg.Register(registry.Combat, e.combat)
	e.reg.Register(registry.Inventory, e.inventory)
	e.reg.Register(registry.Needs, e.needs)
	e.reg.Register(registry.Social, e.social)
	e.reg.Register(registry.Crafting, e.recipes)
	e.reg.Register(registry.Building, e.building)
	e.reg.Register(registry.Trade, e.market)
	e.reg.Register(registry.Equipment, e.equipment)
	e.reg.Register(registry.Favor, e.favor)
	e.reg.Register(registry.Lifecycle, e.lifecycle)
}

// movementPort resolves the movement capability out of the registry with
// the expected port interface, for any caller that wants to reach the
// subsystem exclusively through internal/ports rather than this engine's
// concrete fields. It is the only such resolver defined here.
func (e *engine) movementPort() (ports.MovementPort, bool) {
	v, ok := e.reg.Get(registry.Movement)
	if !ok {
		return nil, false
	}
	p, ok := v.(ports.MovementPort)
	return p, ok
}

func (e *engine) buildScheduler() {
	e.sched = scheduler.New(scheduler.Config{
		FastPeriod:   time.Duration(e.cfg.FastMS) * time.Millisecond,
		MediumPeriod: time.Duration(e.cfg.MediumMS) * time.Millisecond,
		SlowPeriod:   time.Duration(e.cfg.SlowMS) * time.Millisecond,
	}, scheduler.Hooks{
		PreTick:     e.preTick,
		PostTick:    e.postTick,
		EntityCount: e.store.GetAgentCount,
	}, e.clk, e.log)

	e.sched.Register(&scheduler.System{Name: "movement", Rate: scheduler.Fast, Update: e.movement.Update, Enabled: true})
	e.sched.Register(&scheduler.System{Name: "animals", Rate: scheduler.Medium, Update: e.animals.Update, Enabled: true})

	e.sched.Register(&scheduler.System{Name: "needs", Rate: scheduler.Medium, Update: e.needs.Update, Enabled: true})
	e.sched.Register(&scheduler.System{Name: "combat", Rate: scheduler.Medium, Update: e.combat.Update, Enabled: true})
	e.sched.Register(&scheduler.System{Name: "inventory", Rate: scheduler.Medium, Update: e.inventory.Update, Enabled: true})
	e.sched.Register(&scheduler.System{Name: "social", Rate: scheduler.Medium, Update: e.social.Update, Enabled: true})
	e.sched.Register(&scheduler.System{Name: "production", Rate: scheduler.Slow, Update: e.production.Update, Enabled: true})
	e.sched.Register(&scheduler.System{Name: "conflict", Rate: scheduler.Medium, Update: e.conflict.Update, Enabled: true})
	e.sched.Register(&scheduler.System{Name: "equipment", Rate: scheduler.Medium, Update: e.equipment.Update, Enabled: true})
	e.sched.Register(&scheduler.System{Name: "recipes", Rate: scheduler.Medium, Update: e.recipes.Update, Enabled: true})

	e.sched.Register(&scheduler.System{Name: "lifecycle", Rate: scheduler.Slow, Update: e.lifecycle.Update, Enabled: true})
	e.sched.Register(&scheduler.System{Name: "genealogy", Rate: scheduler.Slow, Update: e.genealogy.Update, Enabled: true})
	e.sched.Register(&scheduler.System{Name: "building", Rate: scheduler.Slow, Update: e.building.Update, Enabled: true, MinEntities: 4})
	e.sched.Register(&scheduler.System{Name: "market", Rate: scheduler.Slow, Update: e.market.Update, Enabled: true, MinEntities: 4})
	e.sched.Register(&scheduler.System{Name: "governance", Rate: scheduler.Slow, Update: e.governance.Update, Enabled: true, MinEntities: 8})
	e.sched.Register(&scheduler.System{Name: "favor", Rate: scheduler.Slow, Update: e.favor.Update, Enabled: true})
	e.sched.Register(&scheduler.System{Name: "emergence", Rate: scheduler.Slow, Update: e.emergence.Update, Enabled: true})
}

// preTick refreshes the frame clock and rebuilds the agent spatial index
// from every alive agent's Transform, per SPEC_FULL.md §4.1/§5: the grid
// is built fresh before any FAST system runs and is read-only for the
// remainder of the tick.
func (e *engine) preTick() {
	e.clk.Update()
	e.agentGrid.Clear()
	for _, id := range e.store.GetAliveAgents() {
		t, ok := e.store.GetTransform(id)
		if !ok {
			continue
		}
		e.agentGrid.Insert(id, t.X, t.Y)
	}
}

// postTick flushes the event bus. Metrics sampling and WorldUpdate
// broadcasts run on their own tickers (startMetricsLoop,
// startBroadcastLoop), not from this hook.
func (e *engine) postTick() {
	e.bus.FlushEvents()
}

func (e *engine) exportSnapshot() snapshot.Snapshot {
	return snapshot.Export(snapshot.Sources{
		Store:      e.store,
		Zones:      e.zones,
		Genealogy:  e.genealogy,
		Recipes:    e.recipes,
		Combat:     e.combat,
		Animals:    e.animals,
		Governance: e.governance,
		Now:        e.clk.Now,
		Tick:       e.clk.Now,
	})
}

// bootstrapWorld seeds the zones/stockpiles/settlement/starting population
// a freshly started engine needs before the scheduler has anything to do;
// it is the square-chunk, zone-based analogue of the teacher's settlement
// placement + initial population spawn (cmd/worldsim/main.go in the
// teacher repo).
func (e *engine) bootstrapWorld() {
	rng := rand.New(rand.NewSource(e.cfg.Seed))

	farmZone := &world.Zone{ID: "zone-farm", Type: world.ZoneFood, Polygon: [][2]float64{{-40, -40}, {40, -40}, {40, 40}, {-40, 40}}, Metadata: map[string]string{"resource": "grain"}}
	mineZone := &world.Zone{ID: "zone-mine", Type: world.ZoneWork, Polygon: [][2]float64{{60, -40}, {120, -40}, {120, 20}, {60, 20}}, Metadata: map[string]string{"resource": "ore"}}
	marketZone := &world.Zone{ID: "zone-market", Type: world.ZoneMarket, Polygon: [][2]float64{{-20, 60}, {20, 60}, {20, 100}, {-20, 100}}}
	for _, z := range []*world.Zone{farmZone, mineZone, marketZone} {
		e.zones.CreateZone(z)
	}
	for _, kind := range []string{"grain", "ore", "fish", "furs", "timber", "stone", "herbs"} {
		sp := e.zones.CreateStockpile(farmZone.ID, kind, 5000)
		_ = sp
	}

	e.governance.RegisterSettlement(&society.Settlement{
		ID: "settlement-crossroads", Name: "Crossroads", ZoneID: marketZone.ID,
		Governance: society.Council, TaxRate: 0.1, GovernanceScore: 0.6,
	})
	e.equipment.ProvisionTool("tools", 10)

	roles := []ecs.RoleType{ecs.RoleFarmer, ecs.RoleMiner, ecs.RoleFisher, ecs.RoleHunter, ecs.RoleCrafter, ecs.RoleGuard, ecs.RoleMerchant}
	startPop := e.cfg.MaxPopulation / 10
	if startPop < 8 {
		startPop = 8
	}
	for i := 0; i < startPop; i++ {
		sex := ecs.SexFemale
		if i%2 == 0 {
			sex = ecs.SexMale
		}
		x := rng.Float64()*80 - 40
		y := rng.Float64()*80 - 40
		id := e.lifecycle.SpawnAgent(fmt.Sprintf("settler-%02d", i), sex, x, y, marketZone.ID, "", "")
		role := roles[i%len(roles)]
		_ = e.store.SetRole(id, ecs.Role{RoleType: role, WorkZoneID: zoneForRole(role, farmZone.ID, mineZone.ID), OnDuty: true, Efficiency: 0.8 + rng.Float64()*0.4})
	}
	for i := 0; i < e.cfg.MaxAnimals/4; i++ {
		e.animals.SpawnAnimal("deer", rng.Float64()*400-200, rng.Float64()*400-200, false)
	}
	for i := 0; i < e.cfg.MaxAnimals/10; i++ {
		e.animals.SpawnAnimal("wolf", rng.Float64()*400-200, rng.Float64()*400-200, true)
	}
}

func zoneForRole(role ecs.RoleType, farmZoneID, mineZoneID string) string {
	if role == ecs.RoleMiner {
		return mineZoneID
	}
	return farmZoneID
}

// --- transport.CommandHandler ---

func (e *engine) StartSim() {
	e.sched.Start(context.Background())
	e.log.Info("simulation started")
}

func (e *engine) StopSim() {
	e.sched.Stop()
	e.log.Info("simulation stopped")
}

func (e *engine) StepSim() {
	e.sched.Step(context.Background())
}

func (e *engine) SpawnAgent(name string, x, y float64, zoneID string) string {
	sex := ecs.SexMale
	if rand.Float64() < 0.5 {
		sex = ecs.SexFemale
	}
	return e.lifecycle.SpawnAgent(name, sex, x, y, zoneID, "", "")
}

func (e *engine) RemoveAgent(agentID string) ports.HandlerResult {
	return e.lifecycle.RemoveAgent(agentID, "admin request")
}

func (e *engine) IssueOrder(agentID, orderType string, priority int, detail map[string]any) bool {
	if !e.store.HasAgent(agentID) {
		return false
	}
	if priority <= 0 {
		priority = tuning.DefaultTaskPriority
	}
	_, ok := e.tasks.Enqueue(agentID, orderType, priority, detail)
	return ok
}

// startMetricsLoop samples the Metrics Collector on its own ticker
// (tuning.MetricsSampleInterval), independent of the FAST/MEDIUM/SLOW
// scheduler rates, and — when persistence is wired — appends each sample
// to stats_history and writes a full-replace snapshot on the same cadence.
func (e *engine) startMetricsLoop() {
	e.metricsStop = make(chan struct{})
	go func() {
		t := time.NewTicker(tuning.MetricsSampleInterval)
		defer t.Stop()
		for {
			select {
			case <-e.metricsStop:
				return
			case <-t.C:
				snap := e.metrics.Sample()
				if e.db == nil {
					continue
				}
				if err := e.db.RecordStats(snap); err != nil {
					e.log.Error("recording stats history", "err", err)
				}
				if err := e.db.SaveSnapshot(e.exportSnapshot()); err != nil {
					e.log.Error("saving snapshot", "err", err)
				}
			}
		}
	}()
}

func (e *engine) startBroadcastLoop() {
	e.hubStop = make(chan struct{})
	go e.hub.Run(e.hubStop)
	go func() {
		t := time.NewTicker(tuning.MetricsSampleInterval)
		defer t.Stop()
		for {
			select {
			case <-e.hubStop:
				return
			case <-t.C:
				e.hub.Broadcast(e.cfg.Codec, e.exportSnapshot())
			}
		}
	}()
}

func (e *engine) shutdown() {
	e.sched.Stop()
	if e.metricsStop != nil {
		close(e.metricsStop)
	}
	if e.hubStop != nil {
		close(e.hubStop)
	}
	if e.db != nil {
		if err := e.db.SaveSnapshot(e.exportSnapshot()); err != nil {
			e.log.Error("saving final snapshot", "err", err)
		}
		if err := e.db.Close(); err != nil {
			e.log.Error("closing persistence db", "err", err)
		}
	}
}

func main() {
	cfg := config.Load(config.FromOS)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	banner("worldengine")
	slog.Info("worldengine starting",
		"seed", cfg.Seed, "fast_ms", cfg.FastMS, "medium_ms", cfg.MediumMS, "slow_ms", cfg.SlowMS,
		"max_population", cfg.MaxPopulation, "max_animals", cfg.MaxAnimals, "codec", cfg.Codec,
	)
	if cfg.AdminKey == "" {
		slog.Warn("WORLDSIM_ADMIN_KEY not set — admin POST/DELETE endpoints will be disabled")
	}

	eng := newEngine(cfg, logger)
	eng.bootstrapWorld()
	eng.server.Start()
	eng.startMetricsLoop()
	eng.startBroadcastLoop()
	eng.StartSim()

	slog.Info("worldengine ready", "port", cfg.Port, "population", eng.store.GetAgentCount())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
	eng.shutdown()
	slog.Info("worldengine stopped")
}
