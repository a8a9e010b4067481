// Package tuning collects the simulation's numeric knobs in one place so
// that subsystems reference named constants instead of scattering magic
// numbers across the codebase. None of these are contractual; the shapes
// they feed (decay curves, price bounds, overmass thresholds) are, the
// exact values are not.
package tuning

import "time"

// Scheduler rates.
const (
	DefaultFastMS   = 50
	DefaultMediumMS = 250
	DefaultSlowMS   = 1000

	// MetricsSampleInterval is how often the Metrics Collector samples, on
	// its own ticker (EmergenceSystem runs every SLOW tick instead).
	MetricsSampleInterval = 5 * time.Second

	// RateWarnFactor: log a warning when a rate-tick's systems take longer
	// than this fraction of the rate's own period.
	RateWarnFactor = 0.8
)

// Needs.
const (
	NeedMax            = 100.0
	NeedMin            = 0.0
	NeedInitial        = 100.0
	NeedInitialHygiene = 80.0
	NeedInitialMental  = 80.0

	NeedCriticalThreshold = 20.0
	NeedWarningThreshold  = 35.0

	// Base decay per simulated second, before lifeStageFactor/divineModifier.
	DecayHunger       = 0.012
	DecayThirst       = 0.018
	DecayEnergy       = 0.008
	DecayHygiene      = 0.004
	DecaySocial       = 0.003
	DecayFun          = 0.003
	DecayMentalHealth = 0.002

	// Cross-effect coefficients: how much sustained low energy/hygiene
	// depress social/fun/mental per second, scaled by the deficit.
	LowEnergyMentalPenalty  = 0.15
	LowHygieneMentalPenalty = 0.10
)

// Lifecycle.
const (
	SecondsPerSimYear = 30.0
	ChildToAdultAge   = 18.0
	AdultToElderAge   = 60.0
	MaxAge            = 90.0

	TraitMutationSpread = 0.08 // ± fraction applied to inherited trait averages
)

// Movement.
const (
	ArrivalRadius       = 0.5
	DefaultAgentSpeed   = 10.0 // world units per simulated second
	FatigueGainPerSec   = 0.02
	FatigueDecayPerSec  = 0.05
	FatigueSpeedPenalty = 0.5 // fatigue=1.0 halves effective speed
)

// Combat.
const (
	EngagementRadiusUnarmed = 2.0
	UnarmedCooldown         = 1200 * time.Millisecond
	UnarmedBaseDamage       = 6.0
	HostilityThreshold      = -0.5 // affinity at/below this is hostile
	AggressionAttackGate    = 0.7
	CritChance              = 0.1
	CritMultiplier          = 2.0
	CombatLogCapacity       = 200
	SevereHitThreshold       = 20.0 // damage above this opens a ConflictResolution card
)

// Inventory.
const (
	DefaultCapacity = 100.0
)

// Social.
const (
	AffinityDecayPerSec        = 0.002
	AffinityReinforcePerSec    = 0.01
	SocialProximityRadius      = 6.0
	GroupAffinityThreshold     = 0.6
	GroupFormationWindowTicks  = 20
)

// Production / economy.
const (
	BaseYieldPerWorker  = 1.0
	MaxWorkersPerZone   = 6
	PriceScarcityLow    = 0.75
	PriceScarcityHigh   = 1.5
	PriceFloorRatio     = 0.25
	PriceCeilingRatio   = 4.0
)

// Building.
const (
	MaxHouses      = 40
	MaxMines       = 12
	MaxWorkbenches = 10
)

// Governance / factions.
const (
	OvermassLoadFactor     = 1.1
	EmigrationFraction     = 0.24
	MinPopulationForExodus = 20
)

// Divine favor.
const (
	FavorPerAvgSatisfactionPoint = 0.02
	BlessingDuration             = 24 * time.Hour // in simulated-tick time
)

// Animals.
const (
	AnimalCellSize        = 256.0
	AnimalHungerCritical  = 15.0
	AnimalThirstCritical  = 15.0
	AnimalLookupCacheTTL  = 2 * time.Second
)

// Task queue.
const (
	DefaultTaskPriority = 50
	UrgentTaskPriority  = 100
	MaxTasksPerAgent    = 8
	DefaultTaskTimeout  = 30 * time.Second
)
