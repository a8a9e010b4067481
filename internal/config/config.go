// Package config parses the environment variables SPEC_FULL.md §6 names
// into a single typed Config struct, exactly mirroring the teacher's
// inline os.Getenv-with-fallback style at main() but consolidated into
// one loader so both cmd/worldsim and tests can construct a Config
// without touching the real environment (Load takes a lookup function
// rather than reading os.Getenv directly).
package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/crossroads-sim/worldengine/internal/transport"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

// Config is the simulation's full set of startup knobs.
type Config struct {
	FastMS        int
	MediumMS      int
	SlowMS        int
	Seed          int64
	MaxPopulation int
	MaxAnimals    int
	LogLevel      slog.Level
	Codec         transport.Codec
	Port          int
	AdminKey      string
	DBPath        string
}

// Lookup matches os.LookupEnv's signature, letting tests supply a fake
// environment without mutating process-global state.
type Lookup func(key string) (string, bool)

// FromOS adapts the real process environment to Lookup.
func FromOS(key string) (string, bool) { return os.LookupEnv(key) }

// Load builds a Config from lookup, falling back to SPEC_FULL.md's
// documented defaults on any missing or invalid value. An invalid numeric
// value is logged as a warning first, matching the teacher's own "warn
// then default" env-parsing behavior; a missing value, or an unrecognized
// LOG_LEVEL or CODEC, falls back silently.
func Load(lookup Lookup) Config {
	cfg := Config{
		FastMS:        envInt(lookup, "TICK_FAST_MS", tuning.DefaultFastMS),
		MediumMS:      envInt(lookup, "TICK_MEDIUM_MS", tuning.DefaultMediumMS),
		SlowMS:        envInt(lookup, "TICK_SLOW_MS", tuning.DefaultSlowMS),
		Seed:          envSeed(lookup, "WORLD_SEED", 42),
		MaxPopulation: envInt(lookup, "MAX_POPULATION", 500),
		MaxAnimals:    envInt(lookup, "MAX_ANIMALS", 200),
		LogLevel:      envLogLevel(lookup, "LOG_LEVEL"),
		Codec:         envCodec(lookup, "CODEC"),
		Port:          envInt(lookup, "PORT", 8080),
	}
	if v, ok := lookup("WORLDSIM_ADMIN_KEY"); ok {
		cfg.AdminKey = v
	}
	if v, ok := lookup("DB_PATH"); ok && v != "" {
		cfg.DBPath = v
	} else {
		cfg.DBPath = "worldsim.db"
	}
	return cfg
}

func envInt(lookup Lookup, name string, def int) int {
	v, ok := lookup(name)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("ignoring invalid env value, using default", "var", name, "value", v, "default", def)
		return def
	}
	return n
}

func envSeed(lookup Lookup, name string, def int64) int64 {
	v, ok := lookup(name)
	if !ok || v == "" {
		return def
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	// Non-numeric seed strings hash deterministically via fnv-ish fold, so
	// "WORLD_SEED=crossroads" still seeds reproducibly rather than falling
	// back to def.
	var h int64 = 1469598103934665603
	for _, c := range v {
		h ^= int64(c)
		h *= 1099511628211
	}
	if h < 0 {
		h = -h
	}
	return h
}

func envLogLevel(lookup Lookup, name string) slog.Level {
	v, _ := lookup(name)
	switch v {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envCodec(lookup Lookup, name string) transport.Codec {
	v, _ := lookup(name)
	if v == string(transport.CodecMsgpack) {
		return transport.CodecMsgpack
	}
	return transport.CodecJSON
}
