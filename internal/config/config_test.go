package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crossroads-sim/worldengine/internal/transport"
	"github.com/crossroads-sim/worldengine/internal/tuning"
)

func fakeEnv(values map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadAppliesDefaultsOnEmptyEnvironment(t *testing.T) {
	cfg := Load(fakeEnv(nil))
	assert.Equal(t, tuning.DefaultFastMS, cfg.FastMS)
	assert.Equal(t, tuning.DefaultMediumMS, cfg.MediumMS)
	assert.Equal(t, tuning.DefaultSlowMS, cfg.SlowMS)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 500, cfg.MaxPopulation)
	assert.Equal(t, 200, cfg.MaxAnimals)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, transport.CodecJSON, cfg.Codec)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "worldsim.db", cfg.DBPath)
}

func TestLoadParsesNumericOverrides(t *testing.T) {
	cfg := Load(fakeEnv(map[string]string{
		"TICK_FAST_MS":   "25",
		"MAX_POPULATION": "1000",
		"PORT":           "9090",
	}))
	assert.Equal(t, 25, cfg.FastMS)
	assert.Equal(t, 1000, cfg.MaxPopulation)
	assert.Equal(t, 9090, cfg.Port)
}

func TestLoadFallsBackToDefaultOnInvalidInt(t *testing.T) {
	cfg := Load(fakeEnv(map[string]string{"TICK_FAST_MS": "not-a-number"}))
	assert.Equal(t, tuning.DefaultFastMS, cfg.FastMS)
}

func TestLoadFallsBackToDefaultOnNonPositiveInt(t *testing.T) {
	cfg := Load(fakeEnv(map[string]string{"MAX_ANIMALS": "0"}))
	assert.Equal(t, 200, cfg.MaxAnimals)
}

func TestLoadParsesNumericSeedExactly(t *testing.T) {
	cfg := Load(fakeEnv(map[string]string{"WORLD_SEED": "777"}))
	assert.Equal(t, int64(777), cfg.Seed)
}

func TestLoadHashesNonNumericSeedDeterministically(t *testing.T) {
	a := Load(fakeEnv(map[string]string{"WORLD_SEED": "crossroads"}))
	b := Load(fakeEnv(map[string]string{"WORLD_SEED": "crossroads"}))
	assert.Equal(t, a.Seed, b.Seed)
	assert.NotEqual(t, int64(42), a.Seed)
	assert.GreaterOrEqual(t, a.Seed, int64(0))
}

func TestLoadParsesLogLevels(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Load(fakeEnv(map[string]string{"LOG_LEVEL": "debug"})).LogLevel)
	assert.Equal(t, slog.LevelWarn, Load(fakeEnv(map[string]string{"LOG_LEVEL": "warn"})).LogLevel)
	assert.Equal(t, slog.LevelError, Load(fakeEnv(map[string]string{"LOG_LEVEL": "error"})).LogLevel)
	assert.Equal(t, slog.LevelInfo, Load(fakeEnv(map[string]string{"LOG_LEVEL": "bogus"})).LogLevel)
}

func TestLoadParsesMsgpackCodec(t *testing.T) {
	cfg := Load(fakeEnv(map[string]string{"CODEC": "msgpack"}))
	assert.Equal(t, transport.CodecMsgpack, cfg.Codec)
}

func TestLoadReadsAdminKeyAndDBPathVerbatim(t *testing.T) {
	cfg := Load(fakeEnv(map[string]string{"WORLDSIM_ADMIN_KEY": "s3cret", "DB_PATH": "/var/lib/worldsim/state.db"}))
	assert.Equal(t, "s3cret", cfg.AdminKey)
	assert.Equal(t, "/var/lib/worldsim/state.db", cfg.DBPath)
}

func TestFromOSMatchesLookupSignature(t *testing.T) {
	var _ Lookup = FromOS
}
