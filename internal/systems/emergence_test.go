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

type fakeLineageCensus struct {
	lineages []*Lineage
}

func (f *fakeLineageCensus) Lineages() []*Lineage { return f.lineages }

func newEmergenceFixture(t *testing.T, genealogy lineageCensus) (*ecs.Store, *eventbus.Bus, *EmergenceSystem) {
	t.Helper()
	store := ecs.New()
	bus := eventbus.New(nil)
	bus.SetBatchingEnabled(false)
	sys := NewEmergenceSystem(store, bus, func() int64 { return 0 }, genealogy)
	return store, bus, sys
}

func TestEmergenceReportsCriticalOnZeroPopulation(t *testing.T) {
	_, bus, sys := newEmergenceFixture(t, nil)
	var assessments []eventbus.EmergenceAssessmentPayload
	bus.On(eventbus.EmergenceAssessment, func(e eventbus.Event) {
		assessments = append(assessments, e.Payload.(eventbus.EmergenceAssessmentPayload))
	})

	require.NoError(t, sys.Update(context.Background(), time.Second))

	require.Len(t, assessments, 1)
	assert.Equal(t, "critical", assessments[0].CrisisLevel)
}

func TestEmergenceReportsCriticalOnHighDeathBirthRatio(t *testing.T) {
	store, bus, sys := newEmergenceFixture(t, &fakeLineageCensus{lineages: []*Lineage{
		{TotalBorn: 10, TotalDied: 10},
	}})
	store.RegisterAgent("a")

	var assessments []eventbus.EmergenceAssessmentPayload
	bus.On(eventbus.EmergenceAssessment, func(e eventbus.Event) {
		assessments = append(assessments, e.Payload.(eventbus.EmergenceAssessmentPayload))
	})

	require.NoError(t, sys.Update(context.Background(), time.Second))

	require.Len(t, assessments, 1)
	assert.Equal(t, "critical", assessments[0].CrisisLevel)
	assert.Equal(t, 1.0, assessments[0].DeathBirthRatio)
}

func TestEmergenceReportsNominalWithHealthyPopulation(t *testing.T) {
	store, bus, sys := newEmergenceFixture(t, &fakeLineageCensus{lineages: []*Lineage{
		{TotalBorn: 10, TotalDied: 1},
	}})
	store.RegisterAgent("a")
	require.NoError(t, store.SetTransform("a", ecs.Transform{ZoneID: "z1"}))
	sys.tradeVolume = 100

	var assessments []eventbus.EmergenceAssessmentPayload
	bus.On(eventbus.EmergenceAssessment, func(e eventbus.Event) {
		assessments = append(assessments, e.Payload.(eventbus.EmergenceAssessmentPayload))
	})

	require.NoError(t, sys.Update(context.Background(), time.Second))

	require.Len(t, assessments, 1)
	assert.Equal(t, "nominal", assessments[0].CrisisLevel)
	assert.Equal(t, []int{1}, assessments[0].SettlementSizes)
}

func TestEmergenceTradeVolumeAccumulatesAndResetsPerTick(t *testing.T) {
	_, bus, sys := newEmergenceFixture(t, nil)
	bus.Emit(eventbus.ProductionOutput, eventbus.ProductionOutputPayload{ZoneID: "z1", Resource: "wood", Amount: 5}, 0)

	assert.Equal(t, 5.0, sys.tradeVolume)

	require.NoError(t, sys.Update(context.Background(), time.Second))
	assert.Equal(t, 0.0, sys.tradeVolume)
}
