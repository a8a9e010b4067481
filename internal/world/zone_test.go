package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndLookupZone(t *testing.T) {
	zm := NewZoneManager()
	zm.CreateZone(&Zone{ID: "z1", Type: ZoneFood})

	zo, ok := zm.GetZone("z1")
	require.True(t, ok)
	assert.Equal(t, ZoneFood, zo.Type)

	_, ok = zm.GetZone("ghost")
	assert.False(t, ok)
}

func TestZonesByType(t *testing.T) {
	zm := NewZoneManager()
	zm.CreateZone(&Zone{ID: "food-1", Type: ZoneFood})
	zm.CreateZone(&Zone{ID: "food-2", Type: ZoneFood})
	zm.CreateZone(&Zone{ID: "water-1", Type: ZoneWater})

	foodZones := zm.ZonesByType(ZoneFood)
	assert.Len(t, foodZones, 2)
}

func TestStockpileDepositCapsAtCapacity(t *testing.T) {
	zm := NewZoneManager()
	sp := zm.CreateStockpile("z1", "grain", 10)

	deposited := zm.AddToStockpile(sp.ID, 6)
	assert.Equal(t, 6.0, deposited)

	deposited = zm.AddToStockpile(sp.ID, 6) // only 4 units of room left
	assert.Equal(t, 4.0, deposited)

	got, _ := zm.GetStockpile(sp.ID)
	assert.Equal(t, 10.0, got.Amount)
}

func TestWithdrawFromStockpileCapsAtAvailable(t *testing.T) {
	zm := NewZoneManager()
	sp := zm.CreateStockpile("z1", "grain", 10)
	zm.AddToStockpile(sp.ID, 5)

	withdrawn := zm.WithdrawFromStockpile(sp.ID, 8)
	assert.Equal(t, 5.0, withdrawn)

	got, _ := zm.GetStockpile(sp.ID)
	assert.Equal(t, 0.0, got.Amount)
}

func TestGetStockpilesInZone(t *testing.T) {
	zm := NewZoneManager()
	zm.CreateStockpile("z1", "grain", 10)
	zm.CreateStockpile("z1", "water", 10)
	zm.CreateStockpile("z2", "wood", 10)

	inZone := zm.GetStockpilesInZone("z1")
	assert.Len(t, inZone, 2)
}

func TestZonePositionIsPolygonCentroid(t *testing.T) {
	zm := NewZoneManager()
	zm.CreateZone(&Zone{ID: "z1", Type: ZoneWork, Polygon: [][2]float64{{0, 0}, {10, 0}, {10, 10}, {0, 10}}})

	x, y, ok := zm.ZonePosition("z1")
	require.True(t, ok)
	assert.Equal(t, 5.0, x)
	assert.Equal(t, 5.0, y)

	_, _, ok = zm.ZonePosition("ghost")
	assert.False(t, ok)
}
