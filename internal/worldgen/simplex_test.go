package worldgen

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossroads-sim/worldengine/internal/world"
)

func TestGenerateChunkIsDeterministicForSameSeed(t *testing.T) {
	g := NewSimplexGenerator()
	a := g.GenerateChunk(2, -3, 8, 42)
	b := g.GenerateChunk(2, -3, 8, 42)

	require.Equal(t, len(a.Tiles), len(b.Tiles))
	for k, ta := range a.Tiles {
		tb, ok := b.Tiles[k]
		require.True(t, ok)
		assert.Equal(t, *ta, *tb)
	}
}

func TestGenerateChunkDiffersAcrossSeeds(t *testing.T) {
	g := NewSimplexGenerator()
	a := g.GenerateChunk(0, 0, 8, 1)
	b := g.GenerateChunk(0, 0, 8, 2)

	differs := false
	for k, ta := range a.Tiles {
		if tb, ok := b.Tiles[k]; ok && !reflect.DeepEqual(*ta, *tb) {
			differs = true
			break
		}
	}
	assert.True(t, differs, "different seeds should produce different terrain somewhere in the chunk")
}

func TestGenerateChunkFillsEveryLocalTileCoordinate(t *testing.T) {
	g := NewSimplexGenerator()
	c := g.GenerateChunk(0, 0, 4, 7)
	assert.Len(t, c.Tiles, 16)
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			assert.Contains(t, c.Tiles, [2]int{x, y})
		}
	}
}

func TestOceanAndMountainTilesAreNotWalkable(t *testing.T) {
	g := NewSimplexGenerator()
	c := g.GenerateChunk(0, 0, 16, 99)
	for _, tl := range c.Tiles {
		if tl.Biome == world.BiomeOcean || tl.Biome == world.BiomeMountain {
			assert.False(t, tl.Walkable)
		} else {
			assert.True(t, tl.Walkable)
		}
	}
}

func TestDeriveBiomeBoundaries(t *testing.T) {
	assert.Equal(t, world.BiomeOcean, deriveBiome(0.1, 0.5, 0.5))
	assert.Equal(t, world.BiomeMountain, deriveBiome(0.9, 0.5, 0.5))
	assert.Equal(t, world.BiomeTundra, deriveBiome(0.5, 0.5, 0.1))
	assert.Equal(t, world.BiomeDesert, deriveBiome(0.5, 0.1, 0.8))
	assert.Equal(t, world.BiomeSwamp, deriveBiome(0.4, 0.9, 0.5))
	assert.Equal(t, world.BiomeForest, deriveBiome(0.5, 0.6, 0.5))
}
