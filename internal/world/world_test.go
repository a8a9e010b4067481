package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	calls int
}

func (g *stubGenerator) GenerateChunk(cx, cy, chunkSize int, seed int64) *Chunk {
	g.calls++
	c := &Chunk{Coord: ChunkCoord{CX: cx, CY: cy}, Tiles: make(map[[2]int]*Tile, chunkSize*chunkSize)}
	for x := 0; x < chunkSize; x++ {
		for y := 0; y < chunkSize; y++ {
			c.Tiles[[2]int{x, y}] = &Tile{X: cx*chunkSize + x, Y: cy*chunkSize + y, Biome: BiomePlains, Walkable: true}
		}
	}
	return c
}

func TestGetTileGeneratesChunkOnFirstAccessOnly(t *testing.T) {
	gen := &stubGenerator{}
	var rendered []ChunkCoord
	w := New(gen, 4, 1, func(cx, cy int) { rendered = append(rendered, ChunkCoord{CX: cx, CY: cy}) })

	tile := w.GetTile(1, 2)
	require.NotNil(t, tile)
	assert.Equal(t, 1, tile.X)
	assert.Equal(t, 2, tile.Y)
	assert.Equal(t, 1, gen.calls)
	require.Len(t, rendered, 1)

	// second access within the same chunk must not regenerate
	w.GetTile(3, 3)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, w.ChunkCount())
}

func TestGetTileHandlesNegativeCoordinatesViaFloorDiv(t *testing.T) {
	gen := &stubGenerator{}
	w := New(gen, 4, 1, nil)

	tile := w.GetTile(-1, -1)
	require.NotNil(t, tile)
	assert.Equal(t, -1, tile.X)
	assert.Equal(t, -1, tile.Y)
}

func TestModifyTileMutatesGeneratedTileInPlace(t *testing.T) {
	gen := &stubGenerator{}
	w := New(gen, 4, 1, nil)
	w.GetTile(0, 0)

	err := w.ModifyTile(0, 0, func(tl *Tile) { tl.Biome = BiomeRiver })
	require.NoError(t, err)

	tile := w.GetTile(0, 0)
	assert.Equal(t, BiomeRiver, tile.Biome)
}

func TestModifyTileOnUngeneratedCoordStillSucceeds(t *testing.T) {
	gen := &stubGenerator{}
	w := New(gen, 4, 1, nil)

	err := w.ModifyTile(10, 10, func(tl *Tile) { tl.Biome = BiomeDesert })
	assert.NoError(t, err)
}

func TestChunkSizeDefaultsWhenNonPositive(t *testing.T) {
	gen := &stubGenerator{}
	w := New(gen, 0, 1, nil)
	assert.Equal(t, 16, w.chunkSize)
}

func TestOnRenderFiresExactlyOncePerChunk(t *testing.T) {
	gen := &stubGenerator{}
	count := 0
	w := New(gen, 4, 1, func(cx, cy int) { count++ })

	w.GetTile(0, 0)
	w.GetTile(1, 1)
	w.GetTile(4, 4) // a different chunk

	assert.Equal(t, 2, count)
}
