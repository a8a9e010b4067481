// Package world holds the tiled grid the spec calls for (SPEC_FULL.md §3):
// chunks of N×N tiles generated on demand from a seeded noise function
// behind the worldgen.Generator interface, plus the Zone/Stockpile model
// zones of work live in. This replaces the teacher's pre-generated
// hex-radius disk (_examples/tobyjaguar-mini-world/internal/world/{map,
// hex}.go) with square chunks generated lazily, since world generation
// itself is out of spec scope beyond the interface boundary.
package world

import (
	"fmt"
	"sync"
)

// Biome classifies a tile's terrain type.
type Biome string

const (
	BiomePlains  Biome = "plains"
	BiomeForest  Biome = "forest"
	BiomeMountain Biome = "mountain"
	BiomeCoast   Biome = "coast"
	BiomeRiver   Biome = "river"
	BiomeDesert  Biome = "desert"
	BiomeSwamp   Biome = "swamp"
	BiomeTundra  Biome = "tundra"
	BiomeOcean   Biome = "ocean"
)

// Tile is one grid cell.
type Tile struct {
	X, Y        int
	Biome       Biome
	Temperature float64
	Moisture    float64
	Elevation   float64
	Walkable    bool
	AssetTags   []string
}

// ChunkCoord identifies a chunk by its chunk-grid coordinates (not tile
// coordinates).
type ChunkCoord struct{ CX, CY int }

// Chunk is one N×N block of tiles, immutable once generated except
// through World.ModifyTile.
type Chunk struct {
	Coord ChunkCoord
	Tiles map[[2]int]*Tile // keyed by tile-local (x,y) within the chunk
}

// Generator produces one chunk's worth of tiles on demand. The one
// concrete implementation (internal/worldgen) is noise-seeded; this
// interface is the boundary the spec asks world generation to live
// behind.
type Generator interface {
	GenerateChunk(chunkX, chunkY, chunkSize int, seed int64) *Chunk
}

// World is the live tiled grid: chunks are generated lazily and cached.
type World struct {
	mu        sync.RWMutex
	chunkSize int
	seed      int64
	gen       Generator
	chunks    map[ChunkCoord]*Chunk
	onRender  func(cx, cy int) // hook: emits chunk:rendered
}

// New returns a World backed by gen, with chunks of chunkSize×chunkSize
// tiles. onRender, if non-nil, is called exactly once per freshly
// generated chunk (callers typically wire this to the event bus).
func New(gen Generator, chunkSize int, seed int64, onRender func(cx, cy int)) *World {
	if chunkSize <= 0 {
		chunkSize = 16
	}
	return &World{
		chunkSize: chunkSize,
		seed:      seed,
		gen:       gen,
		chunks:    make(map[ChunkCoord]*Chunk),
		onRender:  onRender,
	}
}

func (w *World) chunkCoordFor(x, y int) ChunkCoord {
	cx := floorDiv(x, w.chunkSize)
	cy := floorDiv(y, w.chunkSize)
	return ChunkCoord{CX: cx, CY: cy}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ensureChunk returns the chunk containing tile (x, y), generating it on
// first access.
func (w *World) ensureChunk(x, y int) *Chunk {
	cc := w.chunkCoordFor(x, y)
	w.mu.Lock()
	defer w.mu.Unlock()
	if c, ok := w.chunks[cc]; ok {
		return c
	}
	c := w.gen.GenerateChunk(cc.CX, cc.CY, w.chunkSize, w.seed)
	w.chunks[cc] = c
	if w.onRender != nil {
		w.onRender(cc.CX, cc.CY)
	}
	return c
}

// GetTile returns the tile at (x, y), generating its chunk first if
// needed.
func (w *World) GetTile(x, y int) *Tile {
	c := w.ensureChunk(x, y)
	cx := floorDiv(x, w.chunkSize)
	cy := floorDiv(y, w.chunkSize)
	local := [2]int{x - cx*w.chunkSize, y - cy*w.chunkSize}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return c.Tiles[local]
}

// ModifyTile is the one sanctioned mutation path for a generated tile.
// It emits no event (World holds no event bus), and no system in this
// repository calls it or emits terrain:modified.
func (w *World) ModifyTile(x, y int, mutate func(*Tile)) error {
	c := w.ensureChunk(x, y)
	cx := floorDiv(x, w.chunkSize)
	cy := floorDiv(y, w.chunkSize)
	local := [2]int{x - cx*w.chunkSize, y - cy*w.chunkSize}
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := c.Tiles[local]
	if !ok {
		return fmt.Errorf("world: no tile at (%d,%d)", x, y)
	}
	mutate(t)
	return nil
}

// ChunkCount returns how many chunks have been generated so far.
func (w *World) ChunkCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}
