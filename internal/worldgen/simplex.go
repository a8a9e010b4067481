// Package worldgen is the one concrete implementation behind the
// world.Generator interface: layered simplex noise producing elevation,
// rainfall, and temperature, from which a Biome is derived. Adapted from
// the teacher's hex-radius generator
// (_examples/tobyjaguar-mini-world/internal/world/generation.go) but
// targeting square chunks instead of a hex disk, since world generation
// lives entirely behind an interface per SPEC_FULL.md §1/§4.
package worldgen

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/crossroads-sim/worldengine/internal/world"
)

// SeaLevel and MountainLevel are elevation thresholds, in the noise's
// normalized [0,1] range.
const (
	SeaLevel      = 0.25
	MountainLevel = 0.72
)

// SimplexGenerator is a world.Generator backed by three independent
// normalized opensimplex noise fields (elevation, rainfall, temperature).
type SimplexGenerator struct{}

// NewSimplexGenerator returns a ready-to-use generator. Noise generators
// are constructed per-call from the seed passed to GenerateChunk so that
// the same (chunk, seed) pair is always reproducible regardless of
// generation order — a property the spec's determinism expectations for
// a seeded world rely on.
func NewSimplexGenerator() *SimplexGenerator { return &SimplexGenerator{} }

// GenerateChunk implements world.Generator.
func (g *SimplexGenerator) GenerateChunk(chunkX, chunkY, chunkSize int, seed int64) *world.Chunk {
	elevNoise := opensimplex.NewNormalized(seed)
	rainNoise := opensimplex.NewNormalized(seed + 1)
	tempNoise := opensimplex.NewNormalized(seed + 2)

	c := &world.Chunk{
		Coord: world.ChunkCoord{CX: chunkX, CY: chunkY},
		Tiles: make(map[[2]int]*world.Tile, chunkSize*chunkSize),
	}

	baseX := chunkX * chunkSize
	baseY := chunkY * chunkSize

	for lx := 0; lx < chunkSize; lx++ {
		for ly := 0; ly < chunkSize; ly++ {
			gx := baseX + lx
			gy := baseY + ly
			fx, fy := float64(gx), float64(gy)

			elev := octaveNoise(elevNoise, fx, fy, 4, 0.08, 0.5)
			rain := octaveNoise(rainNoise, fx, fy, 3, 0.06, 0.5)
			temp := octaveNoise(tempNoise, fx, fy, 3, 0.05, 0.5)
			temp = temp*0.6 + (1.0-elev)*0.1

			biome := deriveBiome(elev, rain, temp)
			c.Tiles[[2]int{lx, ly}] = &world.Tile{
				X: gx, Y: gy,
				Biome:       biome,
				Elevation:   elev,
				Moisture:    rain,
				Temperature: temp,
				Walkable:    biome != world.BiomeOcean && biome != world.BiomeMountain,
			}
		}
	}
	return c
}

// octaveNoise layers octaves successive-noise-samples to avoid the blocky
// look of a single simplex sample, exactly as the teacher does.
func octaveNoise(n opensimplex.Noise, x, y float64, octaves int, freq, persistence float64) float64 {
	var total, amplitude, maxValue float64
	amplitude = 1
	for i := 0; i < octaves; i++ {
		total += n.Eval2(x*freq, y*freq) * amplitude
		maxValue += amplitude
		amplitude *= persistence
		freq *= 2
	}
	if maxValue == 0 {
		return 0
	}
	return total / maxValue
}

func deriveBiome(elev, rain, temp float64) world.Biome {
	if elev < SeaLevel {
		return world.BiomeOcean
	}
	if elev > MountainLevel {
		return world.BiomeMountain
	}
	if temp < 0.25 {
		return world.BiomeTundra
	}
	if rain < 0.25 && temp > 0.5 {
		return world.BiomeDesert
	}
	if rain > 0.7 && elev < 0.45 {
		return world.BiomeSwamp
	}
	if rain > 0.45 && elev > 0.45 {
		return world.BiomeForest
	}
	if math.Abs(elev-SeaLevel) < 0.03 {
		return world.BiomeCoast
	}
	return world.BiomePlains
}
