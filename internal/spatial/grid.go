// Package spatial implements the uniform-grid spatial index (C1): a
// bucketed structure over (id, position) pairs supporting O(1) insert and
// O(density * r^2) radius queries. Rebuilt fresh every preTick; read-only
// for the remainder of the tick (see the concurrency model in SPEC_FULL.md
// §5 — the Grid itself enforces none of that, callers must).
package spatial

import "math"

// Point is a 2D position.
type Point struct {
	X, Y float64
}

// Entry is one occupant of the index.
type Entry struct {
	ID  string
	Pos Point
}

type cellKey struct{ cx, cy int64 }

// Grid is a uniform-grid spatial index keyed by entity ID. It is not
// thread-safe; the Scheduler's single-writer discipline for preTick keeps
// it safe in practice.
type Grid struct {
	cellSize float64
	cells    map[cellKey][]Entry
	posByID  map[string]Point
}

// New returns an empty Grid bucketed at the given cell size. cellSize
// should be close to the largest common interaction radius queried
// against this grid.
func New(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]Entry),
		posByID:  make(map[string]Point),
	}
}

func (g *Grid) key(p Point) cellKey {
	return cellKey{
		cx: int64(math.Floor(p.X / g.cellSize)),
		cy: int64(math.Floor(p.Y / g.cellSize)),
	}
}

// Clear empties the grid. O(#cells-with-entries).
func (g *Grid) Clear() {
	for k := range g.cells {
		delete(g.cells, k)
	}
	for k := range g.posByID {
		delete(g.posByID, k)
	}
}

// Insert places (or moves) id at position (x, y). O(1).
func (g *Grid) Insert(id string, x, y float64) {
	p := Point{X: x, Y: y}
	g.remove(id)
	k := g.key(p)
	g.cells[k] = append(g.cells[k], Entry{ID: id, Pos: p})
	g.posByID[id] = p
}

func (g *Grid) remove(id string) {
	old, ok := g.posByID[id]
	if !ok {
		return
	}
	k := g.key(old)
	bucket := g.cells[k]
	for i, e := range bucket {
		if e.ID == id {
			bucket[i] = bucket[len(bucket)-1]
			g.cells[k] = bucket[:len(bucket)-1]
			break
		}
	}
	delete(g.posByID, id)
}

// Count returns the number of indexed entities.
func (g *Grid) Count() int { return len(g.posByID) }

// QueryRadius returns every entry within radius r (inclusive) of center,
// scanning only the cells overlapping the bounding square of the circle.
func (g *Grid) QueryRadius(center Point, r float64) []Entry {
	if r < 0 {
		return nil
	}
	minX := int64(math.Floor((center.X - r) / g.cellSize))
	maxX := int64(math.Floor((center.X + r) / g.cellSize))
	minY := int64(math.Floor((center.Y - r) / g.cellSize))
	maxY := int64(math.Floor((center.Y + r) / g.cellSize))

	r2 := r * r
	var out []Entry
	for cx := minX; cx <= maxX; cx++ {
		for cy := minY; cy <= maxY; cy++ {
			for _, e := range g.cells[cellKey{cx, cy}] {
				dx := e.Pos.X - center.X
				dy := e.Pos.Y - center.Y
				if dx*dx+dy*dy <= r2 {
					out = append(out, e)
				}
			}
		}
	}
	return out
}

// PositionOf returns the last inserted position for id.
func (g *Grid) PositionOf(id string) (Point, bool) {
	p, ok := g.posByID[id]
	return p, ok
}
