package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertAndQueryRadius(t *testing.T) {
	g := New(10)
	g.Insert("a", 0, 0)
	g.Insert("b", 5, 0)
	g.Insert("c", 100, 100)

	found := g.QueryRadius(Point{X: 0, Y: 0}, 6)
	var ids []string
	for _, e := range found {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestInsertMovesExistingEntity(t *testing.T) {
	g := New(10)
	g.Insert("a", 0, 0)
	g.Insert("a", 50, 50)

	assert.Equal(t, 1, g.Count())
	found := g.QueryRadius(Point{X: 0, Y: 0}, 1)
	assert.Empty(t, found)

	found = g.QueryRadius(Point{X: 50, Y: 50}, 1)
	assert.Len(t, found, 1)
}

func TestClearEmptiesGrid(t *testing.T) {
	g := New(10)
	g.Insert("a", 0, 0)
	g.Insert("b", 1, 1)
	g.Clear()

	assert.Equal(t, 0, g.Count())
	assert.Empty(t, g.QueryRadius(Point{}, 1000))
}

func TestQueryRadiusCrossesCellBoundaries(t *testing.T) {
	// cellSize=10: place two points in adjacent cells, close enough in
	// real distance that a naive single-cell scan would miss one.
	g := New(10)
	g.Insert("a", 9, 0)
	g.Insert("b", 11, 0)

	found := g.QueryRadius(Point{X: 10, Y: 0}, 2)
	var ids []string
	for _, e := range found {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestPositionOf(t *testing.T) {
	g := New(10)
	g.Insert("a", 3, 4)
	p, ok := g.PositionOf("a")
	assert.True(t, ok)
	assert.Equal(t, Point{X: 3, Y: 4}, p)

	_, ok = g.PositionOf("ghost")
	assert.False(t, ok)
}
