package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeMovementPort struct{}

func TestRegisterGetUnregister(t *testing.T) {
	r := New()
	_, ok := r.Get(Movement)
	assert.False(t, ok)

	impl := &fakeMovementPort{}
	r.Register(Movement, impl)

	got, ok := r.Get(Movement)
	assert.True(t, ok)
	assert.Same(t, impl, got)

	r.Unregister(Movement)
	_, ok = r.Get(Movement)
	assert.False(t, ok)
}

func TestRegisterReplacesExisting(t *testing.T) {
	r := New()
	r.Register(Combat, "first")
	r.Register(Combat, "second")

	got, ok := r.Get(Combat)
	assert.True(t, ok)
	assert.Equal(t, "second", got)
}

func TestNamesListsEveryRegistration(t *testing.T) {
	r := New()
	r.Register(Movement, 1)
	r.Register(Combat, 2)

	assert.ElementsMatch(t, []string{Movement, Combat}, r.Names())
}
