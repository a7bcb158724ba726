package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPutGetPromotes(t *testing.T) {
	c := New[string, int](10, 2)
	c.Put("a", 1)
	c.Put("b", 2)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestPutUpdatesInPlace(t *testing.T) {
	c := New[string, int](10, 2)
	c.Put("a", 1)
	c.Put("a", 2)

	assert.Equal(t, 1, c.Size())
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestElasticityThenPrune(t *testing.T) {
	// P8: after putting capacity+elasticity+1 entries, exactly enough
	// evictions occur to bring size back to capacity.
	c := New[int, int](4, 2)
	for i := 0; i < 6; i++ {
		c.Put(i, i)
	}
	assert.Equal(t, 6, c.Size(), "overshoot up to capacity+elasticity should not prune yet")

	c.Put(6, 6)
	assert.Equal(t, 4, c.Size(), "exceeding capacity+elasticity should prune back to capacity")

	// Most recently accessed/inserted entries survive.
	for i := 3; i < 7; i++ {
		_, ok := c.Get(i)
		assert.True(t, ok, "entry %d should have survived pruning", i)
	}
}

func TestRecencyProtectsFromEviction(t *testing.T) {
	c := New[int, int](2, 0)
	c.Put(1, 1)
	c.Put(2, 2)
	c.Get(1) // promote 1 to the front
	c.Put(3, 3)

	_, ok := c.Get(1)
	assert.True(t, ok, "recently accessed entry should survive")
	_, ok = c.Get(2)
	assert.False(t, ok, "least recently used entry should be evicted")
}

func TestZeroCapacityDisablesEviction(t *testing.T) {
	c := New[int, int](0, 0)
	for i := 0; i < 100; i++ {
		c.Put(i, i)
	}
	assert.Equal(t, 100, c.Size())
}

func TestRemoveAndContainsAndClear(t *testing.T) {
	c := New[string, int](10, 2)
	c.Put("k", 42)
	assert.True(t, c.Contains("k"))

	v, ok := c.Remove("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.False(t, c.Contains("k"))

	c.Put("x", 1)
	c.Clear()
	assert.Equal(t, 0, c.Size())
}
