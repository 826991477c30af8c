package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoize(t *testing.T) {
	c := NewCache(nil)

	calls := 0
	compute := func() int {
		calls++
		return 42
	}

	assert.Equal(t, 42, Memoize(c, "answer", compute))
	assert.Equal(t, 42, Memoize(c, "answer", compute))
	assert.Equal(t, 1, calls)
}

func TestMemoize_NegativeResultsAreCached(t *testing.T) {
	c := NewCache(nil)

	calls := 0
	isRelation := func() bool {
		calls++
		return false
	}

	assert.False(t, Memoize(c, "relation:User:bogus", isRelation))
	assert.False(t, Memoize(c, "relation:User:bogus", isRelation))
	assert.Equal(t, 1, calls)
}

// External backends can hand back a JSON-decoded value whose Go type no
// longer matches; the cache treats that as a miss instead of panicking.
func TestMemoize_WrongTypeRecomputes(t *testing.T) {
	store := NewMemoryStore()
	store.Set("key", "stale string")
	c := NewCache(store)

	v := Memoize(c, "key", func() int { return 7 })
	assert.Equal(t, 7, v)

	// The recomputed value replaces the stale one.
	raw, ok := store.Get("key")
	assert.True(t, ok)
	assert.Equal(t, 7, raw)
}

func TestCache_DeleteAndFlush(t *testing.T) {
	c := NewCache(nil)

	calls := 0
	compute := func() string {
		calls++
		return "v"
	}

	Memoize(c, "a", compute)
	Memoize(c, "b", compute)
	assert.Equal(t, 2, calls)

	c.Delete("a")
	Memoize(c, "a", compute)
	Memoize(c, "b", compute)
	assert.Equal(t, 3, calls)

	c.Flush()
	Memoize(c, "a", compute)
	Memoize(c, "b", compute)
	assert.Equal(t, 5, calls)
}
