package message

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_InsertionOrder(t *testing.T) {
	m := NewMap()
	m.Put("c", 1)
	m.Put("a", 2)
	m.Put("b", 3)

	assert.Equal(t, []string{"c", "a", "b"}, m.Keys())

	// Overwriting a key must not move it.
	m.Put("a", 99)
	assert.Equal(t, []string{"c", "a", "b"}, m.Keys())
	assert.Equal(t, 99, m.Get("a"))
}

func TestMap_GetAbsent(t *testing.T) {
	m := NewMap()
	assert.Nil(t, m.Get("missing"))
	assert.False(t, m.Has("missing"))

	// A stored nil is present but Get still returns nil.
	m.Put("null", nil)
	assert.Nil(t, m.Get("null"))
	assert.True(t, m.Has("null"))
}

func TestMap_Delete(t *testing.T) {
	m := NewMap()
	m.Put("a", 1)
	m.Put("b", 2)
	m.Put("c", 3)

	m.Delete("b")
	assert.Equal(t, []string{"a", "c"}, m.Keys())
	assert.False(t, m.Has("b"))
	assert.Equal(t, 2, m.Len())

	// Deleting an absent key is a no-op.
	m.Delete("missing")
	assert.Equal(t, 2, m.Len())

	// Re-inserting a deleted key appends it at the end.
	m.Put("b", 4)
	assert.Equal(t, []string{"a", "c", "b"}, m.Keys())
}

func TestMap_Merge(t *testing.T) {
	target := NewMap()
	target.Put("x", 1)

	src := NewMap()
	src.Put("x", 2)
	src.Put("y", 3)

	target.Merge(src)

	// Existing key keeps its position and takes the source value; new keys
	// append in source order.
	assert.Equal(t, []string{"x", "y"}, target.Keys())
	assert.Equal(t, 2, target.Get("x"))
	assert.Equal(t, 3, target.Get("y"))

	// The source is untouched.
	assert.Equal(t, 2, src.Get("x"))
	assert.Equal(t, 2, src.Len())
}

func TestMap_MergeOrderPreserved(t *testing.T) {
	target := NewMap()
	target.Put("a", 1)
	target.Put("b", 2)
	target.Put("c", 3)

	src := NewMap()
	src.Put("d", 4)
	src.Put("b", 20)
	src.Put("e", 5)

	target.Merge(src)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, target.Keys())
	assert.Equal(t, 20, target.Get("b"))
}

func TestMap_MergeNilAndSelf(t *testing.T) {
	m := NewMap()
	m.Put("a", 1)

	m.Merge(nil)
	m.Merge(m)

	assert.Equal(t, []string{"a"}, m.Keys())
	assert.Equal(t, 1, m.Get("a"))
}

func TestMap_Clone(t *testing.T) {
	m := NewMap()
	m.Put("a", 1)
	m.Put("b", 2)

	clone := m.Clone()
	clone.Put("c", 3)
	clone.Put("a", 99)

	// The original must not see the clone's writes.
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	assert.Equal(t, 1, m.Get("a"))
	assert.Equal(t, []string{"a", "b", "c"}, clone.Keys())
}

func TestMap_Entries(t *testing.T) {
	m := NewMap()
	m.Put("first", "1")
	m.Put("second", "2")

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Key: "first", Value: "1"}, entries[0])
	assert.Equal(t, Entry{Key: "second", Value: "2"}, entries[1])
}

func TestMap_JSONOrder(t *testing.T) {
	m := NewMap()
	m.Put("zebra", 1)
	m.Put("apple", 2)
	m.Put("mango", 3)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"zebra":1,"apple":2,"mango":3}`, string(data))

	restored := NewMap()
	require.NoError(t, json.Unmarshal(data, restored))
	assert.Equal(t, []string{"zebra", "apple", "mango"}, restored.Keys())
	assert.Equal(t, float64(2), restored.Get("apple"))
}

func TestMap_ConcurrentAccess(t *testing.T) {
	m := NewMap()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n))
			for j := 0; j < 100; j++ {
				m.Put(key, j)
				_ = m.Get(key)
				_ = m.Keys()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, m.Len())
}
