package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/ipintel/internal/format"
	"github.com/hupe1980/ipintel/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeKey(i int) Key {
	return Key{Collection: format.Graphs, Offset: uint32(i)}
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU(2, nil)

	c.Set(nodeKey(1), []byte("a"))
	c.Set(nodeKey(2), []byte("b"))

	// Touch 1 so 2 becomes the eviction candidate.
	_, ok := c.Get(nodeKey(1))
	require.True(t, ok)

	c.Set(nodeKey(3), []byte("c"))
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get(nodeKey(2))
	assert.False(t, ok)
	got, ok := c.Get(nodeKey(1))
	assert.True(t, ok)
	assert.Equal(t, "a", string(got))

	st := c.Stats()
	assert.Equal(t, int64(1), st.Evictions)
	assert.Equal(t, int64(2), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, int64(2), st.Bytes)
}

func TestLRU_KeysAreScopedByCollection(t *testing.T) {
	c := NewLRU(4, nil)
	c.Set(Key{Collection: format.Strings, Offset: 7}, []byte("string"))
	c.Set(Key{Collection: format.Profiles, Offset: 7}, []byte("profile"))

	s, _ := c.Get(Key{Collection: format.Strings, Offset: 7})
	p, _ := c.Get(Key{Collection: format.Profiles, Offset: 7})
	assert.Equal(t, "string", string(s))
	assert.Equal(t, "profile", string(p))
}

func TestLRU_MemoryReservation(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 10})
	c := NewLRU(10, rc)

	c.Set(nodeKey(1), make([]byte, 6))
	assert.Equal(t, int64(6), rc.MemoryUsage())

	// Does not fit the budget, so it is served uncached.
	c.Set(nodeKey(2), make([]byte, 6))
	_, ok := c.Get(nodeKey(2))
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestLRU_RejectedSetKeepsEntries(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 10})
	c := NewLRU(2, rc)

	c.Set(nodeKey(1), make([]byte, 4))
	c.Set(nodeKey(2), make([]byte, 4))

	// 8 + 7 exceeds the limit, so nothing is evicted for it.
	c.Set(nodeKey(3), make([]byte, 7))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(8), rc.MemoryUsage())
	assert.Zero(t, c.Stats().Evictions)

	_, ok := c.Get(nodeKey(1))
	assert.True(t, ok)
	_, ok = c.Get(nodeKey(2))
	assert.True(t, ok)
	_, ok = c.Get(nodeKey(3))
	assert.False(t, ok)

	// A fitting record still evicts the least recently used entry.
	c.Set(nodeKey(4), make([]byte, 2))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(1), c.Stats().Evictions)
	assert.Equal(t, int64(6), rc.MemoryUsage())
}

func TestLRU_DuplicateSet(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	c := NewLRU(4, rc)

	c.Set(nodeKey(1), []byte("abc"))
	c.Set(nodeKey(1), []byte("abc"))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(3), rc.MemoryUsage())
}

func TestShardedLRU_ShardCount(t *testing.T) {
	assert.Equal(t, 1, NewShardedLRU(10, nil).Shards())
	assert.Equal(t, 2, NewShardedLRU(64, nil).Shards())
	assert.Equal(t, 64, NewShardedLRU(1<<20, nil).Shards())
}

func TestShardedLRU_CapacityBound(t *testing.T) {
	c := NewShardedLRU(100, nil)
	for i := range 1000 {
		c.Set(nodeKey(i), []byte{byte(i)})
	}
	assert.LessOrEqual(t, c.Len(), 100)
	assert.Positive(t, c.Stats().Evictions)
}

func TestShardedLRU_Concurrent(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	c := NewShardedLRU(4096, rc)

	const goroutines = 32
	const ops = 500

	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range ops {
				k := Key{Collection: format.Collection(g % int(format.NumCollections)), Offset: uint32(i)}
				c.Set(k, []byte(fmt.Sprint(i)))
				c.Get(k)
			}
		}()
	}
	wg.Wait()

	st := c.Stats()
	assert.Equal(t, int64(goroutines*ops), st.Hits+st.Misses)
	assert.Equal(t, st.Bytes, rc.MemoryUsage())

	require.NoError(t, c.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func BenchmarkShardedLRU_Get(b *testing.B) {
	c := NewShardedLRU(1<<16, nil)
	for i := range 1000 {
		c.Set(nodeKey(i), make([]byte, 16))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			c.Get(nodeKey(i % 1000))
			i++
		}
	})
}
