package cache

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/ipintel/internal/resource"
)

const (
	maxShards = 64
	// minShardCapacity keeps small caches on few shards so the overall
	// bound stays close to the requested capacity.
	minShardCapacity = 32
)

// ShardedLRU spreads records over several LRUs to reduce lock contention
// between concurrent lookups.
type ShardedLRU struct {
	shards []*LRU
	mask   uint64
}

var _ RecordCache = (*ShardedLRU)(nil)

// NewShardedLRU creates a sharded cache holding about capacity records.
// The shard count is a power of two no larger than 64.
func NewShardedLRU(capacity int, rc *resource.Controller) *ShardedLRU {
	n := 1
	for n < maxShards && capacity/(n*2) >= minShardCapacity {
		n *= 2
	}

	s := &ShardedLRU{
		shards: make([]*LRU, n),
		mask:   uint64(n - 1),
	}

	per := capacity / n
	for i := range s.shards {
		c := per
		if i < capacity%n {
			c++
		}
		s.shards[i] = NewLRU(c, rc)
	}

	return s
}

func (s *ShardedLRU) shard(key Key) *LRU {
	if len(s.shards) == 1 {
		return s.shards[0]
	}
	var buf [5]byte
	buf[0] = byte(key.Collection)
	binary.LittleEndian.PutUint32(buf[1:], key.Offset)
	return s.shards[xxhash.Sum64(buf[:])&s.mask]
}

// Shards returns the number of shards.
func (s *ShardedLRU) Shards() int { return len(s.shards) }

// Get returns a cached record.
func (s *ShardedLRU) Get(key Key) ([]byte, bool) {
	return s.shard(key).Get(key)
}

// Set caches a record.
func (s *ShardedLRU) Set(key Key, b []byte) {
	s.shard(key).Set(key, b)
}

// Len returns the number of cached records across all shards.
func (s *ShardedLRU) Len() int {
	total := 0
	for _, sh := range s.shards {
		total += sh.Len()
	}
	return total
}

// Stats returns aggregated counters.
func (s *ShardedLRU) Stats() Stats {
	var st Stats
	for _, sh := range s.shards {
		st = st.Add(sh.Stats())
	}
	return st
}

// Close closes all shards.
func (s *ShardedLRU) Close() error {
	for _, sh := range s.shards {
		if err := sh.Close(); err != nil {
			return err
		}
	}
	return nil
}
