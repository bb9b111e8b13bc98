// Package cache provides bounded LRU caches for records paged in from a
// data file.
//
// Collections configured with a cache size keep recently used records in a
// [ShardedLRU]. Small caches use a single shard so the bound is exact;
// larger ones spread keys over up to 64 shards selected by xxhash, with one
// mutex per shard.
//
// Cached bytes are reserved against the engine's resource controller. When
// the memory budget is exhausted records are served uncached rather than
// failing the lookup. Close returns every reservation.
package cache
