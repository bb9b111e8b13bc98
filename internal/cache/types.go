package cache

import "github.com/hupe1980/ipintel/internal/format"

// Key identifies one record of a data file.
type Key struct {
	Collection format.Collection
	// Offset is the record index for fixed-width collections and the byte
	// offset for variable-width ones.
	Offset uint32
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	Bytes     int64
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Hits:      s.Hits + o.Hits,
		Misses:    s.Misses + o.Misses,
		Evictions: s.Evictions + o.Evictions,
		Entries:   s.Entries + o.Entries,
		Bytes:     s.Bytes + o.Bytes,
	}
}

// RecordCache caches immutable record bytes.
// Returned slices must be treated as read-only.
type RecordCache interface {
	// Get returns a cached record. ok=false if missing.
	Get(key Key) (b []byte, ok bool)
	// Set caches a record. The cache retains b; callers must not modify it.
	Set(key Key, b []byte)
	// Stats returns the cache counters.
	Stats() Stats
	// Close drops every entry and returns its memory reservation.
	Close() error
}
