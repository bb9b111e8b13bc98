// Package collection provides uniform access to the record collections of
// a data file.
//
// A Collection hides where its records live: a memory-resident byte span
// (a caller buffer, a whole-file read or a memory mapping), or a section of
// the file read on demand through a shared handle pool with an optional
// resident prefix and a bounded record cache.
//
// Records are either fixed width, addressed by index, or variable width,
// addressed by byte offset and sized from a length prefix. Items returned
// by Get and GetAt are borrowed and must be released.
package collection

import (
	"context"

	"github.com/hupe1980/ipintel/internal/cache"
	"github.com/hupe1980/ipintel/internal/format"
	"github.com/hupe1980/ipintel/internal/pool"
)

// Layout describes the shape of a collection's records.
type Layout struct {
	// Width is the size of fixed width records, or 0.
	Width int
	// HeaderSize is the size of the prefix of a variable width record that
	// Size needs.
	HeaderSize int
	// Size returns the total size of a variable width record from its prefix.
	Size func(header []byte) (int, error)
}

// Fixed returns the layout of records of width bytes.
func Fixed(width int) Layout { return Layout{Width: width} }

// Variable returns the layout of length-prefixed records.
func Variable(headerSize int, size func([]byte) (int, error)) Layout {
	return Layout{HeaderSize: headerSize, Size: size}
}

// IsFixed reports whether records have a fixed width.
func (l Layout) IsFixed() bool { return l.Width > 0 }

// LayoutOf returns the layout of a named data file collection.
func LayoutOf(c format.Collection) Layout {
	switch c {
	case format.Strings:
		return Variable(format.StringHeaderSize, format.StringSize)
	case format.Profiles:
		return Variable(format.ProfileHeaderSize, format.ProfileSize)
	default:
		return Fixed(format.RecordWidth(c))
	}
}

// Item is a borrowed record.
type Item struct {
	Data []byte
	buf  *[]byte
}

// Release returns the item's buffer, if any. Data must not be used after.
func (it *Item) Release() {
	if it.buf != nil {
		pool.Put(it.buf)
		it.buf = nil
	}
	it.Data = nil
}

// Collection is a read-only set of records.
type Collection interface {
	// Get returns the fixed width record at index.
	Get(ctx context.Context, index uint32) (Item, error)
	// GetAt returns the variable width record starting at byte offset.
	GetAt(ctx context.Context, offset uint32) (Item, error)
	// Name returns the collection's name in the data file.
	Name() format.Collection
	// Count returns the number of records.
	Count() uint32
	// Length returns the size of the collection in bytes.
	Length() uint32
	// Resident reports whether every record is held in memory.
	Resident() bool
	// CacheStats returns the record cache counters.
	CacheStats() cache.Stats
	// Close releases the collection's memory and cache.
	Close() error
}

func checkIndex(name format.Collection, l Layout, index, count uint32) error {
	if !l.IsFixed() {
		return format.Corruptf("%s: index access to variable width records", name)
	}
	if index >= count {
		return format.Corruptf("%s: index %d out of range %d", name, index, count)
	}
	return nil
}

func checkRecord(name format.Collection, offset uint32, size int, length uint32) error {
	if size <= 0 || uint64(offset)+uint64(size) > uint64(length) {
		return format.Corruptf("%s: record of %d bytes at %d exceeds length %d", name, size, offset, length)
	}
	return nil
}
