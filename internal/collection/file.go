package collection

import (
	"context"
	"math"

	"github.com/hupe1980/ipintel/internal/cache"
	"github.com/hupe1980/ipintel/internal/filepool"
	"github.com/hupe1980/ipintel/internal/format"
	"github.com/hupe1980/ipintel/internal/pool"
	"github.com/hupe1980/ipintel/internal/resource"
)

// Config controls how a file-backed collection keeps records in memory.
type Config struct {
	// Loaded is the number of leading records read into memory at
	// construction. Values at or above the record count load everything.
	Loaded uint32
	// CacheSize is the number of other records kept in an LRU cache.
	// 0 reads them from the file on every access.
	CacheSize int
}

// File is a collection read from a section of the data file.
type File struct {
	name   format.Collection
	layout Layout
	header format.CollectionHeader
	files  *filepool.Pool
	rc     *resource.Controller

	// resident prefix of whole records
	loaded       []byte
	loadedCount  uint32
	loadedLength uint32

	cache cache.RecordCache
}

var _ Collection = (*File)(nil)

// NewFile creates a collection over the section h of the file served by
// files. The resident prefix is read before NewFile returns.
func NewFile(ctx context.Context, name format.Collection, h format.CollectionHeader, layout Layout,
	files *filepool.Pool, cfg Config, rc *resource.Controller) (*File, error) {
	if uint64(h.Offset)+uint64(h.Length) > uint64(files.Size()) {
		return nil, format.Corruptf("%s: ends at %d beyond file size %d", name, h.End(), files.Size())
	}

	f := &File{
		name:   name,
		layout: layout,
		header: h,
		files:  files,
		rc:     rc,
	}

	if err := f.loadPrefix(ctx, min(cfg.Loaded, h.Count)); err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 && f.loadedCount < h.Count {
		f.cache = cache.NewShardedLRU(cfg.CacheSize, rc)
	}

	return f, nil
}

// loadPrefix reads the first n records into memory.
func (f *File) loadPrefix(ctx context.Context, n uint32) error {
	if n == 0 {
		return nil
	}

	var length uint32
	switch {
	case n == f.header.Count:
		length = f.header.Length
	case f.layout.IsFixed():
		length = n * uint32(f.layout.Width)
	default:
		// Walk the length prefixes of the first n records.
		var off uint64
		hdr := make([]byte, f.layout.HeaderSize)
		for range n {
			if err := checkRecord(f.name, uint32(min(off, math.MaxUint32)), f.layout.HeaderSize, f.header.Length); err != nil {
				return err
			}
			if err := f.files.ReadAt(ctx, hdr, int64(f.header.Offset)+int64(off)); err != nil {
				return err
			}
			size, err := f.layout.Size(hdr)
			if err != nil {
				return err
			}
			off += uint64(size)
		}
		if off > uint64(f.header.Length) {
			return format.Corruptf("%s: %d records overrun length %d", f.name, n, f.header.Length)
		}
		length = uint32(off)
	}

	if err := f.rc.ReserveMemory(int64(length)); err != nil {
		return err
	}
	buf := make([]byte, length)
	if err := f.files.ReadAt(ctx, buf, int64(f.header.Offset)); err != nil {
		f.rc.ReleaseMemory(int64(length))
		return err
	}

	f.loaded = buf
	f.loadedCount = n
	f.loadedLength = length
	return nil
}

func (f *File) Get(ctx context.Context, index uint32) (Item, error) {
	if err := checkIndex(f.name, f.layout, index, f.header.Count); err != nil {
		return Item{}, err
	}
	w := f.layout.Width
	if index < f.loadedCount {
		off := int(index) * w
		return Item{Data: f.loaded[off : off+w : off+w]}, nil
	}
	return f.read(ctx, index, uint32(w)*index, w)
}

func (f *File) GetAt(ctx context.Context, offset uint32) (Item, error) {
	if f.layout.IsFixed() {
		return Item{}, format.Corruptf("%s: offset access to fixed width records", f.name)
	}
	if offset < f.loadedLength {
		if err := checkRecord(f.name, offset, f.layout.HeaderSize, f.loadedLength); err != nil {
			return Item{}, err
		}
		size, err := f.layout.Size(f.loaded[offset:])
		if err != nil {
			return Item{}, err
		}
		if err := checkRecord(f.name, offset, size, f.loadedLength); err != nil {
			return Item{}, err
		}
		end := int(offset) + size
		return Item{Data: f.loaded[offset:end:end]}, nil
	}
	return f.read(ctx, offset, offset, 0)
}

// read serves a record beyond the resident prefix. size is 0 for variable
// width records, which are sized from their prefix first.
func (f *File) read(ctx context.Context, key, offset uint32, size int) (Item, error) {
	ck := cache.Key{Collection: f.name, Offset: key}
	if f.cache != nil {
		if b, ok := f.cache.Get(ck); ok {
			return Item{Data: b}, nil
		}
	}

	h, err := f.files.Acquire(ctx)
	if err != nil {
		return Item{}, err
	}
	defer h.Release()

	base := int64(f.header.Offset)
	if size == 0 {
		if err := checkRecord(f.name, offset, f.layout.HeaderSize, f.header.Length); err != nil {
			return Item{}, err
		}
		hp := pool.Get(f.layout.HeaderSize)
		err := h.ReadAt(*hp, base+int64(offset))
		if err == nil {
			size, err = f.layout.Size(*hp)
		}
		pool.Put(hp)
		if err != nil {
			return Item{}, err
		}
	}
	if err := checkRecord(f.name, offset, size, f.header.Length); err != nil {
		return Item{}, err
	}

	if f.cache != nil {
		// The cache retains the bytes, so they are not pooled.
		b := make([]byte, size)
		if err := h.ReadAt(b, base+int64(offset)); err != nil {
			return Item{}, err
		}
		f.cache.Set(ck, b)
		return Item{Data: b}, nil
	}

	bp := pool.Get(size)
	if err := h.ReadAt(*bp, base+int64(offset)); err != nil {
		pool.Put(bp)
		return Item{}, err
	}
	return Item{Data: *bp, buf: bp}, nil
}

func (f *File) Name() format.Collection { return f.name }
func (f *File) Count() uint32           { return f.header.Count }
func (f *File) Length() uint32          { return f.header.Length }

// Resident reports whether the whole collection was loaded.
func (f *File) Resident() bool { return f.loadedCount == f.header.Count }

// LoadedCount returns the number of records in the resident prefix.
func (f *File) LoadedCount() uint32 { return f.loadedCount }

func (f *File) CacheStats() cache.Stats {
	if f.cache == nil {
		return cache.Stats{}
	}
	return f.cache.Stats()
}

// Close drops the resident prefix and the cache. The handle pool is owned
// by the dataset.
func (f *File) Close() error {
	if f.loaded != nil {
		f.rc.ReleaseMemory(int64(f.loadedLength))
		f.loaded = nil
		f.loadedCount = 0
		f.loadedLength = 0
	}
	if f.cache != nil {
		err := f.cache.Close()
		f.cache = nil
		return err
	}
	return nil
}
