package collection

import (
	"context"

	"github.com/hupe1980/ipintel/internal/cache"
	"github.com/hupe1980/ipintel/internal/format"
)

// Memory is a collection over a memory-resident byte span.
type Memory struct {
	name   format.Collection
	layout Layout
	data   []byte
	count  uint32
}

var _ Collection = (*Memory)(nil)

// NewMemory creates a collection over data, which must be exactly the
// collection's bytes as located by h. data is retained, not copied.
func NewMemory(name format.Collection, h format.CollectionHeader, layout Layout, data []byte) (*Memory, error) {
	if uint64(len(data)) != uint64(h.Length) {
		return nil, format.Corruptf("%s: %d bytes for declared length %d", name, len(data), h.Length)
	}
	if layout.IsFixed() && uint64(h.Count)*uint64(layout.Width) != uint64(h.Length) {
		return nil, format.Corruptf("%s: %d records of %d bytes in length %d", name, h.Count, layout.Width, h.Length)
	}
	return &Memory{name: name, layout: layout, data: data, count: h.Count}, nil
}

func (m *Memory) Get(_ context.Context, index uint32) (Item, error) {
	if err := checkIndex(m.name, m.layout, index, m.count); err != nil {
		return Item{}, err
	}
	off := int(index) * m.layout.Width
	return Item{Data: m.data[off : off+m.layout.Width : off+m.layout.Width]}, nil
}

func (m *Memory) GetAt(_ context.Context, offset uint32) (Item, error) {
	if m.layout.IsFixed() {
		return Item{}, format.Corruptf("%s: offset access to fixed width records", m.name)
	}
	if err := checkRecord(m.name, offset, m.layout.HeaderSize, m.Length()); err != nil {
		return Item{}, err
	}
	size, err := m.layout.Size(m.data[offset:])
	if err != nil {
		return Item{}, err
	}
	if err := checkRecord(m.name, offset, size, m.Length()); err != nil {
		return Item{}, err
	}
	end := int(offset) + size
	return Item{Data: m.data[offset:end:end]}, nil
}

func (m *Memory) Name() format.Collection { return m.name }
func (m *Memory) Count() uint32           { return m.count }
func (m *Memory) Length() uint32          { return uint32(len(m.data)) }
func (m *Memory) Resident() bool          { return true }
func (m *Memory) CacheStats() cache.Stats { return cache.Stats{} }

// Close drops the reference to the span. The owner of the span releases it.
func (m *Memory) Close() error {
	m.data = nil
	return nil
}
