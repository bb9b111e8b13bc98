package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"github.com/hupe1980/ipintel/internal/cache"
	"github.com/hupe1980/ipintel/internal/collection"
	"github.com/hupe1980/ipintel/internal/format"
	"github.com/hupe1980/ipintel/internal/graph"
	"github.com/hupe1980/ipintel/internal/profile"
)

// Dataset is one loaded data file. It is immutable once returned by a Load
// function.
type Dataset struct {
	id          uuid.UUID
	source      string
	header      format.Header
	fingerprint uint64
	cfg         Config
	required    []string

	cols     [format.NumCollections]collection.Collection
	graphs   graph.Graphs
	resolver *profile.Resolver

	components          []Component
	properties          []Property
	available           []Available
	componentsAvailable *roaring.Bitmap

	backing *backing
	logger  *slog.Logger

	refs      atomic.Int64
	closeOnce sync.Once
	closeErr  error
}

// ID identifies this load of the data file.
func (d *Dataset) ID() uuid.UUID { return d.id }

// Source returns the path, or "memory" for data loaded from a buffer.
func (d *Dataset) Source() string { return d.source }

// Kind returns how the data is held: KindMemory, KindMmap or KindFile.
func (d *Dataset) Kind() string { return d.backing.kind }

// Header returns the file header.
func (d *Dataset) Header() format.Header { return d.header }

// Fingerprint is a hash of the file header. Files with equal fingerprints
// have identical layouts and dates.
func (d *Dataset) Fingerprint() uint64 { return d.fingerprint }

// Config returns the configuration the dataset was loaded with.
func (d *Dataset) Config() Config { return d.cfg }

// Size returns the size of the data source in bytes.
func (d *Dataset) Size() int64 { return d.backing.size }

// Collection returns the named collection.
func (d *Dataset) Collection(name format.Collection) collection.Collection { return d.cols[name] }

// Graphs returns the component graphs.
func (d *Dataset) Graphs() graph.Graphs { return d.graphs }

// Resolver returns the profile resolver.
func (d *Dataset) Resolver() *profile.Resolver { return d.resolver }

// Components returns every component in file order.
func (d *Dataset) Components() []Component { return d.components }

// Properties returns every property in file order.
func (d *Dataset) Properties() []Property { return d.properties }

// Available returns the required properties present in the file, ordered
// by name. Positions in this slice are required property indexes.
func (d *Dataset) Available() []Available { return d.available }

// AvailableNames returns the names of the available properties.
func (d *Dataset) AvailableNames() []string {
	names := make([]string, len(d.available))
	for i, a := range d.available {
		names[i] = a.Name
	}
	return names
}

// RequiredIndex returns the required property index of name, compared
// without case, or -1.
func (d *Dataset) RequiredIndex(name string) int {
	for i, a := range d.available {
		if strings.EqualFold(a.Name, name) {
			return i
		}
	}
	return -1
}

// EvidenceProperties returns the indexes of the properties producing
// evidence for the required property at index.
func (d *Dataset) EvidenceProperties(index int) []uint32 {
	if index < 0 || index >= len(d.available) {
		return nil
	}
	return d.available[index].Evidence
}

// ComponentAvailable reports whether any required property belongs to the
// component at index.
func (d *Dataset) ComponentAvailable(index uint8) bool {
	return d.componentsAvailable.Contains(uint32(index))
}

// AvailableComponents returns the indexes of components with required
// properties, ascending.
func (d *Dataset) AvailableComponents() []uint8 {
	out := make([]uint8, 0, d.componentsAvailable.GetCardinality())
	it := d.componentsAvailable.Iterator()
	for it.HasNext() {
		out = append(out, uint8(it.Next()))
	}
	return out
}

// String reads the stored string at offset.
func (d *Dataset) String(ctx context.Context, offset uint32) (string, error) {
	return readString(ctx, d.cols[format.Strings], offset)
}

// Value reads the value record at index.
func (d *Dataset) Value(ctx context.Context, index uint32) (format.Value, error) {
	it, err := d.cols[format.Values].Get(ctx, index)
	if err != nil {
		return format.Value{}, err
	}
	defer it.Release()
	return format.ParseValue(it.Data), nil
}

// ValueName returns the text of the value at index.
func (d *Dataset) ValueName(ctx context.Context, index uint32) (string, error) {
	v, err := d.Value(ctx, index)
	if err != nil {
		return "", err
	}
	return d.String(ctx, v.NameOffset)
}

// Resident reports whether every collection is held in memory.
func (d *Dataset) Resident() bool {
	for _, c := range d.cols {
		if !c.Resident() {
			return false
		}
	}
	for _, g := range d.graphs {
		if !g.Nodes().Resident() {
			return false
		}
	}
	return true
}

// CacheStats sums the record cache counters of every collection.
func (d *Dataset) CacheStats() cache.Stats {
	var s cache.Stats
	for _, c := range d.cols {
		s = s.Add(c.CacheStats())
	}
	for _, g := range d.graphs {
		s = s.Add(g.Nodes().CacheStats())
	}
	return s
}

// OpenHandles returns the number of open file handles.
func (d *Dataset) OpenHandles() int64 { return d.backing.openHandles() }

// Refs returns the current reference count.
func (d *Dataset) Refs() int64 { return d.refs.Load() }

// TryIncRef takes a reference unless the dataset is already closed.
func (d *Dataset) TryIncRef() bool {
	for {
		refs := d.refs.Load()
		if refs <= 0 {
			return false
		}
		if d.refs.CompareAndSwap(refs, refs+1) {
			return true
		}
	}
}

// Release drops a reference. The last release closes the dataset.
func (d *Dataset) Release() {
	if d.refs.Add(-1) == 0 {
		_ = d.close()
	}
}

// Close drops the creator's reference and returns the close error if that
// was the last one.
func (d *Dataset) Close() error {
	if d.refs.Add(-1) == 0 {
		return d.close()
	}
	return nil
}

func (d *Dataset) close() error {
	d.closeOnce.Do(func() {
		d.closeErr = closeAll(d.cols, d.graphs, d.backing)
		d.logger.Debug("Dataset released", "id", d.id, "source", d.source)
	})
	return d.closeErr
}

// closeAll closes graphs, then collections, then their backing.
func closeAll(cols [format.NumCollections]collection.Collection, graphs graph.Graphs, b *backing) error {
	var errs []error
	if err := graphs.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, c := range cols {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	if b != nil {
		errs = append(errs, b.close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close dataset: %w", err)
	}
	return nil
}
