package ipintel

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hupe1980/ipintel/internal/dataset"
	"github.com/hupe1980/ipintel/internal/format"
)

// Header is the data file header: version, publish dates and the layout
// of every collection.
type Header = format.Header

// Property is an available property in required-index order.
type Property = dataset.Available

// Component groups the properties resolved by one graph.
type Component = dataset.Component

// Dataset is a pinned data file. It stays usable across reloads of the
// engine until released.
type Dataset struct {
	d        *dataset.Dataset
	released atomic.Bool
}

// Release unpins the data file. Further calls are no-ops.
func (ds *Dataset) Release() {
	if ds.released.CompareAndSwap(false, true) {
		ds.d.Release()
	}
}

// ID identifies this load of the data file.
func (ds *Dataset) ID() uuid.UUID { return ds.d.ID() }

// Source is the path, blob name, or "memory" the data file came from.
func (ds *Dataset) Source() string { return ds.d.Source() }

// Header returns the data file header.
func (ds *Dataset) Header() Header { return ds.d.Header() }

// Fingerprint is a hash of the data file header. Reloading an identical
// file yields the same fingerprint.
func (ds *Dataset) Fingerprint() uint64 { return ds.d.Fingerprint() }

// Size is the size of the data file in bytes after decompression.
func (ds *Dataset) Size() int64 { return ds.d.Size() }

// Properties returns the available properties in required-index order.
func (ds *Dataset) Properties() []Property { return ds.d.Available() }

// Components returns every component of the data file.
func (ds *Dataset) Components() []Component { return ds.d.Components() }

// RequiredPropertyIndex returns the required index of the named property,
// or -1.
func (ds *Dataset) RequiredPropertyIndex(name string) int { return ds.d.RequiredIndex(name) }

// EvidenceProperties returns the names of the properties that produce
// evidence for the property at requiredIndex, such as CountryJavaScript
// for Country.
func (ds *Dataset) EvidenceProperties(requiredIndex int) []string {
	idx := ds.d.EvidenceProperties(requiredIndex)
	if len(idx) == 0 {
		return nil
	}
	props := ds.d.Properties()
	names := make([]string, len(idx))
	for i, p := range idx {
		names[i] = props[p].Name
	}
	return names
}
