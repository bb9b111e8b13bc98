// Package testutil writes synthetic data files for tests.
//
// A Builder collects components, properties, profiles and per-component
// prefix tables, then lays them out in the binary data file format with
// compiled component graphs. It is a fixture writer, not a production
// compiler: every graph uses single bit skips and strings are not shared
// across files.
package testutil

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/hupe1980/ipintel/internal/compress"
	"github.com/hupe1980/ipintel/internal/format"
)

// Builder assembles a data file.
type Builder struct {
	VersionMajor uint8
	VersionMinor uint8
	Published    time.Time
	NextUpdate   time.Time

	components []component
	properties []property
	profiles   []*Profile
	graphs     []*GraphBuilder
	maps       []string
}

type component struct {
	id   uint8
	name string
	def  *Profile
}

type property struct {
	component   int
	name        string
	description string
	category    string
	typ         format.ValueType
	isList      bool
	order       uint8
	def         string
	hasDef      bool
}

// PropertyOption customises a property.
type PropertyOption func(*property)

// WithDefault sets the property's default value.
func WithDefault(v string) PropertyOption {
	return func(p *property) { p.def, p.hasDef = v, true }
}

// AsList marks the property as list valued.
func AsList() PropertyOption { return func(p *property) { p.isList = true } }

// WithDescription sets the property's description.
func WithDescription(s string) PropertyOption { return func(p *property) { p.description = s } }

// WithCategory sets the property's category.
func WithCategory(s string) PropertyOption { return func(p *property) { p.category = s } }

// Profile is a set of property values of one component.
type Profile struct {
	component int
	id        uint32
	values    map[int][]string
	offset    uint32
}

// ID returns the profile id.
func (p *Profile) ID() uint32 { return p.id }

// Offset returns the profile's byte offset in the Profiles collection as
// assigned by the last Build.
func (p *Profile) Offset() uint32 { return p.offset }

// GroupMember is one weighted entry of a profile group. A nil Profile is a
// null entry.
type GroupMember struct {
	Profile *Profile
	Weight  uint16
}

// Target is what an address range resolves to.
type Target struct {
	single  *Profile
	members []GroupMember
}

// Single resolves to one profile with full weight.
func Single(p *Profile) Target { return Target{single: p} }

// Group resolves to weighted profiles. Weights are written as given so
// tests can produce invalid groups.
func Group(members ...GroupMember) Target { return Target{members: members} }

// Null resolves to no profile.
func Null() Target { return Group(GroupMember{Weight: format.FullWeight}) }

// GraphBuilder collects the ranges of one component graph.
type GraphBuilder struct {
	version   uint8
	component int
	def       Target
	ranges    []rangeTarget
}

type rangeTarget struct {
	prefix netip.Prefix
	target Target
}

// NewBuilder creates an empty builder for the supported version.
func NewBuilder() *Builder {
	return &Builder{
		VersionMajor: format.VersionMajor,
		VersionMinor: format.VersionMinor,
		Published:    time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		NextUpdate:   time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
		maps:         []string{"ipi"},
	}
}

// Component adds a component and returns its index.
func (b *Builder) Component(id uint8, name string) int {
	b.components = append(b.components, component{id: id, name: name})
	return len(b.components) - 1
}

// SetDefaultProfile sets the profile a component falls back to.
func (b *Builder) SetDefaultProfile(component int, p *Profile) {
	b.components[component].def = p
}

// Property adds a property of a component and returns its index.
func (b *Builder) Property(component int, name string, typ format.ValueType, opts ...PropertyOption) int {
	p := property{component: component, name: name, typ: typ, order: uint8(len(b.properties))}
	for _, o := range opts {
		o(&p)
	}
	b.properties = append(b.properties, p)
	return len(b.properties) - 1
}

// Profile adds a profile. values maps property indexes to their values.
func (b *Builder) Profile(component int, id uint32, values map[int][]string) *Profile {
	p := &Profile{component: component, id: id, values: values}
	b.profiles = append(b.profiles, p)
	return p
}

// Graph adds the graph of a component for an IP version. Addresses outside
// every range resolve to def.
func (b *Builder) Graph(version uint8, component int, def Target) *GraphBuilder {
	g := &GraphBuilder{version: version, component: component, def: def}
	b.graphs = append(b.graphs, g)
	return g
}

// Range maps prefix to t.
func (g *GraphBuilder) Range(prefix string, t Target) *GraphBuilder {
	g.ranges = append(g.ranges, rangeTarget{prefix: netip.MustParsePrefix(prefix), target: t})
	return g
}

type stringTable struct {
	data    []byte
	offsets map[string]uint32
}

func (st *stringTable) add(s string) uint32 {
	if off, ok := st.offsets[s]; ok {
		return off
	}
	off := uint32(len(st.data))
	st.data = binary.LittleEndian.AppendUint16(st.data, uint16(len(s)))
	st.data = append(st.data, s...)
	st.offsets[s] = off
	return off
}

// Build lays out the data file.
func (b *Builder) Build() ([]byte, error) {
	strs := &stringTable{offsets: make(map[string]uint32)}
	empty := strs.add("")
	var cols [format.NumCollections][]byte
	var counts [format.NumCollections]uint32

	// Values, grouped by property in property order and sorted by name.
	valueIndex := make([]map[string]uint32, len(b.properties))
	var props, values []byte
	next := uint32(0)
	for pi, p := range b.properties {
		distinct := map[string]bool{}
		if p.hasDef {
			distinct[p.def] = true
		}
		for _, prof := range b.profiles {
			for _, v := range prof.values[pi] {
				distinct[v] = true
			}
		}
		names := make([]string, 0, len(distinct))
		for v := range distinct {
			names = append(names, v)
		}
		sort.Strings(names)

		valueIndex[pi] = make(map[string]uint32, len(names))
		first, last := uint32(1), uint32(0)
		if len(names) > 0 {
			first, last = next, next+uint32(len(names))-1
		}
		for _, v := range names {
			rec := make([]byte, format.ValueSize)
			format.Value{
				PropertyIndex:     uint16(pi),
				NameOffset:        strs.add(v),
				DescriptionOffset: empty,
				URLOffset:         empty,
			}.Put(rec)
			values = append(values, rec...)
			valueIndex[pi][v] = next
			next++
		}

		def := int32(-1)
		if p.hasDef {
			def = int32(valueIndex[pi][p.def])
		}
		rec := make([]byte, format.PropertySize)
		format.Property{
			ComponentIndex:    uint8(p.component),
			DisplayOrder:      p.order,
			IsList:            p.isList,
			ValueType:         p.typ,
			NameOffset:        strs.add(p.name),
			DescriptionOffset: strs.add(p.description),
			CategoryOffset:    strs.add(p.category),
			FirstValueIndex:   first,
			LastValueIndex:    last,
			FirstMapIndex:     0,
			MapCount:          uint32(len(b.maps)),
			DefaultValueIndex: def,
		}.Put(rec)
		props = append(props, rec...)
	}
	cols[format.Properties], counts[format.Properties] = props, uint32(len(b.properties))
	cols[format.Values], counts[format.Values] = values, next

	// Profiles, in insertion order.
	var profiles []byte
	for _, p := range b.profiles {
		p.offset = uint32(len(profiles))
		var idx []uint32
		for pi, vs := range p.values {
			if pi < 0 || pi >= len(b.properties) {
				return nil, fmt.Errorf("profile %d: unknown property %d", p.id, pi)
			}
			for _, v := range vs {
				idx = append(idx, valueIndex[pi][v])
			}
		}
		sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })

		rec := make([]byte, format.ProfileHeaderSize, format.ProfileHeaderSize+4*len(idx))
		format.ProfileHeader{ComponentIndex: uint8(p.component), ProfileID: p.id, ValueCount: uint32(len(idx))}.Put(rec)
		for _, i := range idx {
			rec = binary.LittleEndian.AppendUint32(rec, i)
		}
		profiles = append(profiles, rec...)
	}
	cols[format.Profiles], counts[format.Profiles] = profiles, uint32(len(b.profiles))

	// Components and maps reference strings only.
	var comps []byte
	for _, c := range b.components {
		def := format.DynamicComponentOffset
		if c.def != nil {
			def = c.def.offset
		}
		rec := make([]byte, format.ComponentSize)
		format.Component{ID: c.id, NameOffset: strs.add(c.name), DefaultProfileOffset: def}.Put(rec)
		comps = append(comps, rec...)
	}
	cols[format.Components], counts[format.Components] = comps, uint32(len(b.components))

	var maps []byte
	for _, m := range b.maps {
		maps = binary.LittleEndian.AppendUint32(maps, strs.add(m))
	}
	cols[format.Maps], counts[format.Maps] = maps, uint32(len(b.maps))

	// Profile offsets and groups for every graph target.
	var offsets, groups []byte
	addTarget := func(t Target) uint32 {
		ref := uint32(len(offsets) / format.ProfileOffsetSize)
		if t.single != nil {
			offsets = binary.LittleEndian.AppendUint32(offsets, t.single.offset)
			return ref
		}
		start := int32(len(groups) / format.GroupEntrySize)
		for _, m := range t.members {
			e := format.GroupEntry{ProfileOffset: format.NullProfileOffset, RawWeighting: m.Weight}
			if m.Profile != nil {
				e.ProfileOffset = m.Profile.offset
			}
			rec := make([]byte, format.GroupEntrySize)
			e.Put(rec)
			groups = append(groups, rec...)
		}
		offsets = binary.LittleEndian.AppendUint32(offsets, uint32(-1-start))
		return ref
	}

	type compiled struct {
		info  format.GraphInfo
		nodes []byte
	}
	var graphs []compiled
	for _, g := range b.graphs {
		trie := NewTrie(g.version, addTarget(g.def))
		for _, r := range g.ranges {
			trie.Insert(r.prefix, addTarget(r.target))
		}
		nodes := trie.Compile()
		graphs = append(graphs, compiled{
			info:  GraphInfo(g.version, b.components[g.component].id, format.CollectionHeader{Count: uint32(len(nodes))}),
			nodes: EncodeNodes(nodes),
		})
	}
	cols[format.ProfileOffsets], counts[format.ProfileOffsets] = offsets, uint32(len(offsets)/format.ProfileOffsetSize)
	cols[format.ProfileGroups], counts[format.ProfileGroups] = groups, uint32(len(groups)/format.GroupEntrySize)
	cols[format.Strings], counts[format.Strings] = strs.data, uint32(len(strs.offsets))

	// Node sections follow the nine collections; graph infos point at them.
	var h format.Header
	h.VersionMajor, h.VersionMinor = b.VersionMajor, b.VersionMinor
	h.Published, h.NextUpdate = format.DateOf(b.Published), format.DateOf(b.NextUpdate)

	size := format.HeaderSize
	for c := range cols {
		if c == int(format.Graphs) {
			size += len(graphs) * format.GraphInfoSize
			continue
		}
		size += len(cols[c])
	}
	nodeOffset := size
	for i := range graphs {
		graphs[i].info.Nodes.Offset = uint32(nodeOffset)
		graphs[i].info.Nodes.Length = uint32(len(graphs[i].nodes))
		nodeOffset += len(graphs[i].nodes)
	}
	var infos []byte
	for _, g := range graphs {
		rec := make([]byte, format.GraphInfoSize)
		g.info.Put(rec)
		infos = append(infos, rec...)
	}
	cols[format.Graphs], counts[format.Graphs] = infos, uint32(len(graphs))

	out := make([]byte, format.HeaderSize, nodeOffset)
	for c := range cols {
		h.Collections[c] = format.CollectionHeader{
			Offset: uint32(len(out)),
			Length: uint32(len(cols[c])),
			Count:  counts[c],
		}
		out = append(out, cols[c]...)
	}
	for _, g := range graphs {
		out = append(out, g.nodes...)
	}
	h.Put(out)

	return out, nil
}

// MustBuild builds the data file or fails the test.
func (b *Builder) MustBuild(tb testing.TB) []byte {
	tb.Helper()
	data, err := b.Build()
	if err != nil {
		tb.Fatalf("build data file: %v", err)
	}
	return data
}

// WriteFile builds the data file into a new file under tb's temp dir and
// returns its path.
func (b *Builder) WriteFile(tb testing.TB) string {
	tb.Helper()
	return WriteBytes(tb, b.MustBuild(tb))
}

// WriteCompressed is WriteFile with the file compressed by alg.
func (b *Builder) WriteCompressed(tb testing.TB, alg compress.Algorithm) string {
	tb.Helper()
	return WriteBytes(tb, Compress(tb, alg, b.MustBuild(tb)))
}

// WriteBytes writes data to a new file under tb's temp dir.
func WriteBytes(tb testing.TB, data []byte) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "ipi.dat")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write data file: %v", err)
	}
	return path
}
