package format

import (
	"encoding/binary"
	"math"
)

// Fixed record widths.
const (
	ComponentSize     = 12
	MapSize           = 4
	PropertySize      = 36
	ValueSize         = 16
	GraphInfoSize     = CollectionHeaderSize + 4 + 4*MemberSize
	MemberSize        = 16
	GroupEntrySize    = 6
	ProfileOffsetSize = 4

	// ProfileHeaderSize is the fixed prefix of a variable width profile.
	ProfileHeaderSize = 10
	// StringHeaderSize is the length prefix of a stored string.
	StringHeaderSize = 2
)

const (
	// NullProfileOffset marks a profile group entry without a profile.
	NullProfileOffset uint32 = math.MaxUint32
	// DynamicComponentOffset marks a component whose values are computed.
	DynamicComponentOffset uint32 = math.MaxUint32
	// FullWeight is the raw weighting of a certain (single profile) result.
	FullWeight uint16 = math.MaxUint16
)

// ValueType is the declared type of a property's values.
type ValueType uint8

const (
	ValueTypeString     ValueType = 0
	ValueTypeInteger    ValueType = 1
	ValueTypeDouble     ValueType = 2
	ValueTypeBoolean    ValueType = 3
	ValueTypeJavaScript ValueType = 4
	ValueTypeFloat      ValueType = 5
	ValueTypeByte       ValueType = 6
	ValueTypeIPAddress  ValueType = 8
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeString:
		return "string"
	case ValueTypeInteger:
		return "int"
	case ValueTypeDouble:
		return "double"
	case ValueTypeBoolean:
		return "bool"
	case ValueTypeJavaScript:
		return "javascript"
	case ValueTypeFloat:
		return "float"
	case ValueTypeByte:
		return "byte"
	case ValueTypeIPAddress:
		return "ip"
	default:
		return "unknown"
	}
}

// Component is a network component (for example "Location" or "Network").
type Component struct {
	ID                   uint8
	NameOffset           uint32
	DefaultProfileOffset uint32
}

// IsDynamic reports whether the component has no stored default profile.
func (c Component) IsDynamic() bool {
	return c.DefaultProfileOffset == DynamicComponentOffset
}

// ParseComponent decodes a component record.
func ParseComponent(b []byte) Component {
	return Component{
		ID:                   b[0],
		NameOffset:           binary.LittleEndian.Uint32(b[4:]),
		DefaultProfileOffset: binary.LittleEndian.Uint32(b[8:]),
	}
}

// Put encodes c into b.
func (c Component) Put(b []byte) {
	b[0] = c.ID
	b[1], b[2], b[3] = 0, 0, 0
	binary.LittleEndian.PutUint32(b[4:], c.NameOffset)
	binary.LittleEndian.PutUint32(b[8:], c.DefaultProfileOffset)
}

// Property describes one property of a component.
type Property struct {
	ComponentIndex    uint8
	DisplayOrder      uint8
	IsList            bool
	ValueType         ValueType
	NameOffset        uint32
	DescriptionOffset uint32
	CategoryOffset    uint32
	FirstValueIndex   uint32
	LastValueIndex    uint32
	FirstMapIndex     uint32
	MapCount          uint32
	DefaultValueIndex int32
}

// ParseProperty decodes a property record.
func ParseProperty(b []byte) Property {
	return Property{
		ComponentIndex:    b[0],
		DisplayOrder:      b[1],
		IsList:            b[2] != 0,
		ValueType:         ValueType(b[3]),
		NameOffset:        binary.LittleEndian.Uint32(b[4:]),
		DescriptionOffset: binary.LittleEndian.Uint32(b[8:]),
		CategoryOffset:    binary.LittleEndian.Uint32(b[12:]),
		FirstValueIndex:   binary.LittleEndian.Uint32(b[16:]),
		LastValueIndex:    binary.LittleEndian.Uint32(b[20:]),
		FirstMapIndex:     binary.LittleEndian.Uint32(b[24:]),
		MapCount:          binary.LittleEndian.Uint32(b[28:]),
		DefaultValueIndex: int32(binary.LittleEndian.Uint32(b[32:])),
	}
}

// Put encodes p into b.
func (p Property) Put(b []byte) {
	b[0] = p.ComponentIndex
	b[1] = p.DisplayOrder
	b[2] = 0
	if p.IsList {
		b[2] = 1
	}
	b[3] = byte(p.ValueType)
	binary.LittleEndian.PutUint32(b[4:], p.NameOffset)
	binary.LittleEndian.PutUint32(b[8:], p.DescriptionOffset)
	binary.LittleEndian.PutUint32(b[12:], p.CategoryOffset)
	binary.LittleEndian.PutUint32(b[16:], p.FirstValueIndex)
	binary.LittleEndian.PutUint32(b[20:], p.LastValueIndex)
	binary.LittleEndian.PutUint32(b[24:], p.FirstMapIndex)
	binary.LittleEndian.PutUint32(b[28:], p.MapCount)
	binary.LittleEndian.PutUint32(b[32:], uint32(p.DefaultValueIndex))
}

// Value is one possible value of a property.
type Value struct {
	PropertyIndex     uint16
	NameOffset        uint32
	DescriptionOffset uint32
	URLOffset         uint32
}

// ParseValue decodes a value record.
func ParseValue(b []byte) Value {
	return Value{
		PropertyIndex:     binary.LittleEndian.Uint16(b[0:]),
		NameOffset:        binary.LittleEndian.Uint32(b[4:]),
		DescriptionOffset: binary.LittleEndian.Uint32(b[8:]),
		URLOffset:         binary.LittleEndian.Uint32(b[12:]),
	}
}

// Put encodes v into b.
func (v Value) Put(b []byte) {
	binary.LittleEndian.PutUint16(b[0:], v.PropertyIndex)
	b[2], b[3] = 0, 0
	binary.LittleEndian.PutUint32(b[4:], v.NameOffset)
	binary.LittleEndian.PutUint32(b[8:], v.DescriptionOffset)
	binary.LittleEndian.PutUint32(b[12:], v.URLOffset)
}

// ProfileHeader is the fixed prefix of a profile record. It is followed by
// ValueCount ascending value indices.
type ProfileHeader struct {
	ComponentIndex uint8
	ProfileID      uint32
	ValueCount     uint32
}

// ParseProfileHeader decodes the fixed prefix of a profile record.
func ParseProfileHeader(b []byte) ProfileHeader {
	return ProfileHeader{
		ComponentIndex: b[0],
		ProfileID:      binary.LittleEndian.Uint32(b[2:]),
		ValueCount:     binary.LittleEndian.Uint32(b[6:]),
	}
}

// Put encodes h into b.
func (h ProfileHeader) Put(b []byte) {
	b[0] = h.ComponentIndex
	b[1] = 0
	binary.LittleEndian.PutUint32(b[2:], h.ProfileID)
	binary.LittleEndian.PutUint32(b[6:], h.ValueCount)
}

// ProfileSize returns the total size of the profile whose header is b.
func ProfileSize(b []byte) (int, error) {
	n := binary.LittleEndian.Uint32(b[6:])
	size := uint64(ProfileHeaderSize) + 4*uint64(n)
	if size > math.MaxInt32 {
		return 0, Corruptf("profile value count %d", n)
	}
	return int(size), nil
}

// StringSize returns the total size of the stored string whose prefix is b.
func StringSize(b []byte) (int, error) {
	return StringHeaderSize + int(binary.LittleEndian.Uint16(b)), nil
}

// Member extracts a bit field from a graph node record.
type Member struct {
	Mask  uint64
	Shift uint64
}

// Extract returns (source & mask) >> shift.
func (m Member) Extract(source uint64) uint64 {
	return (source & m.Mask) >> m.Shift
}

// GraphInfo describes one component graph and locates its node collection.
type GraphInfo struct {
	Nodes       CollectionHeader
	Version     uint8 // 4 or 6
	ComponentID uint8
	RecordSize  uint8
	ZeroFlag    Member
	ZeroSkip    Member
	OneSkip     Member
	Value       Member
}

// ParseGraphInfo decodes a graph info record.
func ParseGraphInfo(b []byte) GraphInfo {
	g := GraphInfo{
		Nodes:       ParseCollectionHeader(b),
		Version:     b[12],
		ComponentID: b[13],
		RecordSize:  b[14],
	}
	off := CollectionHeaderSize + 4
	for _, m := range []*Member{&g.ZeroFlag, &g.ZeroSkip, &g.OneSkip, &g.Value} {
		m.Mask = binary.LittleEndian.Uint64(b[off:])
		m.Shift = binary.LittleEndian.Uint64(b[off+8:])
		off += MemberSize
	}
	return g
}

// Put encodes g into b.
func (g GraphInfo) Put(b []byte) {
	g.Nodes.Put(b)
	b[12] = g.Version
	b[13] = g.ComponentID
	b[14] = g.RecordSize
	b[15] = 0
	off := CollectionHeaderSize + 4
	for _, m := range []Member{g.ZeroFlag, g.ZeroSkip, g.OneSkip, g.Value} {
		binary.LittleEndian.PutUint64(b[off:], m.Mask)
		binary.LittleEndian.PutUint64(b[off+8:], m.Shift)
		off += MemberSize
	}
}

// GroupEntry is one weighted member of a profile group.
type GroupEntry struct {
	ProfileOffset uint32
	RawWeighting  uint16
}

// ParseGroupEntry decodes a profile group entry.
func ParseGroupEntry(b []byte) GroupEntry {
	return GroupEntry{
		ProfileOffset: binary.LittleEndian.Uint32(b),
		RawWeighting:  binary.LittleEndian.Uint16(b[4:]),
	}
}

// Put encodes e into b.
func (e GroupEntry) Put(b []byte) {
	binary.LittleEndian.PutUint32(b, e.ProfileOffset)
	binary.LittleEndian.PutUint16(b[4:], e.RawWeighting)
}

// ParseProfileOffset decodes a profile offset table entry.
func ParseProfileOffset(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}
