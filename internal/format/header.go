package format

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Supported data file version.
const (
	VersionMajor uint8 = 1
	VersionMinor uint8 = 2
)

// Collection identifies one of the named collections in a data file.
type Collection uint8

const (
	Strings Collection = iota
	Components
	Maps
	Properties
	Values
	Profiles
	Graphs
	ProfileGroups
	ProfileOffsets

	// NumCollections is the number of collections declared by the header.
	NumCollections = 9
)

var collectionNames = [NumCollections]string{
	"strings", "components", "maps", "properties", "values",
	"profiles", "graphs", "profileGroups", "profileOffsets",
}

func (c Collection) String() string {
	if int(c) < len(collectionNames) {
		return collectionNames[c]
	}
	return fmt.Sprintf("collection(%d)", uint8(c))
}

// CollectionHeaderSize is the encoded size of a CollectionHeader.
const CollectionHeaderSize = 12

// HeaderSize is the encoded size of the data file header.
const HeaderSize = 2 + 2*dateSize + NumCollections*CollectionHeaderSize

const dateSize = 4

// CollectionHeader locates a collection inside the data file.
type CollectionHeader struct {
	Offset uint32 // byte offset from the start of the file
	Length uint32 // byte length
	Count  uint32 // number of records
}

// End returns the first byte after the collection.
func (h CollectionHeader) End() uint64 {
	return uint64(h.Offset) + uint64(h.Length)
}

// ParseCollectionHeader decodes a CollectionHeader from b.
func ParseCollectionHeader(b []byte) CollectionHeader {
	return CollectionHeader{
		Offset: binary.LittleEndian.Uint32(b[0:]),
		Length: binary.LittleEndian.Uint32(b[4:]),
		Count:  binary.LittleEndian.Uint32(b[8:]),
	}
}

// Put encodes h into b.
func (h CollectionHeader) Put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], h.Offset)
	binary.LittleEndian.PutUint32(b[4:], h.Length)
	binary.LittleEndian.PutUint32(b[8:], h.Count)
}

// Date is a calendar date as stored in the header.
type Date struct {
	Year  uint16
	Month uint8
	Day   uint8
}

// Time converts the date to a UTC time.
func (d Date) Time() time.Time {
	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day), 0, 0, 0, 0, time.UTC)
}

// DateOf returns the Date for t.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return Date{Year: uint16(t.Year()), Month: uint8(t.Month()), Day: uint8(t.Day())}
}

func parseDate(b []byte) Date {
	return Date{Year: binary.LittleEndian.Uint16(b), Month: b[2], Day: b[3]}
}

func (d Date) put(b []byte) {
	binary.LittleEndian.PutUint16(b, d.Year)
	b[2] = d.Month
	b[3] = d.Day
}

// Header is the fixed size header at the start of every data file.
type Header struct {
	VersionMajor uint8
	VersionMinor uint8
	Published    Date
	NextUpdate   Date
	Collections  [NumCollections]CollectionHeader
}

// ParseHeader decodes and validates the header at the start of b.
// size is the total size of the data source and bounds every collection.
func ParseHeader(b []byte, size int64) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, Corruptf("header truncated: %d bytes", len(b))
	}
	h.VersionMajor = b[0]
	h.VersionMinor = b[1]
	h.Published = parseDate(b[2:])
	h.NextUpdate = parseDate(b[6:])
	if h.VersionMajor != VersionMajor || h.VersionMinor != VersionMinor {
		return h, &VersionError{Major: h.VersionMajor, Minor: h.VersionMinor}
	}
	off := 2 + 2*dateSize
	for i := range h.Collections {
		h.Collections[i] = ParseCollectionHeader(b[off:])
		off += CollectionHeaderSize
	}
	if err := h.Validate(size); err != nil {
		return h, err
	}
	return h, nil
}

// Version returns the file version as "major.minor".
func (h Header) Version() string {
	return fmt.Sprintf("%d.%d", h.VersionMajor, h.VersionMinor)
}

// Validate checks that every collection lies within a source of size bytes
// and that fixed width collections are consistent with their record width.
func (h Header) Validate(size int64) error {
	for i, c := range h.Collections {
		name := Collection(i)
		if c.Offset < HeaderSize && c.Length > 0 {
			return Corruptf("%s overlaps header", name)
		}
		if c.End() > uint64(size) {
			return Corruptf("%s ends at %d beyond source size %d", name, c.End(), size)
		}
		if w := RecordWidth(name); w > 0 && uint64(c.Count)*uint64(w) != uint64(c.Length) {
			return Corruptf("%s length %d does not match %d records of %d bytes",
				name, c.Length, c.Count, w)
		}
	}
	return nil
}

// Put encodes h into b, which must be at least HeaderSize bytes.
func (h Header) Put(b []byte) {
	b[0] = h.VersionMajor
	b[1] = h.VersionMinor
	h.Published.put(b[2:])
	h.NextUpdate.put(b[6:])
	off := 2 + 2*dateSize
	for _, c := range h.Collections {
		c.Put(b[off:])
		off += CollectionHeaderSize
	}
}

// RecordWidth returns the fixed record width of c, or 0 for variable width
// collections.
func RecordWidth(c Collection) int {
	switch c {
	case Components:
		return ComponentSize
	case Maps:
		return MapSize
	case Properties:
		return PropertySize
	case Values:
		return ValueSize
	case Graphs:
		return GraphInfoSize
	case ProfileGroups:
		return GroupEntrySize
	case ProfileOffsets:
		return ProfileOffsetSize
	default:
		return 0
	}
}
