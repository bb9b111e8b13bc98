package profile

import (
	"context"
	"encoding/binary"
	"errors"
	"sort"

	"github.com/hupe1980/ipintel/internal/collection"
	"github.com/hupe1980/ipintel/internal/format"
)

// WeightedProfile is one profile of a resolved reference.
type WeightedProfile struct {
	// Offset is the byte offset in the Profiles collection, or
	// format.NullProfileOffset.
	Offset       uint32
	RawWeighting uint16
}

// IsNull reports whether the entry carries no profile.
func (p WeightedProfile) IsNull() bool { return p.Offset == format.NullProfileOffset }

// WeightedValue is a value index with the weight of the profile it came from.
type WeightedValue struct {
	ValueIndex   uint32
	RawWeighting uint16
}

// Stats counts the profiles a resolution visited.
type Stats struct {
	Profiles int
	Nulls    int
}

// Resolver reads profiles of one dataset.
type Resolver struct {
	offsets  collection.Collection
	groups   collection.Collection
	profiles collection.Collection
}

// NewResolver creates a resolver over the ProfileOffsets, ProfileGroups and
// Profiles collections.
func NewResolver(offsets, groups, profiles collection.Collection) *Resolver {
	return &Resolver{offsets: offsets, groups: groups, profiles: profiles}
}

// Count returns the number of profile references.
func (r *Resolver) Count() uint32 { return r.offsets.Count() }

// Profiles calls fn for every profile of ref in file order. An error from
// fn stops the iteration and is returned.
func (r *Resolver) Profiles(ctx context.Context, ref uint32, fn func(WeightedProfile) error) error {
	if ref >= r.offsets.Count() {
		return format.Corruptf("profile reference %d out of range %d", ref, r.offsets.Count())
	}
	it, err := r.offsets.Get(ctx, ref)
	if err != nil {
		return err
	}
	entry := format.ParseProfileOffset(it.Data)
	it.Release()

	if entry >= 0 {
		return fn(WeightedProfile{Offset: uint32(entry), RawWeighting: format.FullWeight})
	}
	return r.group(ctx, uint32(-1-int64(entry)), fn)
}

func (r *Resolver) group(ctx context.Context, start uint32, fn func(WeightedProfile) error) error {
	var sum uint32
	for i := start; ; i++ {
		if i >= r.groups.Count() {
			return format.Corruptf("profile group at %d ends after %d entries with weight %d",
				start, i-start, sum)
		}
		it, err := r.groups.Get(ctx, i)
		if err != nil {
			return err
		}
		e := format.ParseGroupEntry(it.Data)
		it.Release()

		sum += uint32(e.RawWeighting)
		if sum > uint32(format.FullWeight) {
			return format.Corruptf("profile group at %d weighs %d", start, sum)
		}
		if err := fn(WeightedProfile{Offset: e.ProfileOffset, RawWeighting: e.RawWeighting}); err != nil {
			return err
		}
		if sum == uint32(format.FullWeight) {
			return nil
		}
	}
}

// Header reads the fixed prefix of the profile at offset.
func (r *Resolver) Header(ctx context.Context, offset uint32) (format.ProfileHeader, error) {
	it, err := r.profiles.GetAt(ctx, offset)
	if err != nil {
		return format.ProfileHeader{}, err
	}
	defer it.Release()
	return format.ParseProfileHeader(it.Data), nil
}

// Values appends the values of prop found in the profiles of ref to dst.
func (r *Resolver) Values(ctx context.Context, ref uint32, prop format.Property, dst []WeightedValue) ([]WeightedValue, Stats, error) {
	var st Stats
	err := r.Profiles(ctx, ref, func(p WeightedProfile) error {
		st.Profiles++
		if p.IsNull() {
			st.Nulls++
			return nil
		}
		return r.scan(ctx, p.Offset, prop, func(v uint32) bool {
			dst = append(dst, WeightedValue{ValueIndex: v, RawWeighting: p.RawWeighting})
			return true
		})
	})
	return dst, st, err
}

var errFound = errors.New("found")

// HasValues reports whether any profile of ref has a value for prop. It
// stops at the first one.
func (r *Resolver) HasValues(ctx context.Context, ref uint32, prop format.Property) (bool, Stats, error) {
	var st Stats
	err := r.Profiles(ctx, ref, func(p WeightedProfile) error {
		st.Profiles++
		if p.IsNull() {
			st.Nulls++
			return nil
		}
		found := false
		if err := r.scan(ctx, p.Offset, prop, func(uint32) bool {
			found = true
			return false
		}); err != nil {
			return err
		}
		if found {
			return errFound
		}
		return nil
	})
	if errors.Is(err, errFound) {
		return true, st, nil
	}
	return false, st, err
}

// scan calls fn for each value index of the profile at offset that lies in
// prop's value range, until fn returns false.
func (r *Resolver) scan(ctx context.Context, offset uint32, prop format.Property, fn func(uint32) bool) error {
	it, err := r.profiles.GetAt(ctx, offset)
	if err != nil {
		return err
	}
	defer it.Release()

	h := format.ParseProfileHeader(it.Data)
	idx := it.Data[format.ProfileHeaderSize:]
	if uint64(len(idx)) < 4*uint64(h.ValueCount) {
		return format.Corruptf("profile at %d: %d values in %d bytes", offset, h.ValueCount, len(idx))
	}
	at := func(i int) uint32 { return binary.LittleEndian.Uint32(idx[4*i:]) }

	n := int(h.ValueCount)
	i := sort.Search(n, func(i int) bool { return at(i) >= prop.FirstValueIndex })
	for ; i < n; i++ {
		v := at(i)
		if v > prop.LastValueIndex {
			break
		}
		if !fn(v) {
			break
		}
	}
	return nil
}
