package dataset

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/ipintel/internal/collection"
	"github.com/hupe1980/ipintel/internal/format"
)

// evidenceSuffix names properties that carry JavaScript producing evidence
// for the property of the same name without the suffix.
const evidenceSuffix = "JavaScript"

// Component is a decoded component record.
type Component struct {
	Index                uint8
	ID                   uint8
	Name                 string
	DefaultProfileOffset uint32
}

// IsDynamic reports whether the component's values are computed rather
// than stored in profiles.
func (c Component) IsDynamic() bool { return c.DefaultProfileOffset == format.DynamicComponentOffset }

// Property is a decoded property record.
type Property struct {
	Index          uint32
	Name           string
	Description    string
	Category       string
	ComponentIndex uint8
	Type           format.ValueType
	IsList         bool
	DisplayOrder   uint8
	Record         format.Property
}

// Available is a required property present in the data file.
type Available struct {
	Property
	// Evidence lists the indexes of properties producing evidence for this
	// one.
	Evidence []uint32
}

func readString(ctx context.Context, strs collection.Collection, offset uint32) (string, error) {
	it, err := strs.GetAt(ctx, offset)
	if err != nil {
		return "", err
	}
	defer it.Release()
	return string(it.Data[format.StringHeaderSize:]), nil
}

func readComponents(ctx context.Context, comps, strs collection.Collection) ([]Component, error) {
	if comps.Count() > 256 {
		return nil, format.Corruptf("%d components", comps.Count())
	}
	out := make([]Component, 0, comps.Count())
	for i := range comps.Count() {
		it, err := comps.Get(ctx, i)
		if err != nil {
			return nil, err
		}
		rec := format.ParseComponent(it.Data)
		it.Release()

		name, err := readString(ctx, strs, rec.NameOffset)
		if err != nil {
			return nil, fmt.Errorf("component %d name: %w", i, err)
		}
		out = append(out, Component{
			Index:                uint8(i),
			ID:                   rec.ID,
			Name:                 name,
			DefaultProfileOffset: rec.DefaultProfileOffset,
		})
	}
	return out, nil
}

func readProperties(ctx context.Context, props, strs collection.Collection, components int) ([]Property, error) {
	out := make([]Property, 0, props.Count())
	for i := range props.Count() {
		it, err := props.Get(ctx, i)
		if err != nil {
			return nil, err
		}
		rec := format.ParseProperty(it.Data)
		it.Release()

		if int(rec.ComponentIndex) >= components {
			return nil, format.Corruptf("property %d: component index %d of %d", i, rec.ComponentIndex, components)
		}
		p := Property{
			Index:          i,
			ComponentIndex: rec.ComponentIndex,
			Type:           rec.ValueType,
			IsList:         rec.IsList,
			DisplayOrder:   rec.DisplayOrder,
			Record:         rec,
		}
		for _, s := range []struct {
			dst *string
			off uint32
		}{{&p.Name, rec.NameOffset}, {&p.Description, rec.DescriptionOffset}, {&p.Category, rec.CategoryOffset}} {
			if *s.dst, err = readString(ctx, strs, s.off); err != nil {
				return nil, fmt.Errorf("property %d: %w", i, err)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// findProperty returns the index of the property named name, compared
// without case, or -1.
func findProperty(props []Property, name string) int {
	for i, p := range props {
		if strings.EqualFold(p.Name, name) {
			return i
		}
	}
	return -1
}

// requiredProperties resolves names against props. An empty list requires
// every property. Names absent from the file are skipped. The result is
// ordered by name, which defines the required property indexes.
func requiredProperties(props []Property, names []string) ([]Available, *roaring.Bitmap, error) {
	set := roaring.New()
	if len(names) == 0 {
		set.AddRange(0, uint64(len(props)))
	} else {
		for _, n := range names {
			if i := findProperty(props, strings.TrimSpace(n)); i >= 0 {
				set.Add(uint32(i))
			}
		}
		if set.IsEmpty() {
			return nil, nil, fmt.Errorf("%w: none of the %d required properties are in the data file",
				format.ErrInvalidConfig, len(names))
		}
	}

	avail := make([]Available, 0, set.GetCardinality())
	components := roaring.New()
	it := set.Iterator()
	for it.HasNext() {
		p := props[it.Next()]
		a := Available{Property: p}
		if j := findProperty(props, p.Name+evidenceSuffix); j >= 0 {
			a.Evidence = append(a.Evidence, uint32(j))
		}
		avail = append(avail, a)
		components.Add(uint32(p.ComponentIndex))
	}
	slices.SortStableFunc(avail, func(a, b Available) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return avail, components, nil
}
