package ipintel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hupe1980/ipintel/internal/format"
)

// TypedValue is a property value converted to the Go type of the
// property's value type: int32, float64, bool, byte or string.
type TypedValue struct {
	RequiredPropertyIndex int     `json:"requiredPropertyIndex"`
	Name                  string  `json:"name"`
	ValueType             string  `json:"valueType"`
	RawWeighting          uint16  `json:"rawWeighting"`
	Weight                float64 `json:"weight"`
	Value                 any     `json:"value"`
}

// WeightedValues is a list of typed values.
type WeightedValues []TypedValue

// MarshalJSON encodes the values as an array. An empty list is "[]".
func (w WeightedValues) MarshalJSON() ([]byte, error) {
	if w == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]TypedValue(w))
}

// ByName returns the values of the named property.
func (w WeightedValues) ByName(name string) WeightedValues {
	var out WeightedValues
	for _, v := range w {
		if strings.EqualFold(v.Name, name) {
			out = append(out, v)
		}
	}
	return out
}

// convertValue converts s to the Go type of t. Values that fail to convert
// yield the zero value of the type.
func convertValue(t format.ValueType, s string) any {
	switch t {
	case format.ValueTypeInteger:
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return int32(0)
		}
		return int32(v)
	case format.ValueTypeDouble, format.ValueTypeFloat:
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return float64(0)
		}
		return v
	case format.ValueTypeBoolean:
		v, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return false
		}
		return v
	case format.ValueTypeByte:
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
		if err != nil {
			return byte(0)
		}
		return byte(v)
	default:
		return s
	}
}

// WeightedValues returns the typed values of the properties at the given
// required indexes, or of every available property when none are given.
// Properties without values are left out. An explicitly empty index list
// is ErrInvalidInput.
func (r *Results) WeightedValues(indexes ...int) (WeightedValues, error) {
	if r.released {
		return nil, ErrClosed
	}
	if indexes != nil && len(indexes) == 0 {
		return nil, fmt.Errorf("%w: empty property index list", ErrInvalidInput)
	}
	avail := r.ds.Available()
	if indexes == nil {
		indexes = make([]int, len(avail))
		for i := range indexes {
			indexes[i] = i
		}
	}

	var out WeightedValues
	for _, idx := range indexes {
		vals, err := r.Values(idx)
		if err != nil {
			var nv *NoValueError
			if errors.As(err, &nv) && nv.Reason != NoValueReasonInvalidProperty {
				continue
			}
			return nil, err
		}
		prop := avail[idx]
		for _, v := range vals {
			out = append(out, TypedValue{
				RequiredPropertyIndex: idx,
				Name:                  prop.Name,
				ValueType:             prop.Type.String(),
				RawWeighting:          v.RawWeighting,
				Weight:                v.Weight(),
				Value:                 convertValue(prop.Type, v.Value),
			})
		}
	}
	return out, nil
}

type jsonValue struct {
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

// JSON encodes the values of every available property as an object keyed
// by property name. Properties without values map to an empty array.
func (r *Results) JSON() ([]byte, error) {
	if r.released {
		return nil, ErrClosed
	}
	avail := r.ds.Available()
	doc := make(map[string][]jsonValue, len(avail))
	for i, p := range avail {
		vals, err := r.Values(i)
		if err != nil && !errors.Is(err, ErrNoValue) {
			return nil, err
		}
		items := make([]jsonValue, len(vals))
		for j, v := range vals {
			items[j] = jsonValue{Value: v.Value, Weight: v.Weight()}
		}
		doc[p.Name] = items
	}
	return json.Marshal(doc)
}
