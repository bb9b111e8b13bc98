package ipintel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/ipintel/internal/dataset"
	"github.com/hupe1980/ipintel/internal/format"
	"github.com/hupe1980/ipintel/internal/profile"
)

// WeightedProfile is one profile of a resolved component. Offset is
// format.NullProfileOffset for the null profile.
type WeightedProfile = profile.WeightedProfile

// WeightedValue is one value of a property with the weight of the profile
// it came from.
type WeightedValue struct {
	ValueIndex   uint32
	Value        string
	RawWeighting uint16
}

// Weight returns the weighting as a fraction in [0, 1].
func (v WeightedValue) Weight() float64 {
	return float64(v.RawWeighting) / float64(format.FullWeight)
}

type componentResult struct {
	ref uint32
	ok  bool
}

// Results holds the resolution of one address. It pins the data file that
// was current when it was created, is reusable for further addresses, and
// must be released. A Results is not safe for concurrent use.
type Results struct {
	eng *Engine
	ds  *dataset.Dataset

	addr  netip.Addr
	count int
	comps []componentResult

	buf []profile.WeightedValue

	// HasValues memo per required index.
	known *bitset.BitSet
	has   *bitset.BitSet

	released bool
}

func newResults(e *Engine, d *dataset.Dataset) *Results {
	n := uint(len(d.Available()))
	return &Results{
		eng:   e,
		ds:    d,
		comps: make([]componentResult, len(d.Components())),
		known: bitset.New(n),
		has:   bitset.New(n),
	}
}

// Release unpins the data file. Further calls are no-ops.
func (r *Results) Release() {
	if r.released {
		return
	}
	r.released = true
	r.ds.Release()
	r.ds = nil
}

func (r *Results) reset() {
	r.addr = netip.Addr{}
	r.count = 0
	clear(r.comps)
	r.known.ClearAll()
	r.has.ClearAll()
}

// Resolve resolves an IPv4 or IPv6 address string.
func (r *Results) Resolve(ip string) error {
	return r.ResolveContext(context.Background(), ip)
}

// ResolveContext is Resolve with a context bounding file reads.
func (r *Results) ResolveContext(ctx context.Context, ip string) error {
	if r.released {
		return ErrClosed
	}
	addr, err := ParseIP(ip)
	if err != nil {
		r.reset()
		r.eng.metrics.RecordLookup(0, err)
		r.eng.logger.LogLookup(ctx, ip, 0, err)
		return err
	}
	return r.ResolveAddr(ctx, addr)
}

// ResolveBytes resolves a raw address of the given version. addr must be 4
// bytes for IPv4 and 16 bytes for IPv6.
func (r *Results) ResolveBytes(addr []byte, version IPVersion) error {
	if r.released {
		return ErrClosed
	}
	a, err := AddrFromBytes(addr, version)
	if err != nil {
		r.reset()
		return err
	}
	return r.ResolveAddr(context.Background(), a)
}

// ResolveAddr resolves addr against the graph of every available
// component. On error the Results holds no results.
func (r *Results) ResolveAddr(ctx context.Context, addr netip.Addr) (err error) {
	if r.released {
		return ErrClosed
	}
	start := time.Now()
	defer func() {
		r.eng.metrics.RecordLookup(time.Since(start), err)
		if r.eng.logger.Enabled(ctx, slog.LevelDebug) {
			r.eng.logger.LogLookup(ctx, addr.String(), r.count, err)
		}
	}()

	r.reset()
	if !addr.IsValid() {
		return fmt.Errorf("%w: invalid address", ErrIncorrectIPAddressFormat)
	}
	addr = addr.WithZone("")
	raw := addr.AsSlice()

	graphs := r.ds.Graphs()
	for _, c := range r.ds.Components() {
		if !r.ds.ComponentAvailable(c.Index) {
			continue
		}
		ref, ok, err := graphs.Evaluate(ctx, c.ID, raw)
		if err != nil {
			r.reset()
			return translateError(err)
		}
		r.comps[c.Index] = componentResult{ref: ref, ok: ok}
	}
	r.addr = addr
	r.count = 1
	return nil
}

// ResolveEvidence resolves the address found in ev. See Evidence for the
// keys consulted. Without a usable address the Results holds no results.
func (r *Results) ResolveEvidence(ctx context.Context, ev Evidence) error {
	if r.released {
		return ErrClosed
	}
	addr, ok := ev.Addr()
	if !ok {
		r.reset()
		return nil
	}
	return r.ResolveAddr(ctx, addr)
}

// Count returns the number of resolved addresses: 0 or 1.
func (r *Results) Count() int { return r.count }

// Addr returns the resolved address.
func (r *Results) Addr() netip.Addr { return r.addr }

// Dataset returns the pinned data file. It is valid until the Results is
// released; its Release is a no-op.
func (r *Results) Dataset() *Dataset {
	if r.released {
		return nil
	}
	ds := &Dataset{d: r.ds}
	ds.released.Store(true)
	return ds
}

// RequiredPropertyIndex returns the required index of the named property,
// or -1.
func (r *Results) RequiredPropertyIndex(name string) int {
	if r.released {
		return -1
	}
	return r.ds.RequiredIndex(name)
}

func (r *Results) component(id uint8) (dataset.Component, bool) {
	for _, c := range r.ds.Components() {
		if c.ID == id {
			return c, true
		}
	}
	return dataset.Component{}, false
}

// Profiles returns the weighted profiles the address resolved to for the
// component with the given id.
func (r *Results) Profiles(ctx context.Context, componentID uint8) ([]WeightedProfile, error) {
	if r.released {
		return nil, ErrClosed
	}
	c, ok := r.component(componentID)
	if !ok || r.count == 0 || !r.comps[c.Index].ok {
		return nil, nil
	}
	var out []WeightedProfile
	err := r.ds.Resolver().Profiles(ctx, r.comps[c.Index].ref, func(p profile.WeightedProfile) error {
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

func (r *Results) noValue(prop string, reason NoValueReason) error {
	return &NoValueError{Property: prop, Reason: reason}
}

// values reads the raw values of the property at requiredIndex into r.buf.
func (r *Results) values(ctx context.Context, requiredIndex int) (dataset.Available, error) {
	if r.released {
		return dataset.Available{}, ErrClosed
	}
	avail := r.ds.Available()
	if requiredIndex < 0 || requiredIndex >= len(avail) {
		return dataset.Available{}, r.noValue("", NoValueReasonInvalidProperty)
	}
	prop := avail[requiredIndex]
	if r.count == 0 {
		return prop, r.noValue(prop.Name, NoValueReasonNoResults)
	}
	cr := r.comps[prop.ComponentIndex]
	if !cr.ok {
		return prop, r.noValue(prop.Name, NoValueReasonNullProfile)
	}

	vals, st, err := r.ds.Resolver().Values(ctx, cr.ref, prop.Record, r.buf[:0])
	r.buf = vals
	if err != nil {
		return prop, translateError(err)
	}
	if len(vals) == 0 {
		if st.Nulls > 0 {
			return prop, r.noValue(prop.Name, NoValueReasonNullProfile)
		}
		return prop, r.noValue(prop.Name, NoValueReasonUnknown)
	}
	return prop, nil
}

// Values returns the values of the property at requiredIndex with their
// weights. A property without values yields a *NoValueError carrying the
// reason.
func (r *Results) Values(requiredIndex int) ([]WeightedValue, error) {
	return r.ValuesContext(context.Background(), requiredIndex)
}

// ValuesContext is Values with a context bounding file reads.
func (r *Results) ValuesContext(ctx context.Context, requiredIndex int) (out []WeightedValue, err error) {
	start := time.Now()
	defer func() {
		r.eng.metrics.RecordValues(len(out), time.Since(start), err)
	}()

	prop, err := r.values(ctx, requiredIndex)
	if err != nil {
		return nil, err
	}
	if limit := r.eng.opts.maxValues; limit > 0 && len(r.buf) > limit {
		return nil, r.noValue(prop.Name, NoValueReasonTooManyValues)
	}

	out = make([]WeightedValue, len(r.buf))
	for i, v := range r.buf {
		name, err := r.ds.ValueName(ctx, v.ValueIndex)
		if err != nil {
			return nil, translateError(err)
		}
		out[i] = WeightedValue{ValueIndex: v.ValueIndex, Value: name, RawWeighting: v.RawWeighting}
	}
	return out, nil
}

// Value returns the single value of the property at requiredIndex. More
// than one value yields a *NoValueError with NoValueReasonTooManyValues.
func (r *Results) Value(requiredIndex int) (WeightedValue, error) {
	vals, err := r.Values(requiredIndex)
	if err != nil {
		return WeightedValue{}, err
	}
	if len(vals) > 1 {
		return WeightedValue{}, r.noValue(r.ds.Available()[requiredIndex].Name, NoValueReasonTooManyValues)
	}
	return vals[0], nil
}

// ValuesByName is Values for the property with the given name.
func (r *Results) ValuesByName(name string) ([]WeightedValue, error) {
	if r.released {
		return nil, ErrClosed
	}
	idx := r.ds.RequiredIndex(name)
	if idx < 0 {
		return nil, r.noValue(name, NoValueReasonInvalidProperty)
	}
	return r.Values(idx)
}

// HasValues reports whether the property at requiredIndex has at least one
// value for the resolved address. A failed read reports false and is logged
// as a warning; use HasValuesContext to handle it.
func (r *Results) HasValues(requiredIndex int) bool {
	has, err := r.HasValuesContext(context.Background(), requiredIndex)
	if err != nil && !errors.Is(err, ErrClosed) {
		r.eng.logger.Warn("has values failed",
			"index", requiredIndex,
			"error", err,
		)
	}
	return has
}

// HasValuesContext is HasValues returning read errors. Failed reads are not
// memoized.
func (r *Results) HasValuesContext(ctx context.Context, requiredIndex int) (bool, error) {
	if r.released {
		return false, ErrClosed
	}
	if r.count == 0 {
		return false, nil
	}
	avail := r.ds.Available()
	if requiredIndex < 0 || requiredIndex >= len(avail) {
		return false, nil
	}
	i := uint(requiredIndex)
	if r.known.Test(i) {
		return r.has.Test(i), nil
	}

	prop := avail[requiredIndex]
	cr := r.comps[prop.ComponentIndex]
	has := false
	if cr.ok {
		ok, _, err := r.ds.Resolver().HasValues(ctx, cr.ref, prop.Record)
		if err != nil {
			return false, translateError(err)
		}
		has = ok
	}
	r.known.Set(i)
	if has {
		r.has.Set(i)
	}
	return has, nil
}

// NoValueReason explains why the property at requiredIndex has no values.
// It returns NoValueReasonUnknown when values exist.
func (r *Results) NoValueReason(requiredIndex int) NoValueReason {
	_, err := r.values(context.Background(), requiredIndex)
	var nv *NoValueError
	if errors.As(err, &nv) {
		return nv.Reason
	}
	return NoValueReasonUnknown
}

// NoValueMessage is the message of NoValueReason.
func (r *Results) NoValueMessage(requiredIndex int) string {
	return r.NoValueReason(requiredIndex).Message()
}

// ValuesString formats the values of the property at requiredIndex as
// "value":"weight" items joined by sep, e.g. "GB":"0.610361"|"DE":"0.389639".
// An empty sep uses the separator configured with WithValueSeparator.
func (r *Results) ValuesString(requiredIndex int, sep string) (string, error) {
	vals, err := r.Values(requiredIndex)
	if err != nil {
		return "", err
	}
	if sep == "" {
		sep = r.eng.opts.separator
	}
	var sb strings.Builder
	for i, v := range vals {
		if i > 0 {
			sb.WriteString(sep)
		}
		fmt.Fprintf(&sb, "\"%s\":\"%f\"", v.Value, v.Weight())
	}
	return sb.String(), nil
}

// NetworkID identifies the profiles the address resolved to for the
// component with the given id as "profileId:weight" items joined by "|".
// The null profile has id 0.
func (r *Results) NetworkID(componentID uint8) (string, error) {
	profiles, err := r.Profiles(context.Background(), componentID)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for i, p := range profiles {
		if i > 0 {
			sb.WriteByte('|')
		}
		var id uint32
		if !p.IsNull() {
			h, err := r.ds.Resolver().Header(context.Background(), p.Offset)
			if err != nil {
				return "", translateError(err)
			}
			id = h.ProfileID
		}
		fmt.Fprintf(&sb, "%d:%f", id, float64(p.RawWeighting)/float64(format.FullWeight))
	}
	return sb.String(), nil
}
