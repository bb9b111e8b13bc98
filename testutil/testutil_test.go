package testutil

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNG_Reset(t *testing.T) {
	rng := NewRNG(4711)
	first := rng.Addrs(16)
	rng.Reset()
	assert.Equal(t, first, rng.Addrs(16))
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestRNG_Addrs(t *testing.T) {
	rng := NewRNG(4711)

	assert.True(t, rng.Addr4().Is4())
	a6 := rng.Addr6()
	assert.True(t, a6.Is6())
	assert.False(t, a6.Is4In6())

	prefixes := FixturePrefixes()
	addrs := rng.Addrs(100, prefixes...)
	require.Len(t, addrs, 100)
	for i, a := range addrs {
		require.True(t, a.IsValid())
		if i%5 == 0 {
			assert.True(t, prefixes[(i/5)%len(prefixes)].Contains(a), "%s", a)
		}
	}
}

func TestRNG_AddrIn(t *testing.T) {
	rng := NewRNG(1)
	for _, s := range []string{"8.8.8.0/24", "81.0.0.0/8", "10.1.2.3/32", "2001:4860::/32", "0.0.0.0/0", "ff00::/12"} {
		p := netip.MustParsePrefix(s)
		for range 50 {
			a := rng.AddrIn(p)
			assert.True(t, p.Contains(a), "%s not in %s", a, p)
		}
	}
}
