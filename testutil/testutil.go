package testutil

import (
	"math/rand"
	"net/netip"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset restarts the sequence from the seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

// Seed returns the seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a random int in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

func (r *RNG) fill(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.rand.Read(b)
}

// Addr4 returns a random IPv4 address.
func (r *RNG) Addr4() netip.Addr {
	var b [4]byte
	r.fill(b[:])
	return netip.AddrFrom4(b)
}

// Addr6 returns a random IPv6 address that is not IPv4-mapped.
func (r *RNG) Addr6() netip.Addr {
	for {
		var b [16]byte
		r.fill(b[:])
		if a := netip.AddrFrom16(b); !a.Is4In6() {
			return a
		}
	}
}

// AddrIn returns a random address inside p.
func (r *RNG) AddrIn(p netip.Prefix) netip.Addr {
	p = p.Masked()
	base := p.Addr().AsSlice()
	rnd := make([]byte, len(base))
	r.fill(rnd)
	for i := range base {
		bits := p.Bits() - i*8
		var keep byte
		switch {
		case bits >= 8:
			keep = 0xff
		case bits > 0:
			keep = ^byte(0) << (8 - bits)
		}
		base[i] = base[i]&keep | rnd[i]&^keep
	}
	a, _ := netip.AddrFromSlice(base)
	return a
}

// Addrs returns n random addresses. Every third one is IPv6 and every
// fifth one lies inside one of the given prefixes, cycling through them.
func (r *RNG) Addrs(n int, prefixes ...netip.Prefix) []netip.Addr {
	out := make([]netip.Addr, n)
	for i := range out {
		switch {
		case len(prefixes) > 0 && i%5 == 0:
			out[i] = r.AddrIn(prefixes[(i/5)%len(prefixes)])
		case i%3 == 0:
			out[i] = r.Addr6()
		default:
			out[i] = r.Addr4()
		}
	}
	return out
}

// FixturePrefixes are the ranges of the standard fixture.
func FixturePrefixes() []netip.Prefix {
	var out []netip.Prefix
	for _, s := range []string{
		"8.8.8.0/24", "81.0.0.0/8", "10.0.0.0/8", "0.0.0.0/8", "255.0.0.0/8",
		"2001:4860::/32", "::/8", "ff00::/8",
	} {
		out = append(out, netip.MustParsePrefix(s))
	}
	return out
}
