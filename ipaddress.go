package ipintel

import (
	"fmt"
	"net/netip"
	"strings"
)

// IPVersion is the version of an address given as raw bytes.
type IPVersion uint8

const (
	// IPv4 addresses are 4 bytes.
	IPv4 IPVersion = 4
	// IPv6 addresses are 16 bytes.
	IPv6 IPVersion = 6
)

// Len returns the address length in bytes, or 0 for an unknown version.
func (v IPVersion) Len() int {
	switch v {
	case IPv4:
		return 4
	case IPv6:
		return 16
	default:
		return 0
	}
}

func (v IPVersion) String() string {
	switch v {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("IPVersion(%d)", uint8(v))
	}
}

// ParseIP parses an IPv4 or IPv6 address. IPv4-mapped IPv6 addresses are
// returned as IPv4 and zones are dropped.
func ParseIP(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrIncorrectIPAddressFormat, s)
	}
	return addr.Unmap().WithZone(""), nil
}

// AddrFromBytes converts raw address bytes of the given version.
func AddrFromBytes(b []byte, version IPVersion) (netip.Addr, error) {
	n := version.Len()
	if n == 0 {
		return netip.Addr{}, fmt.Errorf("%w: unknown version %d", ErrIncorrectIPAddressFormat, uint8(version))
	}
	if len(b) != n {
		return netip.Addr{}, fmt.Errorf("%w: %d bytes for %s", ErrIncorrectIPAddressFormat, len(b), version)
	}
	addr, _ := netip.AddrFromSlice(b)
	return addr, nil
}
