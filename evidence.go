package ipintel

import (
	"net/netip"
	"sort"
	"strings"
)

// Evidence maps prefixed keys to values, e.g. "query.client-ip" or
// "ipv4.ip". Keys with the prefixes ipv4. and ipv6. only accept addresses
// of that version; query., server. and header. keys accept either and may
// hold a comma separated list such as an X-Forwarded-For header.
type Evidence map[string]string

// evidence key prefixes in the order they are consulted.
var evidencePrefixes = []string{"ipv4.", "ipv6.", "query.", "server.", "header."}

func prefixRank(key string) int {
	k := strings.ToLower(key)
	for i, p := range evidencePrefixes {
		if strings.HasPrefix(k, p) {
			return i
		}
	}
	return -1
}

// Keys returns the relevant keys in the order they are consulted.
func (e Evidence) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		if prefixRank(k) >= 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := prefixRank(keys[i]), prefixRank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Addr returns the address to resolve: the first IPv4 address found, or
// else the first IPv6 address. Unparsable values are skipped.
func (e Evidence) Addr() (netip.Addr, bool) {
	var v6 netip.Addr
	for _, k := range e.Keys() {
		rank := prefixRank(k)
		for _, s := range strings.Split(e[k], ",") {
			addr, err := ParseIP(s)
			if err != nil {
				continue
			}
			switch {
			case rank == 0 && !addr.Is4(), rank == 1 && !addr.Is6():
				continue
			case addr.Is4():
				return addr, true
			case !v6.IsValid():
				v6 = addr
			}
		}
	}
	return v6, v6.IsValid()
}
