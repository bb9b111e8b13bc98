package testutil

import (
	"net/netip"
	"sort"

	"github.com/hupe1980/ipintel/internal/format"
)

// Node record layout written by the fixture compiler: five bytes, value in
// the low 32 bits, skips above it and the zero flag in the top bit.
const (
	NodeRecordSize = 5
	valueMask      = 0xFFFFFFFF
	zeroSkipShift  = 32
	oneSkipShift   = 35
	zeroFlagShift  = 39
)

// NodeMembers returns the bit fields of compiled node records.
func NodeMembers() (zeroFlag, zeroSkip, oneSkip, value format.Member) {
	return format.Member{Mask: 1 << zeroFlagShift, Shift: zeroFlagShift},
		format.Member{Mask: 0x7 << zeroSkipShift, Shift: zeroSkipShift},
		format.Member{Mask: 0x7 << oneSkipShift, Shift: oneSkipShift},
		format.Member{Mask: valueMask, Shift: 0}
}

// Node is one compiled graph node.
type Node struct {
	ZeroFlag bool
	Value    uint64
}

type trieNode struct {
	leaf      bool
	ref       uint32
	zero, one *trieNode
}

type prefixRef struct {
	prefix netip.Prefix
	ref    uint32
}

// Trie is a binary prefix trie compiled into component graph nodes.
type Trie struct {
	version  uint8
	def      uint32
	prefixes []prefixRef
}

// NewTrie creates a trie for IP version 4 or 6 whose unmatched addresses
// resolve to defaultRef.
func NewTrie(version uint8, defaultRef uint32) *Trie {
	return &Trie{version: version, def: defaultRef}
}

// Insert maps every address in p to ref. More specific prefixes win
// regardless of insertion order.
func (t *Trie) Insert(p netip.Prefix, ref uint32) {
	t.prefixes = append(t.prefixes, prefixRef{prefix: p.Masked(), ref: ref})
}

func (t *Trie) build() *trieNode {
	root := &trieNode{leaf: true, ref: t.def}
	sorted := append([]prefixRef(nil), t.prefixes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].prefix.Bits() < sorted[j].prefix.Bits()
	})

	for _, pr := range sorted {
		addr := pr.prefix.Addr()
		if t.version == 4 {
			addr = addr.Unmap()
		}
		b := addr.AsSlice()
		n := root
		for d := range pr.prefix.Bits() {
			if n.leaf {
				n.zero = &trieNode{leaf: true, ref: n.ref}
				n.one = &trieNode{leaf: true, ref: n.ref}
				n.leaf = false
			}
			if b[d/8]&(0x80>>(d%8)) != 0 {
				n = n.one
			} else {
				n = n.zero
			}
		}
		*n = trieNode{leaf: true, ref: pr.ref}
	}

	if root.leaf {
		// The cursor needs an internal root to start from.
		root = &trieNode{zero: root, one: &trieNode{leaf: true, ref: root.ref}}
	}
	return root
}

func size(n *trieNode) int {
	s := 1
	if n.zero.leaf {
		s++
	} else {
		s += size(n.zero)
	}
	if !n.one.leaf {
		s += size(n.one)
	}
	return s
}

// Compile lays the trie out as graph nodes using single bit skips.
func (t *Trie) Compile() []Node {
	root := t.build()
	count := uint64(size(root))
	nodes := make([]Node, 0, count)

	var emit func(n *trieNode)
	emit = func(n *trieNode) {
		i := len(nodes)
		nodes = append(nodes, Node{})

		if n.zero.leaf {
			nodes[i] = Node{ZeroFlag: true, Value: count + uint64(n.zero.ref)}
			// The following node carries the one branch.
			j := len(nodes)
			nodes = append(nodes, Node{})
			if n.one.leaf {
				nodes[j] = Node{Value: count + uint64(n.one.ref)}
				return
			}
			nodes[j] = Node{Value: uint64(len(nodes))}
			emit(n.one)
			return
		}

		if n.one.leaf {
			nodes[i] = Node{Value: count + uint64(n.one.ref)}
			emit(n.zero)
			return
		}
		emit(n.zero)
		nodes[i] = Node{Value: uint64(len(nodes))}
		emit(n.one)
	}
	emit(root)

	return nodes
}

// EncodeNodes writes nodes as big-endian records of NodeRecordSize bytes.
func EncodeNodes(nodes []Node) []byte {
	out := make([]byte, 0, len(nodes)*NodeRecordSize)
	for _, n := range nodes {
		v := n.Value & valueMask
		if n.ZeroFlag {
			v |= 1 << zeroFlagShift
		}
		for k := NodeRecordSize - 1; k >= 0; k-- {
			out = append(out, byte(v>>(8*k)))
		}
	}
	return out
}

// GraphInfo returns the descriptor of compiled nodes located by h.
func GraphInfo(version, componentID uint8, h format.CollectionHeader) format.GraphInfo {
	zf, zs, ones, v := NodeMembers()
	return format.GraphInfo{
		Nodes:       h,
		Version:     version,
		ComponentID: componentID,
		RecordSize:  NodeRecordSize,
		ZeroFlag:    zf,
		ZeroSkip:    zs,
		OneSkip:     ones,
		Value:       v,
	}
}
