package graph

import (
	"context"
	"encoding/binary"
	"net/netip"
	"testing"

	"github.com/hupe1980/ipintel/internal/collection"
	"github.com/hupe1980/ipintel/internal/format"
	"github.com/hupe1980/ipintel/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraph(t *testing.T, version uint8, nodes []byte, count uint32) *Graph {
	t.Helper()
	h := format.CollectionHeader{Length: uint32(len(nodes)), Count: count}
	c, err := collection.NewMemory(format.Graphs, h, collection.Fixed(testutil.NodeRecordSize), nodes)
	require.NoError(t, err)
	g, err := New(testutil.GraphInfo(version, 1, h), c)
	require.NoError(t, err)
	return g
}

func compile(t *testing.T, tr *testutil.Trie, version uint8) *Graph {
	t.Helper()
	nodes := tr.Compile()
	return newGraph(t, version, testutil.EncodeNodes(nodes), uint32(len(nodes)))
}

func eval(t *testing.T, g *Graph, ip string) (uint32, int) {
	t.Helper()
	addr := netip.MustParseAddr(ip)
	ref, steps, err := g.Evaluate(context.Background(), addr.AsSlice())
	require.NoError(t, err)
	return ref, steps
}

// raw encodes a node with explicit skip fields.
func raw(zeroFlag bool, zeroSkip, oneSkip, value uint64) []byte {
	v := value | zeroSkip<<32 | oneSkip<<35
	if zeroFlag {
		v |= 1 << 39
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[8-testutil.NodeRecordSize:]
}

func TestEvaluate_NodeShapes(t *testing.T) {
	tests := []struct {
		name     string
		prefixes map[string]uint32
		want     map[string]uint32
	}{
		{
			name:     "zero internal, one internal",
			prefixes: map[string]uint32{"0.0.0.0/2": 1, "64.0.0.0/2": 2, "128.0.0.0/2": 3, "192.0.0.0/2": 4},
			want:     map[string]uint32{"1.2.3.4": 1, "64.0.0.1": 2, "128.9.9.9": 3, "255.255.255.255": 4},
		},
		{
			name:     "zero internal, one leaf",
			prefixes: map[string]uint32{"0.0.0.0/2": 1},
			want:     map[string]uint32{"0.0.0.0": 1, "63.255.255.255": 1, "64.0.0.0": 0, "200.1.1.1": 0},
		},
		{
			name:     "zero leaf, one internal",
			prefixes: map[string]uint32{"192.0.0.0/2": 1},
			want:     map[string]uint32{"10.0.0.0": 0, "128.0.0.0": 0, "192.0.0.0": 1, "255.0.0.1": 1},
		},
		{
			name:     "zero leaf, one leaf",
			prefixes: map[string]uint32{"128.0.0.0/1": 7},
			want:     map[string]uint32{"127.255.255.255": 0, "128.0.0.0": 7},
		},
		{
			name:     "host routes",
			prefixes: map[string]uint32{"8.8.8.8/32": 3, "8.8.8.0/24": 2},
			want:     map[string]uint32{"8.8.8.8": 3, "8.8.8.9": 2, "8.8.8.7": 2, "8.8.9.8": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := testutil.NewTrie(4, 0)
			for p, ref := range tt.prefixes {
				tr.Insert(netip.MustParsePrefix(p), ref)
			}
			g := compile(t, tr, 4)
			for ip, want := range tt.want {
				ref, steps := eval(t, g, ip)
				assert.Equal(t, want, ref, ip)
				assert.LessOrEqual(t, steps, 32, ip)
			}
		})
	}
}

func TestEvaluate_IPv6(t *testing.T) {
	tr := testutil.NewTrie(6, 0)
	tr.Insert(netip.MustParsePrefix("2001:4860::/32"), 1)
	tr.Insert(netip.MustParsePrefix("2001:4860:4860::8888/128"), 2)
	g := compile(t, tr, 6)
	assert.Equal(t, 127, g.StartBitIndex())

	ref, _ := eval(t, g, "2001:4860::1")
	assert.Equal(t, uint32(1), ref)
	ref, steps := eval(t, g, "2001:4860:4860::8888")
	assert.Equal(t, uint32(2), ref)
	assert.Equal(t, 128, steps)
	ref, _ = eval(t, g, "::1")
	assert.Equal(t, uint32(0), ref)
	ref, _ = eval(t, g, "ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff")
	assert.Equal(t, uint32(0), ref)
}

func TestEvaluate_MultiBitSkip(t *testing.T) {
	// Node 0 consumes two zero bits before moving on; its one branch is a
	// leaf. Nodes 1 and 2 split on the third bit.
	const count = 3
	var nodes []byte
	nodes = append(nodes, raw(false, 1, 0, count+2)...)
	nodes = append(nodes, raw(true, 0, 0, count+0)...)
	nodes = append(nodes, raw(false, 0, 0, count+1)...)
	g := newGraph(t, 4, nodes, count)

	ref, steps := eval(t, g, "0.0.0.0")
	assert.Equal(t, uint32(0), ref)
	assert.Equal(t, 3, steps)

	ref, _ = eval(t, g, "32.0.0.0")
	assert.Equal(t, uint32(1), ref)

	ref, steps = eval(t, g, "128.0.0.0")
	assert.Equal(t, uint32(2), ref)
	assert.Equal(t, 1, steps)
}

func TestEvaluate_NoLeafIsCorrupt(t *testing.T) {
	// Every one branch jumps back to node 0.
	var nodes []byte
	nodes = append(nodes, raw(false, 0, 0, 0)...)
	nodes = append(nodes, raw(false, 0, 0, 0)...)
	g := newGraph(t, 4, nodes, 2)

	_, steps, err := g.Evaluate(context.Background(), []byte{255, 255, 255, 255})
	assert.ErrorIs(t, err, format.ErrCorruptData)
	assert.Equal(t, 32, steps)
}

func TestEvaluate_JumpOutOfRangeIsCorrupt(t *testing.T) {
	// A zero bit walks past the last node.
	var nodes []byte
	nodes = append(nodes, raw(false, 0, 0, 0)...)
	g := newGraph(t, 4, nodes, 1)

	_, _, err := g.Evaluate(context.Background(), []byte{0, 0, 0, 0})
	assert.ErrorIs(t, err, format.ErrCorruptData)
}

func TestEvaluate_Determinism(t *testing.T) {
	tr := testutil.NewTrie(4, 0)
	tr.Insert(netip.MustParsePrefix("8.8.8.0/24"), 1)
	tr.Insert(netip.MustParsePrefix("8.0.0.0/8"), 2)
	g := compile(t, tr, 4)

	for _, ip := range []string{"8.8.8.8", "8.1.1.1", "9.9.9.9"} {
		a, _ := eval(t, g, ip)
		b, _ := eval(t, g, ip)
		assert.Equal(t, a, b, ip)
	}
}

func TestEvaluate_AddressLength(t *testing.T) {
	g := compile(t, testutil.NewTrie(4, 0), 4)
	_, _, err := g.Evaluate(context.Background(), make([]byte, 16))
	assert.ErrorIs(t, err, format.ErrIncorrectIPAddressFormat)
}

func TestNew_Invalid(t *testing.T) {
	nodes := testutil.EncodeNodes(testutil.NewTrie(4, 0).Compile())
	h := format.CollectionHeader{Length: uint32(len(nodes)), Count: 2}
	c, err := collection.NewMemory(format.Graphs, h, collection.Fixed(testutil.NodeRecordSize), nodes)
	require.NoError(t, err)

	info := testutil.GraphInfo(4, 1, h)
	info.RecordSize = 9
	_, err = New(info, c)
	assert.ErrorIs(t, err, format.ErrCorruptData)

	info = testutil.GraphInfo(5, 1, h)
	_, err = New(info, c)
	assert.ErrorIs(t, err, format.ErrCorruptData)

	info = testutil.GraphInfo(4, 1, format.CollectionHeader{Count: 3})
	_, err = New(info, c)
	assert.ErrorIs(t, err, format.ErrCorruptData)
}

func TestGraphs_Evaluate(t *testing.T) {
	tr := testutil.NewTrie(4, 0)
	tr.Insert(netip.MustParsePrefix("8.8.8.0/24"), 4)
	gs := Graphs{compile(t, tr, 4)}

	ref, ok, err := gs.Evaluate(context.Background(), 1, []byte{8, 8, 8, 8})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(4), ref)

	// No ipv6 graph and no component 2.
	_, ok, err = gs.Evaluate(context.Background(), 1, make([]byte, 16))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = gs.Evaluate(context.Background(), 2, []byte{8, 8, 8, 8})
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = gs.Evaluate(context.Background(), 1, []byte{1, 2, 3})
	assert.ErrorIs(t, err, format.ErrIncorrectIPAddressFormat)

	assert.NotNil(t, gs.Find(4, 1))
	assert.Nil(t, gs.Find(6, 1))
	require.NoError(t, gs.Close())
}
