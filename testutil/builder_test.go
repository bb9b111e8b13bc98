package testutil

import (
	"net/netip"
	"testing"

	"github.com/hupe1980/ipintel/internal/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixture_Layout(t *testing.T) {
	f := NewFixture()
	data := f.MustBuild(t)

	h, err := format.ParseHeader(data, int64(len(data)))
	require.NoError(t, err)

	assert.Equal(t, uint32(0), f.Unknown.Offset())
	assert.Equal(t, uint32(10), f.US.Offset())
	assert.Equal(t, uint32(2), h.Collections[format.Components].Count)
	assert.Equal(t, uint32(4), h.Collections[format.Graphs].Count)
	assert.Equal(t, uint32(9), h.Collections[format.Properties].Count)

	// Every graph's nodes lie inside the file.
	graphs := h.Collections[format.Graphs]
	for i := range graphs.Count {
		off := graphs.Offset + i*format.GraphInfoSize
		info := format.ParseGraphInfo(data[off:])
		assert.LessOrEqual(t, info.Nodes.End(), uint64(len(data)))
		assert.Equal(t, uint32(NodeRecordSize)*info.Nodes.Count, info.Nodes.Length)
	}
}

func TestFixture_Groups(t *testing.T) {
	data := NewFixture().MustBuild(t)
	h, err := format.ParseHeader(data, int64(len(data)))
	require.NoError(t, err)

	groups := h.Collections[format.ProfileGroups]
	var sum int
	for i := range groups.Count {
		e := format.ParseGroupEntry(data[groups.Offset+i*format.GroupEntrySize:])
		sum += int(e.RawWeighting)
	}
	// Every group, null targets included, sums to full weight.
	assert.Zero(t, sum%int(format.FullWeight))
}

func TestTrie_Compile(t *testing.T) {
	tr := NewTrie(4, 0)
	tr.Insert(netip.MustParsePrefix("128.0.0.0/1"), 1)
	nodes := tr.Compile()

	// Root with a zero leaf and a one leaf: two nodes.
	require.Len(t, nodes, 2)
	assert.True(t, nodes[0].ZeroFlag)
	assert.Equal(t, uint64(2), nodes[0].Value)
	assert.False(t, nodes[1].ZeroFlag)
	assert.Equal(t, uint64(3), nodes[1].Value)
}

func TestTrie_DefaultOnly(t *testing.T) {
	nodes := NewTrie(6, 5).Compile()
	require.Len(t, nodes, 2)
	assert.Equal(t, uint64(7), nodes[0].Value)
	assert.Equal(t, uint64(7), nodes[1].Value)
}

func TestEncodeNodes(t *testing.T) {
	b := EncodeNodes([]Node{{ZeroFlag: true, Value: 0x01020304}})
	assert.Equal(t, []byte{0x80, 0x01, 0x02, 0x03, 0x04}, b)
}
