package collection

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	ipfs "github.com/hupe1980/ipintel/internal/fs"
	"github.com/hupe1980/ipintel/internal/filepool"
	"github.com/hupe1980/ipintel/internal/format"
	"github.com/hupe1980/ipintel/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prefix = 20

var words = []string{"", "US", "Mountain View", "AS15169 Google LLC", "8.8.8.0"}

type fixture struct {
	data    []byte
	numbers format.CollectionHeader
	strings format.CollectionHeader
	offsets []uint32 // string offsets
}

// newFixture lays out some padding, ten u32 records and a strings section.
func newFixture() fixture {
	var fx fixture
	data := make([]byte, prefix)

	fx.numbers = format.CollectionHeader{Offset: uint32(len(data)), Count: 10, Length: 40}
	for i := range 10 {
		data = binary.LittleEndian.AppendUint32(data, uint32(i*i))
	}

	fx.strings.Offset = uint32(len(data))
	for _, w := range words {
		fx.offsets = append(fx.offsets, uint32(len(data))-fx.strings.Offset)
		data = binary.LittleEndian.AppendUint16(data, uint16(len(w)))
		data = append(data, w...)
	}
	fx.strings.Count = uint32(len(words))
	fx.strings.Length = uint32(len(data)) - fx.strings.Offset

	fx.data = data
	return fx
}

func (fx fixture) section(h format.CollectionHeader) []byte {
	return fx.data[h.Offset : h.Offset+h.Length]
}

func (fx fixture) pool(t *testing.T, fsys ipfs.FileSystem) *filepool.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ipi.dat")
	require.NoError(t, os.WriteFile(path, fx.data, 0o644))
	p, err := filepool.New(fsys, path, 2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func stringLayout() Layout { return LayoutOf(format.Strings) }

func assertNumbers(t *testing.T, c Collection) {
	t.Helper()
	ctx := context.Background()
	for i := range uint32(10) {
		item, err := c.Get(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, i*i, binary.LittleEndian.Uint32(item.Data))
		item.Release()
		assert.Nil(t, item.Data)
	}
	_, err := c.Get(ctx, 10)
	assert.ErrorIs(t, err, format.ErrCorruptData)
	_, err = c.GetAt(ctx, 0)
	assert.ErrorIs(t, err, format.ErrCorruptData)
}

func assertStrings(t *testing.T, fx fixture, c Collection) {
	t.Helper()
	ctx := context.Background()
	for i, off := range fx.offsets {
		item, err := c.GetAt(ctx, off)
		require.NoError(t, err)
		assert.Equal(t, words[i], string(item.Data[format.StringHeaderSize:]))
		item.Release()
	}
	_, err := c.GetAt(ctx, fx.strings.Length)
	assert.ErrorIs(t, err, format.ErrCorruptData)
	_, err = c.Get(ctx, 0)
	assert.ErrorIs(t, err, format.ErrCorruptData)
}

func TestLayoutOf(t *testing.T) {
	assert.Equal(t, format.PropertySize, LayoutOf(format.Properties).Width)
	assert.False(t, LayoutOf(format.Profiles).IsFixed())
	assert.Equal(t, format.ProfileHeaderSize, LayoutOf(format.Profiles).HeaderSize)
}

func TestMemory(t *testing.T) {
	fx := newFixture()

	nums, err := NewMemory(format.ProfileOffsets, fx.numbers, Fixed(4), fx.section(fx.numbers))
	require.NoError(t, err)
	assert.True(t, nums.Resident())
	assert.Equal(t, uint32(10), nums.Count())
	assertNumbers(t, nums)

	strs, err := NewMemory(format.Strings, fx.strings, stringLayout(), fx.section(fx.strings))
	require.NoError(t, err)
	assert.Equal(t, fx.strings.Length, strs.Length())
	assertStrings(t, fx, strs)
	require.NoError(t, strs.Close())
}

func TestMemory_Truncated(t *testing.T) {
	fx := newFixture()
	_, err := NewMemory(format.ProfileOffsets, fx.numbers, Fixed(4), fx.section(fx.numbers)[:39])
	assert.ErrorIs(t, err, format.ErrCorruptData)

	bad := fx.numbers
	bad.Count = 11
	_, err = NewMemory(format.ProfileOffsets, bad, Fixed(4), fx.section(fx.numbers))
	assert.ErrorIs(t, err, format.ErrCorruptData)
}

func TestMemory_RecordOverrun(t *testing.T) {
	// A length prefix claiming more bytes than the collection holds.
	data := binary.LittleEndian.AppendUint16(nil, 100)
	data = append(data, "short"...)
	h := format.CollectionHeader{Length: uint32(len(data)), Count: 1}

	c, err := NewMemory(format.Strings, h, stringLayout(), data)
	require.NoError(t, err)
	_, err = c.GetAt(context.Background(), 0)
	assert.ErrorIs(t, err, format.ErrCorruptData)
}

func TestFile_Paged(t *testing.T) {
	fx := newFixture()
	files := fx.pool(t, nil)

	nums, err := NewFile(context.Background(), format.ProfileOffsets, fx.numbers, Fixed(4), files, Config{}, nil)
	require.NoError(t, err)
	assert.False(t, nums.Resident())
	assert.Equal(t, uint32(0), nums.LoadedCount())
	assertNumbers(t, nums)

	strs, err := NewFile(context.Background(), format.Strings, fx.strings, stringLayout(), files, Config{}, nil)
	require.NoError(t, err)
	assertStrings(t, fx, strs)

	assert.Positive(t, files.Reads())
	require.NoError(t, nums.Close())
	require.NoError(t, strs.Close())
}

func TestFile_LoadedPrefixAndCache(t *testing.T) {
	fx := newFixture()
	files := fx.pool(t, nil)
	rc := resource.NewController(resource.Config{})

	nums, err := NewFile(context.Background(), format.ProfileOffsets, fx.numbers, Fixed(4), files,
		Config{Loaded: 3, CacheSize: 8}, rc)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), nums.LoadedCount())
	assert.Equal(t, int64(12), rc.MemoryUsage())

	assertNumbers(t, nums)
	assertNumbers(t, nums)

	st := nums.CacheStats()
	assert.Positive(t, st.Hits)
	assert.Equal(t, 7, st.Entries)

	strs, err := NewFile(context.Background(), format.Strings, fx.strings, stringLayout(), files,
		Config{Loaded: 2, CacheSize: 8}, rc)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), strs.LoadedCount())
	assertStrings(t, fx, strs)

	require.NoError(t, nums.Close())
	require.NoError(t, strs.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestFile_FullyLoaded(t *testing.T) {
	fx := newFixture()
	files := fx.pool(t, nil)

	strs, err := NewFile(context.Background(), format.Strings, fx.strings, stringLayout(), files,
		Config{Loaded: ^uint32(0)}, nil)
	require.NoError(t, err)
	assert.True(t, strs.Resident())

	reads := files.Reads()
	assertStrings(t, fx, strs)
	assert.Equal(t, reads, files.Reads(), "resident collection must not touch the file")
}

func TestFile_MemoryLimit(t *testing.T) {
	fx := newFixture()
	files := fx.pool(t, nil)
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 8})

	_, err := NewFile(context.Background(), format.ProfileOffsets, fx.numbers, Fixed(4), files,
		Config{Loaded: 10}, rc)
	assert.ErrorIs(t, err, format.ErrInsufficientMemory)
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestFile_BeyondFile(t *testing.T) {
	fx := newFixture()
	files := fx.pool(t, nil)

	h := fx.strings
	h.Length += 100
	_, err := NewFile(context.Background(), format.Strings, h, stringLayout(), files, Config{}, nil)
	assert.ErrorIs(t, err, format.ErrCorruptData)
}

func TestFile_ReadFault(t *testing.T) {
	fx := newFixture()
	ffs := ipfs.NewFaultyFS(nil)
	ffs.AddRule("ipi.dat", ipfs.Fault{FailAfterReads: 0})
	files := fx.pool(t, ffs)

	nums, err := NewFile(context.Background(), format.ProfileOffsets, fx.numbers, Fixed(4), files, Config{}, nil)
	require.NoError(t, err)

	_, err = nums.Get(context.Background(), 1)
	assert.ErrorIs(t, err, format.ErrFileIO)
}
