package filepool

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	ipfs "github.com/hupe1980/ipintel/internal/fs"
	"github.com/hupe1980/ipintel/internal/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ipi.dat")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPool_ReadAt(t *testing.T) {
	ffs := ipfs.NewFaultyFS(nil)
	p, err := New(ffs, writeFile(t, "0123456789"), 2, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(10), p.Size())
	assert.Equal(t, int64(1), p.OpenHandles())

	buf := make([]byte, 4)
	require.NoError(t, p.ReadAt(context.Background(), buf, 6))
	assert.Equal(t, "6789", string(buf))

	err = p.ReadAt(context.Background(), buf, 8)
	assert.ErrorIs(t, err, format.ErrCorruptData)

	require.NoError(t, p.Close())
	assert.Equal(t, int64(0), p.OpenHandles())
	assert.Equal(t, int64(0), ffs.OpenFiles())
}

func TestPool_NotFound(t *testing.T) {
	_, err := New(nil, filepath.Join(t.TempDir(), "missing.dat"), 1, nil)
	assert.ErrorIs(t, err, format.ErrFileNotFound)
}

func TestPool_InvalidConcurrency(t *testing.T) {
	_, err := New(nil, writeFile(t, "x"), 0, nil)
	assert.ErrorIs(t, err, format.ErrInvalidConfig)
}

func TestPool_ReadFault(t *testing.T) {
	ffs := ipfs.NewFaultyFS(nil)
	ffs.AddRule("ipi.dat", ipfs.Fault{FailAfterReads: 0})

	p, err := New(ffs, writeFile(t, "0123456789"), 1, nil)
	require.NoError(t, err)
	defer p.Close()

	err = p.ReadAt(context.Background(), make([]byte, 2), 0)
	assert.ErrorIs(t, err, format.ErrFileIO)
	assert.ErrorIs(t, err, ipfs.ErrInjected)
}

func TestPool_BoundsHandles(t *testing.T) {
	ffs := ipfs.NewFaultyFS(nil)
	p, err := New(ffs, writeFile(t, "0123456789"), 3, nil)
	require.NoError(t, err)

	var handles []*Handle
	for range 3 {
		h, err := p.Acquire(context.Background())
		require.NoError(t, err)
		handles = append(handles, h)
	}
	assert.Equal(t, int64(3), p.OpenHandles())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	for _, h := range handles {
		h.Release()
	}
	assert.Equal(t, int64(3), p.OpenHandles())

	require.NoError(t, p.Close())
	assert.Equal(t, int64(0), ffs.OpenFiles())
}

func TestPool_ReleaseAfterClose(t *testing.T) {
	ffs := ipfs.NewFaultyFS(nil)
	p, err := New(ffs, writeFile(t, "abc"), 1, nil)
	require.NoError(t, err)

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.Equal(t, int64(1), ffs.OpenFiles())

	h.Release()
	assert.Equal(t, int64(0), ffs.OpenFiles())

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPool_Concurrent(t *testing.T) {
	p, err := New(nil, writeFile(t, "abcdefghijklmnopqrstuvwxyz"), 4, nil)
	require.NoError(t, err)
	defer p.Close()

	var wg sync.WaitGroup
	for i := range 26 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := make([]byte, 1)
			assert.NoError(t, p.ReadAt(context.Background(), b, int64(i)))
			assert.Equal(t, byte('a'+i), b[0])
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, p.OpenHandles(), int64(4))
	assert.Equal(t, int64(26), p.Reads())
}
