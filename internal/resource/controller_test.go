package resource

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/hupe1980/ipintel/internal/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.ReserveMemory(50))
	require.NoError(t, c.ReserveMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	// 20 more would exceed the limit.
	err := c.ReserveMemory(20)
	assert.ErrorIs(t, err, format.ErrInsufficientMemory)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.ReserveMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(90), c.PeakMemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.ReserveMemory(1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())
	assert.Equal(t, int64(0), c.MemoryLimit())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_NilChecks(t *testing.T) {
	var c *Controller
	assert.NoError(t, c.ReserveMemory(10))
	c.ReleaseMemory(10)
	assert.NoError(t, c.AcquireLoader(context.Background()))
	c.ReleaseLoader()
	assert.NoError(t, c.WaitIO(context.Background(), 1<<20))
	assert.Zero(t, c.PeakMemoryUsage())

	r := bytes.NewReader([]byte("abc"))
	assert.Same(t, r, c.LimitReaderAt(r))
}

func TestController_Loaders(t *testing.T) {
	c := NewController(Config{MaxLoaders: 2})

	require.NoError(t, c.AcquireLoader(t.Context()))
	require.NoError(t, c.AcquireLoader(t.Context()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireLoader(ctx), context.DeadlineExceeded)

	c.ReleaseLoader()
	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, c.AcquireLoader(ctx))
}

func TestController_IO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1000})
	ctx := context.Background()

	assert.NoError(t, c.WaitIO(ctx, 100))

	unlimited := NewController(Config{})
	assert.NoError(t, unlimited.WaitIO(ctx, 1_000_000))
}

func TestController_LimitReaderAt(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	r := c.LimitReaderAt(bytes.NewReader([]byte("0123456789")))

	buf := make([]byte, 4)
	n, err := r.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "3456", string(buf))
}
