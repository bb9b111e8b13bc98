package resource

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/hupe1980/ipintel/internal/format"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds the limits applied while loading and querying a data file.
type Config struct {
	// MemoryLimitBytes caps the bytes held by memory-resident collections and
	// caches. If 0, usage is only tracked.
	MemoryLimitBytes int64

	// MaxLoaders is the number of collections that may be built concurrently.
	// If 0, defaults to 1.
	MaxLoaders int64

	// IOLimitBytesPerSec throttles reads from file-backed collections.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller governs memory, loader concurrency and file read throughput for
// one engine. A nil *Controller is valid and imposes no limits.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64
	memPeak atomic.Int64

	loaders *semaphore.Weighted

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxLoaders <= 0 {
		cfg.MaxLoaders = 1
	}

	c := &Controller{
		cfg:     cfg,
		loaders: semaphore.NewWeighted(cfg.MaxLoaders),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// ReserveMemory reserves bytes against the memory limit. It never blocks:
// a reservation that does not fit fails with format.ErrInsufficientMemory.
func (c *Controller) ReserveMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return fmt.Errorf("%w: reserving %d bytes with %d of %d in use",
			format.ErrInsufficientMemory, bytes, c.memUsed.Load(), c.cfg.MemoryLimitBytes)
	}

	used := c.memUsed.Add(bytes)
	for {
		peak := c.memPeak.Load()
		if used <= peak || c.memPeak.CompareAndSwap(peak, used) {
			break
		}
	}
	return nil
}

// ReleaseMemory returns a reservation made with ReserveMemory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the bytes currently reserved.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// PeakMemoryUsage returns the highest reservation total observed.
func (c *Controller) PeakMemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memPeak.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireLoader blocks until a loader slot is free or ctx is done.
func (c *Controller) AcquireLoader(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.loaders.Acquire(ctx, 1)
}

// ReleaseLoader releases a loader slot.
func (c *Controller) ReleaseLoader() {
	if c == nil {
		return
	}
	c.loaders.Release(1)
}

// WaitIO waits until the IO limit allows n bytes.
func (c *Controller) WaitIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil || n <= 0 {
		return nil
	}
	// WaitN rejects requests above the burst size, so split them.
	burst := c.ioLimiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := c.ioLimiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// LimitReaderAt wraps r so every ReadAt waits on the IO limiter.
func (c *Controller) LimitReaderAt(r io.ReaderAt) io.ReaderAt {
	if c == nil || c.ioLimiter == nil {
		return r
	}
	return &limitedReaderAt{r: r, c: c}
}

type limitedReaderAt struct {
	r io.ReaderAt
	c *Controller
}

func (l *limitedReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if err := l.c.WaitIO(context.Background(), len(p)); err != nil {
		return 0, err
	}
	return l.r.ReadAt(p, off)
}
