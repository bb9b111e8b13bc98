// Package filepool shares a bounded set of read handles to one data file.
//
// Paged collections read records with positional reads through a handle
// taken from the pool. The pool never holds more than its concurrency
// handles; callers beyond that wait on a weighted semaphore until a handle
// is returned or their context ends.
package filepool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"sync/atomic"

	ipfs "github.com/hupe1980/ipintel/internal/fs"
	"github.com/hupe1980/ipintel/internal/format"
	"github.com/hupe1980/ipintel/internal/resource"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by a closed pool.
var ErrClosed = errors.New("filepool: closed")

// Pool is a bounded pool of read handles to one file.
type Pool struct {
	fsys ipfs.FileSystem
	path string
	size int64
	rc   *resource.Controller

	sem *semaphore.Weighted

	mu     sync.Mutex
	idle   []ipfs.File
	closed bool

	open  atomic.Int64
	reads atomic.Int64
}

// New creates a pool of at most concurrency handles to path. One handle is
// opened immediately to verify the file and learn its size.
func New(fsys ipfs.FileSystem, path string, concurrency int, rc *resource.Controller) (*Pool, error) {
	if fsys == nil {
		fsys = ipfs.Default
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("%w: file pool concurrency %d", format.ErrInvalidConfig, concurrency)
	}

	p := &Pool{
		fsys: fsys,
		path: path,
		rc:   rc,
		sem:  semaphore.NewWeighted(int64(concurrency)),
	}

	f, err := p.openFile()
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		p.closeFile(f)
		return nil, fmt.Errorf("%w: stat %s: %w", format.ErrFileIO, path, err)
	}
	p.size = info.Size()
	p.idle = append(p.idle, f)

	return p, nil
}

func (p *Pool) openFile() (ipfs.File, error) {
	f, err := p.fsys.Open(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", format.ErrFileNotFound, p.path)
		}
		return nil, fmt.Errorf("%w: open %s: %w", format.ErrFileIO, p.path, err)
	}
	p.open.Add(1)
	return f, nil
}

func (p *Pool) closeFile(f ipfs.File) {
	_ = f.Close()
	p.open.Add(-1)
}

// Path returns the pooled file's path.
func (p *Pool) Path() string { return p.path }

// Size returns the file size observed when the pool was created.
func (p *Pool) Size() int64 { return p.size }

// OpenHandles returns the number of handles currently open.
func (p *Pool) OpenHandles() int64 { return p.open.Load() }

// Reads returns the number of positional reads served.
func (p *Pool) Reads() int64 { return p.reads.Load() }

// Handle is a file handle borrowed from a Pool.
type Handle struct {
	pool *Pool
	file ipfs.File
}

// Acquire borrows a handle, waiting while all handles are in use.
// The handle must be returned with Release.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, ErrClosed
	}
	if n := len(p.idle); n > 0 {
		f := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return &Handle{pool: p, file: f}, nil
	}
	p.mu.Unlock()

	f, err := p.openFile()
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}
	return &Handle{pool: p, file: f}, nil
}

// ReadAt reads len(b) bytes at off. A short read is reported as corrupt
// data since every offset comes from the file's own header.
func (h *Handle) ReadAt(b []byte, off int64) error {
	h.pool.reads.Add(1)
	n, err := h.pool.rc.LimitReaderAt(h.file).ReadAt(b, off)
	if n == len(b) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return format.Corruptf("short read of %d bytes at %d in %s: got %d", len(b), off, h.pool.path, n)
	}
	return fmt.Errorf("%w: read %s at %d: %w", format.ErrFileIO, h.pool.path, off, err)
}

// Release returns the handle to its pool. It must be called exactly once.
func (h *Handle) Release() {
	p := h.pool
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.closeFile(h.file)
	} else {
		p.idle = append(p.idle, h.file)
		p.mu.Unlock()
	}
	h.file = nil
	p.sem.Release(1)
}

// ReadAt borrows a handle, reads len(b) bytes at off and returns the handle.
func (p *Pool) ReadAt(ctx context.Context, b []byte, off int64) error {
	h, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Release()
	return h.ReadAt(b, off)
}

// Close closes idle handles. Handles still borrowed are closed when they
// are released. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var errs []error
	for _, f := range idle {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
		p.open.Add(-1)
	}
	return errors.Join(errs...)
}
