package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for accessing published data files.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of the blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer
	// ReadAt reads len(p) bytes at off. Fewer bytes come with io.EOF.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange returns a reader for length bytes at off.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Mappable is an optional interface for Blobs that support memory mapping.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// Downloader is an optional interface for Blobs with a native parallel
// download of the whole object.
type Downloader interface {
	Download(ctx context.Context, w io.WriterAt) (int64, error)
}

const (
	// DefaultPartSize is the range size of ReadAll.
	DefaultPartSize = 8 << 20
	// DefaultConcurrency is the number of ranges ReadAll fetches at once.
	DefaultConcurrency = 4
)

// ReadOptions tune ReadAll.
type ReadOptions struct {
	PartSize    int64
	Concurrency int
}

// ReadAll returns a copy of the whole blob. Blobs implementing Downloader
// download themselves; other blobs are fetched as parallel ranges.
func ReadAll(ctx context.Context, b Blob, opts ReadOptions) ([]byte, error) {
	if opts.PartSize <= 0 {
		opts.PartSize = DefaultPartSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	size := b.Size()
	buf := make([]byte, size)
	if size == 0 {
		return buf, nil
	}

	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		copy(buf, data)
		return buf, nil
	}

	if d, ok := b.(Downloader); ok {
		n, err := d.Download(ctx, &WriteAtBuffer{buf: buf})
		if err != nil {
			return nil, err
		}
		if n != size {
			return nil, fmt.Errorf("downloaded %d of %d bytes", n, size)
		}
		return buf, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for off := int64(0); off < size; off += opts.PartSize {
		part := buf[off:min(off+opts.PartSize, size)]
		g.Go(func() error {
			n, err := b.ReadAt(ctx, part, off)
			if n == len(part) {
				return nil
			}
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("read range %d+%d: %w", off, len(part), err)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteAtBuffer is an io.WriterAt over a fixed buffer.
type WriteAtBuffer struct {
	buf []byte
}

// NewWriteAtBuffer wraps buf.
func NewWriteAtBuffer(buf []byte) *WriteAtBuffer { return &WriteAtBuffer{buf: buf} }

// WriteAt copies p to off. Writes past the end of the buffer fail.
func (w *WriteAtBuffer) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(w.buf)) {
		return 0, fmt.Errorf("write of %d bytes at %d exceeds buffer of %d", len(p), off, len(w.buf))
	}
	return copy(w.buf[off:], p), nil
}

// Bytes returns the buffer.
func (w *WriteAtBuffer) Bytes() []byte { return w.buf }
