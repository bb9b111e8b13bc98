package ipintel

import (
	"context"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/ipintel/blobstore"
	"github.com/hupe1980/ipintel/internal/cache"
	"github.com/hupe1980/ipintel/internal/dataset"
	"github.com/hupe1980/ipintel/internal/resource"
)

// CacheStats are the record cache counters of the current data file.
type CacheStats = cache.Stats

// Engine resolves IP addresses against a data file. It is safe for
// concurrent use. Reloads swap the data file atomically; Results created
// before a reload keep using the data file they started with.
type Engine struct {
	current atomic.Pointer[dataset.Dataset]
	closed  atomic.Bool

	// mu serializes reloads and Close.
	mu sync.Mutex

	opts    options
	rc      *resource.Controller
	logger  *Logger
	metrics MetricsCollector
}

type loadFunc func(ctx context.Context, opts dataset.Options) (*dataset.Dataset, error)

func newEngine(optFns []Option) *Engine {
	o := applyOptions(optFns)
	return &Engine{
		opts: o,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:   o.memoryLimit,
			MaxLoaders:         o.maxWorkers,
			IOLimitBytesPerSec: o.ioLimit,
		}),
		logger:  o.logger,
		metrics: o.metricsCollector,
	}
}

func (e *Engine) datasetOptions(properties []string) dataset.Options {
	return dataset.Options{
		Config:     e.opts.config,
		Properties: properties,
		FS:         e.opts.fs,
		Resources:  e.rc,
		Logger:     e.logger.Logger,
	}
}

// Open loads the data file at path. The file is held as the configured
// Config describes (DefaultConfig unless WithConfig is given). Compressed
// files are decompressed into memory.
func Open(path string, optFns ...Option) (*Engine, error) {
	return OpenContext(context.Background(), path, optFns...)
}

// OpenContext is Open with a context bounding the load.
func OpenContext(ctx context.Context, path string, optFns ...Option) (*Engine, error) {
	e := newEngine(optFns)
	if err := e.open(ctx, path, func(ctx context.Context, opts dataset.Options) (*dataset.Dataset, error) {
		return dataset.LoadFile(ctx, path, opts)
	}); err != nil {
		return nil, err
	}
	return e, nil
}

// OpenMemory loads a data file held in data. The buffer is used in place
// and must not be modified until the engine and every Results are released.
// Collection settings of the configuration do not apply.
func OpenMemory(data []byte, optFns ...Option) (*Engine, error) {
	e := newEngine(optFns)
	if err := e.open(context.Background(), dataset.SourceMemory, func(ctx context.Context, opts dataset.Options) (*dataset.Dataset, error) {
		return dataset.LoadMemory(ctx, data, opts)
	}); err != nil {
		return nil, err
	}
	return e, nil
}

// OpenStore downloads the blob name from store and loads it into memory.
// Compressed blobs are decompressed.
func OpenStore(ctx context.Context, store blobstore.BlobStore, name string, optFns ...Option) (*Engine, error) {
	e := newEngine(optFns)
	if err := e.open(ctx, name, storeLoader(store, name)); err != nil {
		return nil, err
	}
	return e, nil
}

// OpenReader reads r to the end and loads the data file it holds into
// memory, decompressing it if needed. name identifies the source in logs
// and errors.
func OpenReader(ctx context.Context, name string, r io.Reader, optFns ...Option) (*Engine, error) {
	e := newEngine(optFns)
	if err := e.open(ctx, name, readerLoader(name, r)); err != nil {
		return nil, err
	}
	return e, nil
}

func readerLoader(name string, r io.Reader) loadFunc {
	return func(ctx context.Context, opts dataset.Options) (*dataset.Dataset, error) {
		return dataset.LoadReader(ctx, name, r, opts)
	}
}

func storeLoader(store blobstore.BlobStore, name string) loadFunc {
	return func(ctx context.Context, opts dataset.Options) (*dataset.Dataset, error) {
		if opts.Config.UseTempFile {
			// Rejected before any download.
			return dataset.LoadBuffer(ctx, name, nil, opts)
		}
		blob, err := store.Open(ctx, name)
		if err != nil {
			return nil, err
		}
		defer blob.Close()

		data, err := blobstore.ReadAll(ctx, blob, blobstore.ReadOptions{})
		if err != nil {
			return nil, err
		}
		return dataset.LoadBuffer(ctx, name, data, opts)
	}
}

func (e *Engine) open(ctx context.Context, source string, load loadFunc) error {
	start := time.Now()
	d, err := load(ctx, e.datasetOptions(e.opts.properties))
	err = translateError(err)
	duration := time.Since(start)
	e.metrics.RecordLoad(duration, err)
	if err != nil {
		e.logger.LogLoad(ctx, source, Header{}, duration, err)
		e.closed.Store(true)
		return &LoadError{Op: "open", Source: source, cause: err}
	}
	e.logger.LogLoad(ctx, source, d.Header(), duration, nil)
	e.current.Store(d)
	return nil
}

// Reload replaces the data file with the one at path, keeping the
// configuration and the available properties. On failure the current data
// file stays in use.
func (e *Engine) Reload(path string) error {
	return e.ReloadContext(context.Background(), path)
}

// ReloadContext is Reload with a context bounding the load.
func (e *Engine) ReloadContext(ctx context.Context, path string) error {
	return e.reload(ctx, path, func(ctx context.Context, opts dataset.Options) (*dataset.Dataset, error) {
		return dataset.LoadFile(ctx, path, opts)
	})
}

// ReloadMemory replaces the data file with the one held in data. The
// buffer is used in place. See Reload.
func (e *Engine) ReloadMemory(data []byte) error {
	return e.reload(context.Background(), dataset.SourceMemory, func(ctx context.Context, opts dataset.Options) (*dataset.Dataset, error) {
		return dataset.LoadMemory(ctx, data, opts)
	})
}

// ReloadStore replaces the data file with the blob name from store. See
// Reload.
func (e *Engine) ReloadStore(ctx context.Context, store blobstore.BlobStore, name string) error {
	return e.reload(ctx, name, storeLoader(store, name))
}

// ReloadReader replaces the data file with the one read from r. See
// Reload.
func (e *Engine) ReloadReader(ctx context.Context, name string, r io.Reader) error {
	return e.reload(ctx, name, readerLoader(name, r))
}

func (e *Engine) reload(ctx context.Context, source string, load loadFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		return ErrClosed
	}
	old := e.current.Load()

	start := time.Now()
	d, err := load(ctx, e.datasetOptions(old.AvailableNames()))
	err = translateError(err)
	duration := time.Since(start)
	e.metrics.RecordReload(duration, err)
	if err != nil {
		e.logger.LogReload(ctx, source, Header{}, duration, err)
		return &LoadError{Op: "reload", Source: source, cause: err}
	}

	e.logger.LogReload(ctx, source, d.Header(), duration, nil)
	e.current.Store(d)
	e.logger.LogRelease(ctx, old.Source(), old.Refs()-1)
	old.Release()
	return nil
}

// acquire takes a reference to the current data file. A concurrent reload
// may release the loaded pointer between Load and TryIncRef; the loop then
// picks up its replacement.
func (e *Engine) acquire() (*dataset.Dataset, error) {
	for {
		if e.closed.Load() {
			return nil, ErrClosed
		}

		d := e.current.Load()
		if d == nil {
			return nil, ErrClosed
		}

		if d.TryIncRef() {
			return d, nil
		}

		runtime.Gosched()
	}
}

// Acquire pins the current data file for metadata access. The caller must
// Release it.
func (e *Engine) Acquire() (*Dataset, error) {
	d, err := e.acquire()
	if err != nil {
		return nil, err
	}
	return &Dataset{d: d}, nil
}

// NewResults creates a Results pinned to the current data file. The caller
// must Release it.
func (e *Engine) NewResults() (*Results, error) {
	d, err := e.acquire()
	if err != nil {
		return nil, err
	}
	return newResults(e, d), nil
}

// Process resolves ip into a new Results. The caller must Release it.
func (e *Engine) Process(ip string) (*Results, error) {
	return e.ProcessContext(context.Background(), ip)
}

// ProcessContext is Process with a context bounding file reads.
func (e *Engine) ProcessContext(ctx context.Context, ip string) (*Results, error) {
	r, err := e.NewResults()
	if err != nil {
		return nil, err
	}
	if err := r.ResolveContext(ctx, ip); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

// ProcessEvidence resolves the address found in ev into a new Results.
// Evidence without a usable address yields a Results with no results.
func (e *Engine) ProcessEvidence(ctx context.Context, ev Evidence) (*Results, error) {
	r, err := e.NewResults()
	if err != nil {
		return nil, err
	}
	if err := r.ResolveEvidence(ctx, ev); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

// AvailableProperties returns the names of the available properties in
// required-index order.
func (e *Engine) AvailableProperties() []string {
	d, err := e.acquire()
	if err != nil {
		return nil
	}
	defer d.Release()
	return d.AvailableNames()
}

// CacheStats returns the record cache counters of the current data file.
func (e *Engine) CacheStats() CacheStats {
	d, err := e.acquire()
	if err != nil {
		return CacheStats{}
	}
	defer d.Release()
	return d.CacheStats()
}

// MemoryUsage returns the bytes currently held by data files and caches,
// including data files still pinned by Results after a reload.
func (e *Engine) MemoryUsage() int64 {
	return e.rc.MemoryUsage()
}

// MemoryStats describes the memory reserved by an engine.
type MemoryStats struct {
	// Usage is the number of bytes currently reserved.
	Usage int64
	// Peak is the highest Usage observed. Reloads briefly hold two data
	// files, so Peak is the figure to size MemoryLimit against.
	Peak int64
	// Limit is the configured limit, or 0 when unlimited.
	Limit int64
}

// MemoryStats returns the memory reservation counters.
func (e *Engine) MemoryStats() MemoryStats {
	return MemoryStats{
		Usage: e.rc.MemoryUsage(),
		Peak:  e.rc.PeakMemoryUsage(),
		Limit: e.rc.MemoryLimit(),
	}
}

// Close releases the engine's reference to the data file. The data file
// itself is released once every Results and Dataset is released.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	d := e.current.Swap(nil)
	if d == nil {
		return nil
	}
	e.logger.LogRelease(context.Background(), d.Source(), d.Refs()-1)
	return d.Close()
}
