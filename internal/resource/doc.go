// Package resource bounds the resources an engine may consume.
//
// A [Controller] manages three budgets:
//
//   - Memory: bytes held by memory-resident collections and caches (fail-fast)
//   - Loaders: collections built concurrently while a data file is loaded
//   - IO: read throughput of file-backed collections (token bucket)
//
// # Memory
//
// ReserveMemory never blocks. A reservation that does not fit returns an
// error wrapping format.ErrInsufficientMemory, which the engine reports as
// an insufficient memory failure of the load or reload:
//
//	rc := resource.NewController(resource.Config{MemoryLimitBytes: 256 << 20})
//	if err := rc.ReserveMemory(int64(len(buf))); err != nil {
//	    return err
//	}
//	defer rc.ReleaseMemory(int64(len(buf)))
//
// # Loaders
//
// Loader slots use a weighted semaphore and are acquired with a context so a
// cancelled load stops waiting.
//
// # IO
//
// LimitReaderAt wraps the file handles of file-backed collections so paged
// reads cannot starve other readers of the same disk.
package resource
