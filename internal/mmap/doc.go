// Package mmap maps data files read-only for zero-copy access.
//
// Memory-mapped collections read records straight out of the page cache,
// so lookups cost no copies and the resident set is managed by the kernel.
//
// # Usage
//
//	m, err := mmap.Open("ipi.dat")
//	if err != nil { ... }
//	defer m.Close()
//
//	nodes, _ := m.Section(int64(h.Offset), int64(h.Length))
//	_ = m.AdviseSection(int64(h.Offset), int64(h.Length), mmap.AccessRandom)
//
// # Platform Support
//
//   - Unix: mmap(2) with madvise(2) for access hints
//   - Windows: CreateFileMapping/MapViewOfFile (advice is a no-op)
//
// # Thread Safety
//
// A Mapping is safe for concurrent reads. Close is idempotent; callers must
// make sure no goroutine touches returned slices after Close returns. The
// dataset reference count provides that guarantee.
package mmap
