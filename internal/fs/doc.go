// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with read, positional read and write access
//   - [FileSystem]: open, create, remove and stat operations
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility that injects read and open errors and counts
//     open handles
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	file, err := fs.Default.Open(path)
//
// Tests can inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("ipi.dat", fs.Fault{FailAfterReads: 3})
//	// pass ffs to ipintel.WithFileSystem
//
// Filesystem operations take no context.Context; data files are local and
// the syscalls are not interruptible. Remote sources go through blobstore.
package fs
