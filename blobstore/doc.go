// Package blobstore provides the object storage abstraction from which data
// files are loaded.
//
// BlobStore is the interface for publishing and fetching data files.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with mmap support
//   - MemoryStore: In-process map, for tests
//   - s3.Store: Amazon S3 with range reads and parallel downloads
//   - minio.Store: MinIO and other S3-compatible storage
//
// # Loading
//
// ReadAll fetches a whole blob, using the blob's own Downloader when it has
// one and parallel ranged reads otherwise:
//
//	blob, err := store.Open(ctx, "ipi-v4.dat")
//	if err != nil {
//	    return err
//	}
//	defer blob.Close()
//
//	data, err := blobstore.ReadAll(ctx, blob, blobstore.ReadOptions{})
//
// ipintel.OpenStore does this and loads the result into memory.
package blobstore
