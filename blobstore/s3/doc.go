// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("ipintel/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	eng, err := ipintel.OpenStore(ctx, store, "ipi-v4.dat")
//
// # Features
//
//   - Range reads for partial fetches
//   - Parallel whole-object downloads through the transfer manager
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
