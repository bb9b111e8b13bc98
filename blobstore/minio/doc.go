// Package minio serves data files from MinIO or any other S3-compatible
// server through the minio-go client, without pulling in the AWS SDK.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	if err != nil {
//	    return err
//	}
//
//	store := minioblob.NewStore(client, "data-files", "ipintel/")
//	eng, err := ipintel.OpenStore(ctx, store, "ipi-v4.dat")
//
// Blobs record the ETag seen at Open and pin every ranged read to it, so a
// data file replaced while it is being downloaded fails the read instead of
// mixing two versions.
package minio
