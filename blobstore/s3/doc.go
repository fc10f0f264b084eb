// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// It backs raw or remote partitions kept in object storage.
//
// # Usage
//
//	store, err := s3.New(ctx, "index-bucket", func(o *s3.Options) {
//	    o.Prefix = "table/generation_1/partition_0_65535/"
//	    o.Region = "us-east-1"
//	})
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Multipart uploads with CRC32C checksums for large files
//   - Automatic pagination for listing
//   - Directory probes via prefix listing (keys ending in "/")
package s3
