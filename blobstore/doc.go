// Package blobstore abstracts the partition roots a deployment touches.
//
// The raw partition (build output), the local partition (the serving node's
// disk) and the remote partition (shared or cache tier storage) are all
// BlobStores. Names are slash-separated paths relative to the partition root;
// a trailing "/" denotes a directory.
//
// # Built-in Implementations
//
//   - LocalStore: local file system with atomic temp-file + rename writes
//   - MemoryStore: in-memory store with fault injection for tests
//   - CachingStore: block cache in front of any store, used for warm-up
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible object stores
//
// Stores that materialize directories implement DirMaker.
package blobstore
