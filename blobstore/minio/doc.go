// Package minio provides a BlobStore implementation using the MinIO client.
//
// It serves raw or remote partitions kept on MinIO and other S3-compatible
// systems (Ceph, SeaweedFS, Garage) without pulling in the AWS SDK.
//
// # Basic Usage
//
//	store, err := minio.New(minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "indexes",
//	    Prefix:    "table/partition_0_65535/",
//	})
package minio
