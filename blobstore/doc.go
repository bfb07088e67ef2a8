// Package blobstore abstracts the storage that backups are written to.
//
// A BlobStore holds named, immutable blobs. Names use forward slashes
// regardless of platform. Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local file system
//   - MemoryStore: in-process, for tests
//   - s3.Store and s3.DDBCommitStore: Amazon S3, optionally with a DynamoDB
//     table providing atomic CURRENT pointer updates
//   - minio.Store: MinIO and other S3-compatible services
//
// Put must be atomic: readers observe either the previous blob or the new
// one, never a partial write.
package blobstore
