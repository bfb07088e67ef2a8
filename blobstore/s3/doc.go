// Package s3 provides blobstore implementations backed by Amazon S3.
//
// Store keeps every blob as an object below a key prefix. Small blobs are
// written with a single PutObject carrying a CRC32C checksum; streaming
// writes go through the SDK's multipart upload manager.
//
// DDBCommitStore layers a DynamoDB table over a Store so the CURRENT pointer
// of a backup catalog is updated with a conditional write. Two writers racing
// to publish a snapshot cannot both win; the loser gets
// ErrConcurrentModification.
package s3
