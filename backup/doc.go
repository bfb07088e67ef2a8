// Package backup copies engine files to a blobstore.BlobStore and back.
//
// A snapshot uploads every file as a chunked, optionally compressed blob
// named "<id>/<name>.blob", then writes a binary manifest
// "MANIFEST-<id>.bin" that records each file's raw size and CRC32C, and
// finally points the "CURRENT" blob at that manifest. A snapshot is
// visible only once CURRENT names it, so a crash mid-upload leaves the
// previous snapshot in place.
//
//	w := backup.New(store, backup.WithCompression(backup.CompressionZSTD))
//	m, err := w.Snapshot(ctx, map[string]string{"log": "/var/lib/app/data.jsonl"})
//
//	latest, err := backup.Latest(ctx, store)
//	err = backup.Restore(ctx, store, latest, "/tmp/restore")
//
// Snapshot IDs are UUIDv7 strings, so they sort by creation time.
package backup
