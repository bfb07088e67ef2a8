// Package hash provides the checksums used for on-disk integrity.
//
// # Page checksums
//
// Block file pages use CRC-32 (IEEE polynomial) over the padded payload.
// The value is identical to zlib's crc32, which keeps the page format
// readable by any tool that speaks the common polynomial.
//
//	sum := hash.Page(payload)
//
// # Backup checksums
//
// Backup manifests record CRC32-Castagnoli of every uploaded file. Go's
// crc32 package uses SSE4.2 / ARM CRC instructions for it when available.
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	sum := h.Sum32()
package hash
