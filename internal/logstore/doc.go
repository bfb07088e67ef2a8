// Package logstore implements the append-only document log.
//
// Every record is one compact JSON object followed by a newline. A record is
// identified by the byte offset of its first byte, which stays valid for the
// lifetime of the file because the log is never rewritten in place.
//
// Replay is tolerant of the one failure an append-only file can suffer from a
// crash: a torn final line. Under TailTruncate the reader stops at the torn
// line and reports its offset so the owner can truncate it away. Anything
// else that does not decode is corruption and reported as ErrCorrupt.
package logstore
