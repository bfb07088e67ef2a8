// Package fs provides the filesystem seam used by the log storage and the
// block file.
//
//   - [File]: an open file with positioned reads, truncation and sync
//   - [FileSystem]: open, stat, rename, remove and mkdir
//   - [LocalFS]: the production implementation on top of package os
//   - [FaultyFS]: a wrapper that injects write, sync and close failures
//
// Production code uses fs.Default. Tests inject a FaultyFS to exercise the
// error paths of append and block writes:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("db.log", fs.Fault{FailAfterBytes: 0})
//
// Filesystem calls take no context.Context. Local file operations are not
// interruptible at the syscall level, so a context would only add noise.
package fs
