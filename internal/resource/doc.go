// Package resource bounds the work wrongodb does outside the write path.
//
// A Controller carries three independent limits:
//
//   - Memory: a byte budget shared by page caches (fail-fast, never blocks)
//   - Workers: the number of files a backup uploads in parallel
//   - IO: a token bucket in bytes per second for backup and restore traffic
//
// Every method accepts a nil *Controller and then does nothing, so callers
// can make limits optional without nil checks:
//
//	rc := resource.NewController(resource.Config{IOBytesPerSec: 8 << 20})
//	w := resource.NewRateLimitedWriter(ctx, dst, rc)
package resource
