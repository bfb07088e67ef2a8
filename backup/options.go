package backup

import (
	"log/slog"

	"github.com/hupe1980/wrongodb/internal/compress"
)

// Compression selects how file chunks are stored.
type Compression = compress.Algorithm

const (
	CompressionNone = compress.None
	CompressionLZ4  = compress.LZ4
	CompressionZSTD = compress.ZSTD
)

type options struct {
	compression Compression
	chunkSize   int
	rateLimit   int64
	concurrency int
	logger      *slog.Logger
}

func defaultOptions() options {
	return options{
		compression: CompressionZSTD,
		chunkSize:   compress.DefaultChunkSize,
		concurrency: 2,
		logger:      slog.New(slog.DiscardHandler),
	}
}

// Option configures a Writer.
type Option func(*options)

// WithCompression sets the chunk compression. Default: zstd.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithChunkSize sets the raw size of a compressed chunk.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithRateLimit caps upload throughput in bytes per second. Zero means
// unlimited.
func WithRateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.rateLimit = bytesPerSec
	}
}

// WithConcurrency sets how many files are uploaded in parallel.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger sets the logger for snapshot progress.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
