package wrongodb

import (
	"github.com/hupe1980/wrongodb/internal/fs"
	"github.com/hupe1980/wrongodb/internal/logstore"
)

// TailPolicy controls how Open treats a torn final log record.
type TailPolicy = logstore.TailPolicy

const (
	// TailTruncate drops a torn final record and logs a warning. Default.
	TailTruncate = logstore.TailTruncate
	// TailStrict fails Open with ErrCorrupt on a torn final record.
	TailStrict = logstore.TailStrict
)

type options struct {
	indexFields      []string
	syncWrites       bool
	tailPolicy       TailPolicy
	logger           *Logger
	metricsCollector MetricsCollector
	fs               fs.FileSystem
}

func defaultOptions() options {
	return options{
		tailPolicy:       TailTruncate,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
}

// Option configures Open.
type Option func(*options)

// WithIndexFields sets the fields tracked by the equality index.
// The set is fixed for the life of the DB; duplicates are ignored.
func WithIndexFields(fields ...string) Option {
	return func(o *options) {
		o.indexFields = append(o.indexFields, fields...)
	}
}

// WithSyncWrites makes every insert wait until the record is on stable
// storage.
func WithSyncWrites(sync bool) Option {
	return func(o *options) {
		o.syncWrites = sync
	}
}

// WithTailPolicy sets how a torn final record is handled on open.
func WithTailPolicy(p TailPolicy) Option {
	return func(o *options) {
		o.tailPolicy = p
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector.
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// withFileSystem swaps the file system, for fault injection in tests.
func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}
