package wrongodb

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with wrongodb-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
// It is the default.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithPath adds the log file path to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, id string, offset int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"id", id,
			"offset", offset,
		)
	}
}

// LogFind logs a find operation. indexField is empty for a full scan.
func (l *Logger) LogFind(ctx context.Context, conditions int, indexField string, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "find failed",
			"conditions", conditions,
			"error", err,
		)
		return
	}
	plan := "scan"
	if indexField != "" {
		plan = "index:" + indexField
	}
	l.DebugContext(ctx, "find completed",
		"conditions", conditions,
		"plan", plan,
		"results", results,
	)
}

// LogRecovery logs a log replay.
func (l *Logger) LogRecovery(ctx context.Context, recordsReplayed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "log replay failed",
			"records_replayed", recordsReplayed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "log replay completed",
			"records_replayed", recordsReplayed,
		)
	}
}

// LogTailRepair logs the removal of a torn final record.
func (l *Logger) LogTailRepair(ctx context.Context, offset, droppedBytes int64) {
	l.WarnContext(ctx, "truncated torn record at end of log",
		"offset", offset,
		"dropped_bytes", droppedBytes,
	)
}

// LogBackup logs a backup operation.
func (l *Logger) LogBackup(ctx context.Context, snapshotID string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "backup failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "backup completed",
			"snapshot", snapshotID,
			"bytes", bytes,
		)
	}
}
