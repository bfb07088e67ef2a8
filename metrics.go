package wrongodb

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// The promcollector package implements it for Prometheus.
type MetricsCollector interface {
	// RecordInsert is called after each insert operation.
	// duration is the total time taken, err is nil if successful.
	RecordInsert(duration time.Duration, err error)

	// RecordFind is called after each find operation. indexed reports
	// whether an index narrowed the candidates, results is the number of
	// matching documents.
	RecordFind(indexed bool, results int, duration time.Duration, err error)

	// RecordReplay is called after the log has been replayed on open or
	// rebuild. records is the number of documents loaded.
	RecordReplay(records int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)          {}
func (NoopMetricsCollector) RecordFind(bool, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordReplay(int, time.Duration, error)     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	FindCount        atomic.Int64
	FindIndexed      atomic.Int64
	FindErrors       atomic.Int64
	FindResults      atomic.Int64
	FindTotalNanos   atomic.Int64
	ReplayCount      atomic.Int64
	ReplayRecords    atomic.Int64
	ReplayErrors     atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordFind implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFind(indexed bool, results int, duration time.Duration, err error) {
	b.FindCount.Add(1)
	b.FindTotalNanos.Add(duration.Nanoseconds())
	if indexed {
		b.FindIndexed.Add(1)
	}
	if err != nil {
		b.FindErrors.Add(1)
		return
	}
	b.FindResults.Add(int64(results))
}

// RecordReplay implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReplay(records int, _ time.Duration, err error) {
	b.ReplayCount.Add(1)
	b.ReplayRecords.Add(int64(records))
	if err != nil {
		b.ReplayErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:    b.InsertCount.Load(),
		InsertErrors:   b.InsertErrors.Load(),
		InsertAvgNanos: avg(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		FindCount:      b.FindCount.Load(),
		FindIndexed:    b.FindIndexed.Load(),
		FindErrors:     b.FindErrors.Load(),
		FindResults:    b.FindResults.Load(),
		FindAvgNanos:   avg(b.FindTotalNanos.Load(), b.FindCount.Load()),
		ReplayCount:    b.ReplayCount.Load(),
		ReplayRecords:  b.ReplayRecords.Load(),
		ReplayErrors:   b.ReplayErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount    int64
	InsertErrors   int64
	InsertAvgNanos int64
	FindCount      int64
	FindIndexed    int64
	FindErrors     int64
	FindResults    int64
	FindAvgNanos   int64
	ReplayCount    int64
	ReplayRecords  int64
	ReplayErrors   int64
}
