// Package promcollector exports wrongodb metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	c := promcollector.New("orders")
//	reg.MustRegister(c)
//	db, err := wrongodb.Open(path, wrongodb.WithMetricsCollector(c))
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package promcollector

import (
	"time"

	"github.com/hupe1980/wrongodb"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wrongodb"

// Collector implements wrongodb.MetricsCollector and prometheus.Collector.
type Collector struct {
	opLatency     *prometheus.HistogramVec
	ops           *prometheus.CounterVec
	findResults   prometheus.Histogram
	replayRecords prometheus.Gauge
}

var (
	_ wrongodb.MetricsCollector = (*Collector)(nil)
	_ prometheus.Collector      = (*Collector)(nil)
)

// New returns a Collector. db is attached to every series as the "db"
// label, so several databases can share a registry.
func New(db string) *Collector {
	labels := prometheus.Labels{"db": db}
	return &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "operation_duration_seconds",
			Help:        "Latency of database operations.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}, []string{"op"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "operations_total",
			Help:        "Database operations by outcome. Finds are split by plan.",
			ConstLabels: labels,
		}, []string{"op", "status"}),
		findResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "find_results",
			Help:        "Number of documents returned by find.",
			Buckets:     prometheus.ExponentialBuckets(1, 4, 8),
			ConstLabels: labels,
		}),
		replayRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "replay_records",
			Help:        "Documents loaded by the last log replay.",
			ConstLabels: labels,
		}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordInsert implements wrongodb.MetricsCollector.
func (c *Collector) RecordInsert(d time.Duration, err error) {
	c.opLatency.WithLabelValues("insert").Observe(d.Seconds())
	c.ops.WithLabelValues("insert", status(err)).Inc()
}

// RecordFind implements wrongodb.MetricsCollector.
func (c *Collector) RecordFind(indexed bool, results int, d time.Duration, err error) {
	op := "find_scan"
	if indexed {
		op = "find_index"
	}
	c.opLatency.WithLabelValues(op).Observe(d.Seconds())
	c.ops.WithLabelValues(op, status(err)).Inc()
	if err == nil {
		c.findResults.Observe(float64(results))
	}
}

// RecordReplay implements wrongodb.MetricsCollector.
func (c *Collector) RecordReplay(records int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("replay").Observe(d.Seconds())
	c.ops.WithLabelValues("replay", status(err)).Inc()
	if err == nil {
		c.replayRecords.Set(float64(records))
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.opLatency.Describe(ch)
	c.ops.Describe(ch)
	c.findResults.Describe(ch)
	c.replayRecords.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.opLatency.Collect(ch)
	c.ops.Collect(ch)
	c.findResults.Collect(ch)
	c.replayRecords.Collect(ch)
}
