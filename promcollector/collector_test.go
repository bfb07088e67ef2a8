package promcollector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hupe1980/wrongodb"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestCollector_Records(t *testing.T) {
	c := New("test")

	c.RecordInsert(time.Millisecond, nil)
	c.RecordInsert(time.Millisecond, errors.New("boom"))
	c.RecordFind(true, 3, time.Millisecond, nil)
	c.RecordFind(false, 0, time.Millisecond, nil)
	c.RecordReplay(42, time.Second, nil)

	assert.Equal(t, 1.0, value(t, c.ops.WithLabelValues("insert", "ok")))
	assert.Equal(t, 1.0, value(t, c.ops.WithLabelValues("insert", "error")))
	assert.Equal(t, 1.0, value(t, c.ops.WithLabelValues("find_index", "ok")))
	assert.Equal(t, 1.0, value(t, c.ops.WithLabelValues("find_scan", "ok")))
	assert.Equal(t, 42.0, value(t, c.replayRecords))
}

func TestCollector_WithDB(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New("orders")
	require.NoError(t, reg.Register(c))

	ctx := context.Background()
	db, err := wrongodb.Open(filepath.Join(t.TempDir(), "db.jsonl"),
		wrongodb.WithIndexFields("k"),
		wrongodb.WithMetricsCollector(c),
	)
	require.NoError(t, err)
	defer db.Close()

	for i := range 3 {
		_, err := db.InsertOne(ctx, map[string]any{"k": i})
		require.NoError(t, err)
	}
	_, err = db.Find(ctx, wrongodb.Filter{"k": 1})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}
	require.Contains(t, byName, "wrongodb_operations_total")
	require.Contains(t, byName, "wrongodb_operation_duration_seconds")
	require.Contains(t, byName, "wrongodb_replay_records")

	var inserts float64
	for _, m := range byName["wrongodb_operations_total"].GetMetric() {
		labels := map[string]string{}
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		assert.Equal(t, "orders", labels["db"])
		if labels["op"] == "insert" && labels["status"] == "ok" {
			inserts = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 3.0, inserts)
	require.Contains(t, byName, "wrongodb_find_results")
	assert.Equal(t, uint64(1), byName["wrongodb_find_results"].GetMetric()[0].GetHistogram().GetSampleCount())
}
