package wrongodb

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/wrongodb/blobstore"
	"github.com/hupe1980/wrongodb/document"
	"github.com/hupe1980/wrongodb/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, path string, optFns ...Option) *DB {
	t.Helper()
	db, err := Open(path, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ids(docs []document.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = idString(d)
	}
	return out
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	fi, err := os.Stat(path)
	require.NoError(t, err)
	return fi.Size()
}

func TestInsertOne(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "db.jsonl")
	db := openTestDB(t, path, WithIndexFields("name"))

	doc, err := db.InsertOne(ctx, map[string]any{"name": "ada", "tags": []any{"x"}})
	require.NoError(t, err)

	id, ok := doc.ID()
	require.True(t, ok)
	assert.Equal(t, document.KindString, id.Kind())

	t.Run("keeps explicit id", func(t *testing.T) {
		doc, err := db.InsertOne(ctx, map[string]any{"_id": 7, "name": "bob"})
		require.NoError(t, err)
		assert.Equal(t, "7", idString(doc))
	})

	t.Run("returned document is a copy", func(t *testing.T) {
		doc["name"] = document.String("mallory")
		got, err := db.FindOne(ctx, Filter{"_id": idString(doc)})
		require.NoError(t, err)
		name, _ := got.Get("name")
		assert.Equal(t, "ada", name.Interface())

		got["name"] = document.String("eve")
		again, err := db.FindOne(ctx, Filter{"name": "ada"})
		require.NoError(t, err)
		name, _ = again.Get("name")
		assert.Equal(t, "ada", name.Interface())
	})

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(raw, []byte("\n")))
	assert.Equal(t, 2, db.Count())
}

func TestInsertOne_ValidationBeforeIO(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.jsonl")
	db := openTestDB(t, path)

	tests := []struct {
		name string
		doc  any
	}{
		{"not an object", []any{1, 2}},
		{"scalar", "text"},
		{"nil", nil},
		{"function value", map[string]any{"f": func() {}}},
		{"channel value", map[string]any{"nested": map[string]any{"c": make(chan int)}}},
		{"non-string key", map[any]any{1: "x"}},
		{"invalid utf-8 value", map[string]any{"_id": "a", "name": "caf\xff"}},
		{"invalid utf-8 key", map[string]any{"caf\xff": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.InsertOne(ctx, tt.doc)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	assert.Zero(t, fileSize(t, path))
	assert.Zero(t, db.Count())
}

func TestFind(t *testing.T) {
	ctx := context.Background()

	seed := []map[string]any{
		{"_id": "1", "city": "berlin", "n": 1, "active": true},
		{"_id": "2", "city": "paris", "n": 2.5, "active": false},
		{"_id": "3", "city": "berlin", "n": 1.0, "active": nil},
		{"_id": "4", "city": []any{"berlin"}, "n": 3},
		{"_id": "5", "n": 1, "meta": map[string]any{"k": "v"}},
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty filter", Filter{}, []string{"1", "2", "3", "4", "5"}},
		{"nil filter", nil, []string{"1", "2", "3", "4", "5"}},
		{"string equality", Filter{"city": "berlin"}, []string{"1", "3"}},
		{"numbers compare by value", Filter{"n": 1}, []string{"1", "3", "5"}},
		{"float filter", Filter{"n": 1.0}, []string{"1", "3", "5"}},
		{"conjunction", Filter{"city": "berlin", "active": true}, []string{"1"}},
		{"null needs the field", Filter{"active": nil}, []string{"3"}},
		{"bool false", Filter{"active": false}, []string{"2"}},
		{"unseen value", Filter{"city": "rome"}, nil},
		{"unknown field", Filter{"missing": 1}, nil},
		{"type mismatch", Filter{"n": "1"}, nil},
	}

	configs := map[string][]Option{
		"scan":    nil,
		"indexed": {WithIndexFields("city", "n", "active")},
	}

	for cfgName, optFns := range configs {
		t.Run(cfgName, func(t *testing.T) {
			db := openTestDB(t, filepath.Join(t.TempDir(), "db.jsonl"), optFns...)
			for _, d := range seed {
				_, err := db.InsertOne(ctx, d)
				require.NoError(t, err)
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := db.Find(ctx, tt.filter)
					require.NoError(t, err)
					if tt.want == nil {
						assert.Empty(t, got)
						return
					}
					assert.Equal(t, tt.want, ids(got))
				})
			}
		})
	}
}

func TestFind_RejectsCompositeFilterValues(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, filepath.Join(t.TempDir(), "db.jsonl"), WithIndexFields("tags"))

	_, err := db.InsertOne(ctx, map[string]any{"tags": []any{"a"}})
	require.NoError(t, err)

	for name, filter := range map[string]Filter{
		"array":  {"tags": []any{"a"}},
		"object": {"tags": map[string]any{"a": 1}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := db.Find(ctx, filter)
			require.ErrorIs(t, err, ErrValidation)

			var ve *document.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "tags", ve.Path)
		})
	}

	t.Run("unsupported type", func(t *testing.T) {
		_, err := db.Find(ctx, Filter{"x": struct{ A chan int }{}})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestFindOne(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, filepath.Join(t.TempDir(), "db.jsonl"), WithIndexFields("k"))

	_, err := db.FindOne(ctx, Filter{"k": 1})
	assert.ErrorIs(t, err, ErrNotFound)

	for i := range 3 {
		_, err := db.InsertOne(ctx, map[string]any{"_id": i, "k": 1})
		require.NoError(t, err)
	}

	got, err := db.FindOne(ctx, Filter{"k": 1})
	require.NoError(t, err)
	assert.Equal(t, "0", idString(got))
}

func TestPlan(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, filepath.Join(t.TempDir(), "db.jsonl"), WithIndexFields("a", "b", "c"))

	for i := range 10 {
		_, err := db.InsertOne(ctx, map[string]any{"a": "x", "b": i % 2, "c": i, "d": true})
		require.NoError(t, err)
	}

	plan := func(f Filter) string {
		conds, err := f.conditions()
		require.NoError(t, err)
		field, _ := db.plan(conds)
		return field
	}

	assert.Equal(t, "c", plan(Filter{"a": "x", "b": 1, "c": 3}))
	assert.Equal(t, "b", plan(Filter{"a": "x", "b": 0}))
	assert.Equal(t, "a", plan(Filter{"a": "y", "c": 42}), "ties go to configuration order")
	assert.Equal(t, "", plan(Filter{"d": true}))

	got, err := db.Find(ctx, Filter{"a": "x", "b": 1, "c": 3, "d": true})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReopenReplaysLog(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.jsonl")

	db, err := Open(path, WithIndexFields("k"))
	require.NoError(t, err)
	for i := range 5 {
		_, err := db.InsertOne(ctx, map[string]any{"_id": i, "k": i % 2})
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	mc := &BasicMetricsCollector{}
	db = openTestDB(t, path, WithIndexFields("k"), WithMetricsCollector(mc))
	assert.Equal(t, 5, db.Count())

	got, err := db.Find(ctx, Filter{"k": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, ids(got))

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.ReplayCount)
	assert.Equal(t, int64(5), stats.ReplayRecords)
	assert.Equal(t, int64(1), stats.FindIndexed)
	assert.Equal(t, int64(2), stats.FindResults)
}

func TestReopen_NonASCIIStringsMatchAfterReplay(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.jsonl")

	db, err := Open(path, WithIndexFields("name"))
	require.NoError(t, err)

	_, err = db.InsertOne(ctx, map[string]any{"_id": "a", "name": "caf\xff"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = db.Find(ctx, Filter{"name": "caf\xff"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = db.InsertOne(ctx, map[string]any{"_id": "b", "name": "café", "note": "<a&b>"})
	require.NoError(t, err)

	before, err := db.Find(ctx, Filter{"name": "café"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db = openTestDB(t, path, WithIndexFields("name"))
	after, err := db.Find(ctx, Filter{"name": "café"})
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, ids(before))
	require.Len(t, after, 1)
	assert.True(t, before[0].Equal(after[0]))

	scanned, err := db.Find(ctx, Filter{"note": "<a&b>"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(scanned))
}

func TestOpen_TruncatesTornTail(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"_id":"a"}`+"\n"+`{"_id":"b","x":`), 0o644))

	var logs bytes.Buffer
	logger := NewLogger(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	db := openTestDB(t, path, WithLogger(logger))
	assert.Equal(t, 1, db.Count())
	assert.Equal(t, int64(12), fileSize(t, path))
	assert.Contains(t, logs.String(), "truncated torn record")
	assert.Contains(t, logs.String(), "dropped_bytes=15")

	_, err := db.InsertOne(ctx, map[string]any{"_id": "c"})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"_id":"a"}`+"\n"+`{"_id":"c"}`+"\n", string(raw))
}

func TestOpen_StrictTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.jsonl")
	content := []byte(`{"_id":"a"}` + "\n" + `{"_id":`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	_, err := Open(path, WithTailPolicy(TailStrict))
	assert.ErrorIs(t, err, ErrCorrupt)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, raw, "strict open must not modify the log")
}

func TestOpen_CorruptMiddle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\n{oops\n{\"a\":2}\n"), 0o644))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\n[1,2]\n"), 0o644))
	_, err = Open(path)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestInsertOne_SyncFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.jsonl")

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("db.jsonl", fs.Fault{FailAfterBytes: -1, FailOnSync: true})

	mc := &BasicMetricsCollector{}
	db := openTestDB(t, path, WithSyncWrites(true), withFileSystem(ffs), WithIndexFields("k"), WithMetricsCollector(mc))

	_, err := db.InsertOne(ctx, map[string]any{"k": 1})
	require.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, fs.ErrInjected)

	assert.Zero(t, db.Count())
	assert.Zero(t, fileSize(t, path))

	got, err := db.Find(ctx, Filter{"k": 1})
	require.NoError(t, err)
	assert.Empty(t, got)

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.InsertCount)
	assert.Equal(t, int64(1), stats.InsertErrors)
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, filepath.Join(t.TempDir(), "db.jsonl"), WithIndexFields("k"))

	for i := range 4 {
		_, err := db.InsertOne(ctx, map[string]any{"_id": i, "k": "v"})
		require.NoError(t, err)
	}

	before, err := db.Find(ctx, Filter{"k": "v"})
	require.NoError(t, err)

	require.NoError(t, db.Rebuild(ctx))
	require.NoError(t, db.Rebuild(ctx))

	after, err := db.Find(ctx, Filter{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 4, db.Count())
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.jsonl")
	db, err := Open(path, WithIndexFields("a", "a", "b"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, db.IndexedFields())
	assert.Equal(t, path, db.Path())
	require.NoError(t, db.Sync())
	require.NoError(t, db.Close())

	_, err = db.InsertOne(ctx, map[string]any{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = db.Find(ctx, nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = db.FindOne(ctx, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, db.Sync(), ErrClosed)
	assert.ErrorIs(t, db.Rebuild(ctx), ErrClosed)
	assert.ErrorIs(t, db.Close(), ErrClosed)
	_, err = db.Backup(ctx, blobstore.NewMemoryStore())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCanceledContext(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "db.jsonl"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.InsertOne(ctx, map[string]any{"a": 1})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = db.Find(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, db.Count())
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.jsonl")
	store := blobstore.NewMemoryStore()

	t.Run("no snapshot", func(t *testing.T) {
		err := Restore(ctx, store, filepath.Join(t.TempDir(), "x.jsonl"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	db := openTestDB(t, path, WithIndexFields("k"))
	for i := range 20 {
		_, err := db.InsertOne(ctx, map[string]any{"_id": i, "k": i % 3})
		require.NoError(t, err)
	}

	m, err := db.Backup(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, fileSize(t, path), m.Size())

	// Inserts after the snapshot are not part of it.
	_, err = db.InsertOne(ctx, map[string]any{"_id": "late", "k": 0})
	require.NoError(t, err)

	restored := filepath.Join(t.TempDir(), "restored", "db.jsonl")
	require.NoError(t, Restore(ctx, store, restored))

	rdb := openTestDB(t, restored, WithIndexFields("k"))
	assert.Equal(t, 20, rdb.Count())

	want, err := db.Find(ctx, Filter{"k": 2})
	require.NoError(t, err)
	got, err := rdb.Find(ctx, Filter{"k": 2})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))
	assert.ErrorIs(t, translateError(ErrNotFound), ErrNotFound)
	assert.ErrorIs(t, translateError(context.Canceled), context.Canceled)
	assert.NotErrorIs(t, translateError(context.Canceled), ErrStorage)
	assert.ErrorIs(t, translateError(os.ErrPermission), ErrStorage)
}
