package wrongodb

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/hupe1980/wrongodb/backup"
	"github.com/hupe1980/wrongodb/blobstore"
	"github.com/hupe1980/wrongodb/document"
	"github.com/hupe1980/wrongodb/internal/index"
	"github.com/hupe1980/wrongodb/internal/logstore"
)

// backupLogName is the name of the log file inside a backup snapshot.
const backupLogName = "log"

type record struct {
	offset int64
	doc    document.Document
}

// DB is an embedded document database backed by one append-only log file.
type DB struct {
	opts    options
	logger  *Logger
	metrics MetricsCollector

	log     *logstore.Storage
	idx     *index.Index
	records []record
	// byOffset maps a log offset to its position in records.
	byOffset map[int64]int
	closed   bool
}

// Open opens the database whose log lives at path, creating the file and
// its parent directories if needed, and replays the log to rebuild the
// in-memory state.
func Open(path string, optFns ...Option) (*DB, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	logOpts := logstore.DefaultOptions()
	logOpts.TailPolicy = opts.tailPolicy
	logOpts.FS = opts.fs
	if opts.syncWrites {
		logOpts.Durability = logstore.DurabilitySync
	}

	log, err := logstore.Open(path, logOpts)
	if err != nil {
		return nil, translateError(err)
	}

	db := &DB{
		opts:    opts,
		logger:  opts.logger.WithPath(path),
		metrics: opts.metricsCollector,
		log:     log,
		idx:     index.New(opts.indexFields...),
	}

	if err := db.replay(context.Background()); err != nil {
		_ = log.Close()
		return nil, err
	}
	return db, nil
}

// replay loads every record of the log into the index and record list.
// A torn tail is truncated away under TailTruncate.
func (db *DB) replay(ctx context.Context) (err error) {
	start := time.Now()
	db.idx.Clear()
	db.records = db.records[:0]
	db.byOffset = make(map[int64]int)

	defer func() {
		db.logger.LogRecovery(ctx, len(db.records), err)
		db.metrics.RecordReplay(len(db.records), time.Since(start), err)
	}()

	r, err := db.log.Reader()
	if err != nil {
		return translateError(err)
	}

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = r.Close()
			return translateError(err)
		}
		db.apply(rec.Offset, rec.Doc)
	}

	torn, isTorn := r.TornTail()
	if err := r.Close(); err != nil {
		return translateError(err)
	}
	if !isTorn {
		return nil
	}

	size, err := db.log.Size()
	if err != nil {
		return translateError(err)
	}
	if err := db.log.Truncate(torn); err != nil {
		return translateError(err)
	}
	db.logger.LogTailRepair(ctx, torn, size-torn)
	return nil
}

func (db *DB) apply(offset int64, doc document.Document) {
	db.idx.Add(doc, offset)
	db.byOffset[offset] = len(db.records)
	db.records = append(db.records, record{offset: offset, doc: doc})
}

// InsertOne validates doc, assigns an "_id" if it has none, appends it to
// the log and indexes it. It returns a copy of the stored document.
//
// doc may be a document.Document, a map[string]any, a map[string]Value or
// an object Value. Invalid input fails with ErrValidation before anything
// is written.
func (db *DB) InsertOne(ctx context.Context, doc any) (stored document.Document, err error) {
	start := time.Now()
	var offset int64
	defer func() {
		db.logger.LogInsert(ctx, idString(stored), offset, err)
		db.metrics.RecordInsert(time.Since(start), err)
	}()

	if db.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	norm, err := document.Normalize(doc)
	if err != nil {
		return nil, err
	}

	offset, err = db.log.Append(norm)
	if err != nil {
		return nil, translateError(err)
	}
	db.apply(offset, norm)

	return norm.Clone(), nil
}

func idString(doc document.Document) string {
	id, _ := doc.ID()
	if s, ok := id.StringValue(); ok {
		return s
	}
	return id.String()
}

// Find returns copies of all documents matching filter, in insertion order.
// An empty filter matches every document.
func (db *DB) Find(ctx context.Context, filter Filter) ([]document.Document, error) {
	return db.find(ctx, filter, 0)
}

// FindOne returns the first document, in insertion order, matching filter.
// It returns ErrNotFound if there is none.
func (db *DB) FindOne(ctx context.Context, filter Filter) (document.Document, error) {
	docs, err := db.find(ctx, filter, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// find returns at most limit matches, or all of them if limit is 0.
func (db *DB) find(ctx context.Context, filter Filter, limit int) (out []document.Document, err error) {
	start := time.Now()
	var probe string
	defer func() {
		db.logger.LogFind(ctx, len(filter), probe, len(out), err)
		db.metrics.RecordFind(probe != "", len(out), time.Since(start), err)
	}()

	if db.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conds, err := filter.conditions()
	if err != nil {
		return nil, err
	}

	emit := func(doc document.Document) bool {
		if !matches(doc, conds) {
			return true
		}
		out = append(out, doc.Clone())
		return limit == 0 || len(out) < limit
	}

	probe, value := db.plan(conds)
	if probe == "" {
		for _, rec := range db.records {
			if !emit(rec.doc) {
				break
			}
		}
		return out, nil
	}

	// Offsets ascend, and the log is append-only, so this is insertion order.
	for _, off := range db.idx.Lookup(probe, value) {
		pos, ok := db.byOffset[off]
		if !ok {
			continue
		}
		if !emit(db.records[pos].doc) {
			break
		}
	}
	return out, nil
}

// plan picks the indexed filter field with the smallest posting set. Ties go
// to the field configured first. It returns "" if no filter field is indexed.
func (db *DB) plan(conds []condition) (string, document.Value) {
	var (
		best  string
		value document.Value
		card  uint64
	)
	for _, field := range db.idx.Fields() {
		for _, c := range conds {
			if c.field != field {
				continue
			}
			n := db.idx.Cardinality(field, c.value)
			if best == "" || n < card {
				best, value, card = field, c.value, n
			}
		}
	}
	return best, value
}

// Count returns the number of stored documents.
func (db *DB) Count() int {
	return len(db.records)
}

// IndexedFields returns the indexed fields in configuration order.
func (db *DB) IndexedFields() []string {
	return db.idx.Fields()
}

// Path returns the log file path.
func (db *DB) Path() string {
	return db.log.Path()
}

// Rebuild discards the in-memory state and replays the log.
func (db *DB) Rebuild(ctx context.Context) error {
	if db.closed {
		return ErrClosed
	}
	return db.replay(ctx)
}

// Sync forces all appended records to stable storage.
func (db *DB) Sync() error {
	if db.closed {
		return ErrClosed
	}
	return translateError(db.log.Sync())
}

// Close releases the log file. Further calls return ErrClosed.
func (db *DB) Close() error {
	if db.closed {
		return ErrClosed
	}
	db.closed = true
	db.records = nil
	db.byOffset = nil
	db.idx.Clear()
	return translateError(db.log.Close())
}

// Backup syncs the log and copies it into store as a new snapshot.
func (db *DB) Backup(ctx context.Context, store blobstore.BlobStore, optFns ...backup.Option) (m *backup.Manifest, err error) {
	defer func() {
		var id string
		var size int64
		if m != nil {
			id, size = m.ID, m.Size()
		}
		db.logger.LogBackup(ctx, id, size, err)
	}()

	if db.closed {
		return nil, ErrClosed
	}
	if err := db.Sync(); err != nil {
		return nil, err
	}

	optFns = append([]backup.Option{backup.WithLogger(db.logger.Logger)}, optFns...)
	m, err = backup.New(store, optFns...).Snapshot(ctx, map[string]string{
		backupLogName: db.log.Path(),
	})
	if err != nil {
		return nil, translateError(err)
	}
	return m, nil
}

// Restore writes the log of the newest snapshot in store to path, replacing
// any existing file. The database at path must not be open.
func Restore(ctx context.Context, store blobstore.BlobStore, path string) error {
	m, err := backup.Latest(ctx, store)
	if err != nil {
		return translateError(err)
	}
	return translateError(backup.RestoreFile(ctx, store, m, backupLogName, path))
}
