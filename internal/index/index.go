// Package index implements the in-memory equality index over log offsets.
//
// For every configured field the index maps each scalar value seen in that
// field to the set of log offsets whose document holds it. Posting sets are
// 64-bit Roaring bitmaps. The index is derived from the log and never
// persisted; it is rebuilt on every open.
package index

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/wrongodb/document"
)

// Index is an equality index over a fixed set of fields.
// It is not safe for concurrent use.
type Index struct {
	fields   []string
	postings map[string]map[document.Key]*roaring64.Bitmap
}

// New returns an empty index over fields. Duplicates are dropped and the
// first-seen order is kept.
func New(fields ...string) *Index {
	idx := &Index{
		postings: make(map[string]map[document.Key]*roaring64.Bitmap, len(fields)),
	}
	for _, f := range fields {
		if _, ok := idx.postings[f]; ok {
			continue
		}
		idx.fields = append(idx.fields, f)
		idx.postings[f] = make(map[document.Key]*roaring64.Bitmap)
	}
	return idx
}

// Fields returns the indexed fields in configuration order.
func (idx *Index) Fields() []string {
	out := make([]string, len(idx.fields))
	copy(out, idx.fields)
	return out
}

// Has reports whether field is indexed.
func (idx *Index) Has(field string) bool {
	_, ok := idx.postings[field]
	return ok
}

// Add records the document stored at offset. Absent fields and composite
// values (arrays, objects) are skipped.
func (idx *Index) Add(doc document.Document, offset int64) {
	if offset < 0 {
		return
	}
	for _, f := range idx.fields {
		v, ok := doc[f]
		if !ok {
			continue
		}
		key, ok := v.Key()
		if !ok {
			continue
		}
		values := idx.postings[f]
		bm, ok := values[key]
		if !ok {
			bm = roaring64.New()
			values[key] = bm
		}
		bm.Add(uint64(offset))
	}
}

// Lookup returns the offsets of documents whose field equals value, in
// ascending order. Untracked fields, unseen values and composite values give
// an empty result.
func (idx *Index) Lookup(field string, value document.Value) []int64 {
	bm := idx.posting(field, value)
	if bm == nil {
		return nil
	}
	out := make([]int64, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, int64(it.Next()))
	}
	return out
}

// Cardinality returns the number of offsets Lookup would return.
func (idx *Index) Cardinality(field string, value document.Value) uint64 {
	bm := idx.posting(field, value)
	if bm == nil {
		return 0
	}
	return bm.GetCardinality()
}

// Clear drops every posting but keeps the field set.
func (idx *Index) Clear() {
	for _, f := range idx.fields {
		idx.postings[f] = make(map[document.Key]*roaring64.Bitmap)
	}
}

func (idx *Index) posting(field string, value document.Value) *roaring64.Bitmap {
	values, ok := idx.postings[field]
	if !ok {
		return nil
	}
	key, ok := value.Key()
	if !ok {
		return nil
	}
	return values[key]
}
