package document

import "sort"

// IDField is the name of the primary identifier field.
const IDField = "_id"

// Document is a JSON object: a mapping from field names to values.
type Document map[string]Value

// Get returns the value stored under field.
func (d Document) Get(field string) (Value, bool) {
	v, ok := d[field]
	return v, ok
}

// ID returns the document's "_id" value.
func (d Document) ID() (Value, bool) {
	return d.Get(IDField)
}

// Fields returns the field names in ascending order.
func (d Document) Fields() []string {
	fields := make([]string, 0, len(d))
	for f := range d {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Clone returns a deep copy of d. Cloning nil yields nil.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v.Clone()
	}
	return out
}

// Equal reports whether d and o hold the same fields with equal values.
func (d Document) Equal(o Document) bool {
	if len(d) != len(o) {
		return false
	}
	for k, v := range d {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Interface converts d to a plain map[string]any.
func (d Document) Interface() map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v.Interface()
	}
	return out
}

// String returns the compact JSON encoding of d.
func (d Document) String() string {
	return string(d.appendJSON(nil))
}
