// Package document defines the JSON document model stored by wrongodb.
//
// A [Document] maps field names to [Value]s. Value is a closed tagged union
// over the six JSON kinds (null, bool, number, string, array, object), so
// every stored value is JSON-representable by construction.
//
// Numbers keep their JSON literal and compare by numeric value: 1 and 1.0
// are equal, and both project to the same index [Key].
//
// [Normalize] validates caller input and returns a deep, independent copy
// with an "_id" field (a random UUID string) filled in when absent:
//
//	doc, err := document.Normalize(map[string]any{"name": "ada", "age": 36})
//	if errors.Is(err, document.ErrValidation) {
//	    // not a mapping, non-string key, or a value JSON cannot express
//	}
package document
