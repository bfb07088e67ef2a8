package wrongodb

import (
	"cmp"
	"errors"
	"slices"

	"github.com/hupe1980/wrongodb/document"
)

// Filter is a conjunction of exact-match conditions, field name to value.
// Values are converted with document.ValueOf and must be scalars.
type Filter map[string]any

type condition struct {
	field string
	value document.Value
}

// conditions converts f, sorted by field name.
func (f Filter) conditions() ([]condition, error) {
	conds := make([]condition, 0, len(f))
	for field, raw := range f {
		v, err := document.ValueOf(raw)
		if err != nil {
			var ve *document.ValidationError
			if errors.As(err, &ve) {
				return nil, &document.ValidationError{Path: joinPath(field, ve.Path), Reason: ve.Reason}
			}
			return nil, err
		}
		if !v.Kind().IsScalar() {
			return nil, &document.ValidationError{
				Path:   field,
				Reason: "filter value must be null, bool, number or string, got " + v.Kind().String(),
			}
		}
		conds = append(conds, condition{field: field, value: v})
	}
	slices.SortFunc(conds, func(a, b condition) int {
		return cmp.Compare(a.field, b.field)
	})
	return conds, nil
}

func joinPath(field, sub string) string {
	if sub == "" {
		return field
	}
	if sub[0] == '[' {
		return field + sub
	}
	return field + "." + sub
}

func matches(doc document.Document, conds []condition) bool {
	for _, c := range conds {
		v, ok := doc[c.field]
		if !ok || !v.Equal(c.value) {
			return false
		}
	}
	return true
}
