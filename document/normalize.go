package document

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"
)

// NewID returns a fresh random identifier for the "_id" field.
func NewID() Value {
	return String(uuid.NewString())
}

// Normalize validates doc and returns an independent deep copy of it with an
// "_id" field. An existing "_id" is kept as is.
//
// doc may be a Document, a map[string]any, a map[string]Value, a map[any]any
// whose keys are all strings, or a Value of kind object.
func Normalize(doc any) (Document, error) {
	var (
		out Document
		err error
	)

	switch d := doc.(type) {
	case Document:
		if d == nil {
			return nil, invalid("", "document is nil")
		}
		out, err = d.Clone(), checkDocument(d, "")
	case map[string]Value:
		if d == nil {
			return nil, invalid("", "document is nil")
		}
		out, err = Document(d).Clone(), checkDocument(d, "")
	case Value:
		if d.Kind() != KindObject {
			return nil, invalid("", "expected object, got %s", d.Kind())
		}
		out, err = d.obj.Clone(), checkDocument(d.obj, "")
		if out == nil {
			out = Document{}
		}
	case map[string]any:
		if d == nil {
			return nil, invalid("", "document is nil")
		}
		out, err = fromMap(d, "")
	case map[any]any:
		if d == nil {
			return nil, invalid("", "document is nil")
		}
		out, err = fromAnyMap(d, "")
	default:
		return nil, invalid("", "expected a mapping, got %T", doc)
	}

	if err != nil {
		return nil, err
	}

	if _, ok := out[IDField]; !ok {
		out[IDField] = NewID()
	}

	return out, nil
}

// ValueOf converts a plain Go value into a Value.
func ValueOf(x any) (Value, error) {
	return valueOf(x, "")
}

// MustValue is like ValueOf but panics on error. It is intended for tests and
// literals known to be valid.
func MustValue(x any) Value {
	v, err := ValueOf(x)
	if err != nil {
		panic(err)
	}
	return v
}

func valueOf(x any, path string) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		if err := checkValue(t, path); err != nil {
			return Value{}, err
		}
		return t.Clone(), nil
	case Document:
		if t == nil {
			return Null(), nil
		}
		if err := checkDocument(t, path); err != nil {
			return Value{}, err
		}
		return Value{kind: KindObject, obj: t.Clone()}, nil
	case bool:
		return Bool(t), nil
	case string:
		if err := checkString(t, path); err != nil {
			return Value{}, err
		}
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Uint(uint64(t)), nil
	case uint8:
		return Uint(uint64(t)), nil
	case uint16:
		return Uint(uint64(t)), nil
	case uint32:
		return Uint(uint64(t)), nil
	case uint64:
		return Uint(t), nil
	case float32:
		return floatValue(float64(t), path)
	case float64:
		return floatValue(t, path)
	case json.Number:
		v, err := Number(string(t))
		if err != nil {
			return Value{}, invalid(path, "invalid number literal %q", string(t))
		}
		return v, nil
	case []Value:
		if t == nil {
			return Null(), nil
		}
		for i, e := range t {
			if err := checkValue(e, indexPath(path, i)); err != nil {
				return Value{}, err
			}
		}
		return Array(t...), nil
	case []any:
		if t == nil {
			return Null(), nil
		}
		arr := make([]Value, len(t))
		for i, e := range t {
			v, err := valueOf(e, indexPath(path, i))
			if err != nil {
				return Value{}, err
			}
			arr[i] = v
		}
		return Value{kind: KindArray, arr: arr}, nil
	case map[string]any:
		if t == nil {
			return Null(), nil
		}
		d, err := fromMap(t, path)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindObject, obj: d}, nil
	case map[string]Value:
		if t == nil {
			return Null(), nil
		}
		if err := checkDocument(t, path); err != nil {
			return Value{}, err
		}
		return Value{kind: KindObject, obj: Document(t).Clone()}, nil
	case map[any]any:
		if t == nil {
			return Null(), nil
		}
		d, err := fromAnyMap(t, path)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindObject, obj: d}, nil
	}

	return reflectValue(reflect.ValueOf(x), path)
}

// reflectValue handles typed slices and string-keyed maps such as []string
// or map[string]int.
func reflectValue(rv reflect.Value, path string) (Value, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null(), nil
		}
		arr := make([]Value, rv.Len())
		for i := range arr {
			v, err := valueOf(rv.Index(i).Interface(), indexPath(path, i))
			if err != nil {
				return Value{}, err
			}
			arr[i] = v
		}
		return Value{kind: KindArray, arr: arr}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, invalid(path, "map key type %s is not string", rv.Type().Key())
		}
		if rv.IsNil() {
			return Null(), nil
		}
		d := make(Document, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			if err := checkKey(k, path); err != nil {
				return Value{}, err
			}
			v, err := valueOf(iter.Value().Interface(), fieldPath(path, k))
			if err != nil {
				return Value{}, err
			}
			d[k] = v
		}
		return Value{kind: KindObject, obj: d}, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return valueOf(rv.Elem().Interface(), path)
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		if err := checkString(rv.String(), path); err != nil {
			return Value{}, err
		}
		return String(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return floatValue(rv.Float(), path)
	case reflect.Invalid:
		return Null(), nil
	}
	return Value{}, invalid(path, "unsupported type %s", rv.Type())
}

func floatValue(f float64, path string) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, invalid(path, "number %v is not representable in JSON", f)
	}
	return Float(f), nil
}

func fromMap(m map[string]any, path string) (Document, error) {
	d := make(Document, len(m))
	for k, e := range m {
		if err := checkKey(k, path); err != nil {
			return nil, err
		}
		v, err := valueOf(e, fieldPath(path, k))
		if err != nil {
			return nil, err
		}
		d[k] = v
	}
	return d, nil
}

func fromAnyMap(m map[any]any, path string) (Document, error) {
	d := make(Document, len(m))
	for k, e := range m {
		ks, ok := k.(string)
		if !ok {
			return nil, invalid(path, "key %v (%T) is not a string", k, k)
		}
		if err := checkKey(ks, path); err != nil {
			return nil, err
		}
		v, err := valueOf(e, fieldPath(path, ks))
		if err != nil {
			return nil, err
		}
		d[ks] = v
	}
	return d, nil
}

// Strings must be valid UTF-8: JSON would otherwise store U+FFFD in place of
// the bad bytes and the log would no longer match what was indexed.
func checkString(s, path string) error {
	if !utf8.ValidString(s) {
		return invalid(path, "string %q is not valid UTF-8", s)
	}
	return nil
}

func checkKey(k, path string) error {
	if !utf8.ValidString(k) {
		return invalid(path, "key %q is not valid UTF-8", k)
	}
	return nil
}

// checkValue validates the strings and keys of a Value built with the
// constructors, which do not check them.
func checkValue(v Value, path string) error {
	switch v.kind {
	case KindString:
		return checkString(v.s, path)
	case KindArray:
		for i, e := range v.arr {
			if err := checkValue(e, indexPath(path, i)); err != nil {
				return err
			}
		}
	case KindObject:
		return checkDocument(v.obj, path)
	}
	return nil
}

func checkDocument(d Document, path string) error {
	for k, v := range d {
		if err := checkKey(k, path); err != nil {
			return err
		}
		if err := checkValue(v, fieldPath(path, k)); err != nil {
			return err
		}
	}
	return nil
}

func fieldPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
