package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Encode returns the compact JSON encoding of d. Fields are sorted and the
// output never contains a literal newline, so one document fits one line.
func Encode(d Document) []byte {
	return d.appendJSON(nil)
}

// AppendEncode appends the compact JSON encoding of d to dst.
func AppendEncode(dst []byte, d Document) []byte {
	return d.appendJSON(dst)
}

// Decode parses a JSON object.
func Decode(data []byte) (Document, error) {
	var d Document
	if err := d.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return d, nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	raw, err := decodeAny(data)
	if err != nil {
		return err
	}
	out, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	return d.appendJSON(nil), nil
}

// UnmarshalJSON implements json.Unmarshaler. The input must be an object.
func (d *Document) UnmarshalJSON(data []byte) error {
	raw, err := decodeAny(data)
	if err != nil {
		return err
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("document: expected JSON object, got %s", kindOfDecoded(raw))
	}
	out, err := fromMap(m, "")
	if err != nil {
		return err
	}
	*d = out
	return nil
}

func decodeAny(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("document: trailing data after JSON value")
	}
	return raw, nil
}

func kindOfDecoded(raw any) Kind {
	switch raw.(type) {
	case bool:
		return KindBool
	case json.Number:
		return KindNumber
	case string:
		return KindString
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	default:
		return KindNull
	}
}

func (v Value) appendJSON(dst []byte) []byte {
	switch v.kind {
	case KindBool:
		return strconv.AppendBool(dst, v.b)
	case KindNumber:
		return append(dst, v.s...)
	case KindString:
		return appendString(dst, v.s)
	case KindArray:
		dst = append(dst, '[')
		for i, e := range v.arr {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = e.appendJSON(dst)
		}
		return append(dst, ']')
	case KindObject:
		return v.obj.appendJSON(dst)
	default:
		return append(dst, "null"...)
	}
}

func (d Document) appendJSON(dst []byte) []byte {
	dst = append(dst, '{')
	for i, k := range d.Fields() {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendString(dst, k)
		dst = append(dst, ':')
		dst = d[k].appendJSON(dst)
	}
	return append(dst, '}')
}

// appendString quotes s the way encoding/json does, which escapes control
// characters (including newlines) and invalid UTF-8.
func appendString(dst []byte, s string) []byte {
	b, _ := json.Marshal(s)
	return append(dst, b...)
}
