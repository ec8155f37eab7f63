package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is one raw provider transport record. Fields are decoded lazily so a
// mistyped field degrades to its default instead of failing the record.
type Record map[string]json.RawMessage

// DecodeRecords decodes a JSON array of records. It fails when the payload is
// not an array or an element is not an object.
func DecodeRecords(data []byte) ([]Record, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	records := make([]Record, 0, len(elems))
	for i, elem := range elems {
		rec, err := DecodeRecord(elem)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// DecodeRecord decodes one JSON object.
func DecodeRecord(data []byte) (Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrMalformedRecord
	}
	var rec Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return rec, nil
}

// Has reports whether any of the keys is present with a non-null value.
func (r Record) Has(keys ...string) bool {
	_, ok := r.lookup(keys...)
	return ok
}

// Value decodes the first present key into a generic value.
func (r Record) Value(keys ...string) any {
	raw, ok := r.lookup(keys...)
	if !ok {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// String returns the first present key as a trimmed string. Numbers are
// formatted; other types yield "".
func (r Record) String(keys ...string) string {
	return stringValue(r.Value(keys...))
}

// Bool returns the first present key as a boolean. Strings "true", "yes" and
// "1" count as true.
func (r Record) Bool(keys ...string) bool {
	switch v := r.Value(keys...).(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return true
		}
	case float64:
		return v != 0
	}
	return false
}

func (r Record) lookup(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		raw, ok := r[k]
		if !ok {
			continue
		}
		if t := bytes.TrimSpace(raw); len(t) == 0 || bytes.Equal(t, []byte("null")) {
			continue
		}
		return raw, true
	}
	return nil, false
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func floatValue(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func objectValue(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
