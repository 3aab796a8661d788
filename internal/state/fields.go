package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// fields holds the raw members of a JSON object. Members the loop does not
// type are kept here and written back unchanged, in their original order.
type fields map[string]json.RawMessage

func decodeFields(data []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f == nil {
		f = fields{}
	}
	return f, nil
}

// decodeObject is decodeFields plus the member names in document order
func decodeObject(data []byte) (fields, []string, error) {
	f, err := decodeFields(data)
	if err != nil {
		return nil, nil, err
	}
	return f, objectKeys(data), nil
}

// objectKeys lists the member names of a JSON object as they appear in data
func objectKeys(data []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}

// take decodes f[key] into dst and removes it from f. It reports whether the key was present.
func take[T any](f fields, key string, dst *T) (bool, error) {
	raw, ok := f[key]
	if !ok {
		return false, nil
	}
	delete(f, key)
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("field %q: %w", key, err)
	}
	return true, nil
}

func (f fields) clone() fields {
	out := make(fields, len(f)+8)
	maps.Copy(out, f)
	return out
}

func (f fields) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	f[key] = data
	return nil
}

// putAll writes values in order and stops at the first error
func (f fields) putAll(kv ...any) error {
	for i := 0; i+1 < len(kv); i += 2 {
		if err := f.put(kv[i].(string), kv[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// optionalString is null when empty
func optionalString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// encode writes f as a JSON object. Members named in order come first, in
// that order; members added since decoding follow sorted by name.
func (f fields) encode(order []string) ([]byte, error) {
	seen := make(map[string]bool, len(f))
	keys := make([]string, 0, len(f))
	for _, key := range order {
		if _, ok := f[key]; ok && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	var added []string
	for key := range f {
		if !seen[key] {
			added = append(added, key)
		}
	}
	slices.Sort(added)
	keys = append(keys, added...)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(f[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
