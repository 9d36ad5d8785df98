package phone

// Fields is a raw device state document as decoded from JSON.
//
// The device reports state as free-form JSON; entities the adapter does not
// recognise are preserved untouched so firmware additions flow through
// without code changes.
type Fields map[string]any

// Clone returns a deep copy of the fields.
//
// Nested maps and slices are copied recursively; scalar values are shared
// (they are immutable once decoded from JSON).
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

// Overlay merges delta into a copy of f and returns the result.
//
// Merge rules:
//   - A nested map in delta merges key-by-key into the corresponding map in f.
//   - Any other value (scalar, slice, or type mismatch) replaces outright.
//   - Keys are never removed; deltas only set or replace.
func (f Fields) Overlay(delta Fields) Fields {
	out := f.Clone()
	if out == nil {
		out = make(Fields, len(delta))
	}
	for k, v := range delta {
		existing, ok := out[k].(map[string]any)
		incoming, isMap := v.(map[string]any)
		if ok && isMap {
			// Store as map[string]any so lookup's type assertions keep
			// working on the merged subtree.
			out[k] = map[string]any(Fields(existing).Overlay(Fields(incoming)))
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies maps and slices; other values pass through.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case Fields:
		return map[string]any(val.Clone())
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}

// lookup walks a path of keys through nested maps.
func (f Fields) lookup(path ...string) (any, bool) {
	var current any = map[string]any(f)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// getString returns the string at path, or "" if absent or mistyped.
func (f Fields) getString(path ...string) string {
	v, ok := f.lookup(path...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// getBool returns the bool at path, or false if absent or mistyped.
func (f Fields) getBool(path ...string) bool {
	v, ok := f.lookup(path...)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// getInt returns the integer at path, tolerating the numeric types JSON
// decoding produces. Returns 0 if absent or mistyped.
func (f Fields) getInt(path ...string) int {
	v, ok := f.lookup(path...)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}
