package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

/* Payload is a read-only view over event data supplied by a producer
 * Producers disagree on key representation, so lookups are indifferent to it:
 * "ref", ":ref", "Ref" and "REF" all address the same field
 */
type Payload struct {
	fields map[string]field
}

type field struct {
	key   string // key as first written by the producer, symbol marker removed
	value any
}

// CanonicalKey returns the form every key is stored and looked up under
func CanonicalKey(key string) string {
	return strings.ToLower(strings.TrimPrefix(key, ":"))
}

// Normalize builds a Payload from raw producer data.
// The input is deep-copied and never modified. When two keys collapse to the
// same canonical key, the one sorting last wins so the result is deterministic.
func Normalize(raw map[string]any) Payload {
	p := Payload{fields: make(map[string]field, len(raw))}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		p.fields[CanonicalKey(k)] = field{
			key:   strings.TrimPrefix(k, ":"),
			value: normalizeValue(raw[k]),
		}
	}

	return p
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case Payload:
		return t
	case map[string]any:
		return Normalize(t)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return Normalize(m)
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = Normalize(m)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

// Get returns the value stored under any representation of key
func (p Payload) Get(key string) (any, bool) {
	f, ok := p.fields[CanonicalKey(key)]
	if !ok {
		return nil, false
	}
	return f.value, true
}

// Value returns the value for key, or nil when the field is absent
func (p Payload) Value(key string) any {
	v, _ := p.Get(key)
	return v
}

// Has reports whether key is present
func (p Payload) Has(key string) bool {
	_, ok := p.fields[CanonicalKey(key)]
	return ok
}

// String returns the field formatted as a string, or "" when absent
func (p Payload) String(key string) string {
	v, ok := p.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Map returns a nested payload. Absent or non-map fields yield an empty Payload.
func (p Payload) Map(key string) Payload {
	if nested, ok := p.Value(key).(Payload); ok {
		return nested
	}
	return Payload{}
}

// Dig walks nested payloads, e.g. Dig("author", "username")
func (p Payload) Dig(keys ...string) any {
	if len(keys) == 0 {
		return nil
	}
	cur := p
	for _, k := range keys[:len(keys)-1] {
		nested, ok := cur.Value(k).(Payload)
		if !ok {
			return nil
		}
		cur = nested
	}
	return cur.Value(keys[len(keys)-1])
}

// Len returns the number of top-level fields
func (p Payload) Len() int {
	return len(p.fields)
}

// Keys returns the producer's keys in sorted order
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p.fields))
	for _, f := range p.fields {
		keys = append(keys, f.key)
	}
	sort.Strings(keys)
	return keys
}

// Raw returns a fresh plain map using the producer's key spelling
func (p Payload) Raw() map[string]any {
	out := make(map[string]any, len(p.fields))
	for _, f := range p.fields {
		out[f.key] = rawValue(f.value)
	}
	return out
}

func rawValue(v any) any {
	switch t := v.(type) {
	case Payload:
		return t.Raw()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = rawValue(item)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON encodes the payload with the producer's key spelling
func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Raw())
}

// UnmarshalJSON decodes a JSON object and normalizes it.
// Numbers are kept as json.Number so large identifiers survive the round trip.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("unmarshaling payload: %w", err)
	}
	*p = Normalize(raw)
	return nil
}
