package endpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Values is an insertion-ordered mapping from string keys to arbitrary values.
// It backs endpoint params, bodies and form data, where key order is part of
// the request contract. A nil *Values reads as empty.
type Values struct {
	keys []string
	vals map[string]any
}

// NewValues creates an empty Values.
func NewValues() *Values {
	return &Values{vals: make(map[string]any)}
}

// ValuesOf builds Values from alternating key/value arguments.
// It panics if a key is not a string or a value is missing.
func ValuesOf(kv ...any) *Values {
	if len(kv)%2 != 0 {
		panic("endpoint: ValuesOf requires an even number of arguments")
	}
	v := NewValues()
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("endpoint: ValuesOf key at position %d is %T, not string", i, kv[i]))
		}
		v.Set(key, kv[i+1])
	}
	return v
}

// FromMap builds Values from a plain map. Map iteration order is undefined,
// so keys are sorted.
func FromMap(m map[string]any) *Values {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	v := NewValues()
	for _, k := range keys {
		v.Set(k, m[k])
	}
	return v
}

// Set stores val under key. A new key is appended; an existing key keeps its position.
func (v *Values) Set(key string, val any) *Values {
	if v.vals == nil {
		v.vals = make(map[string]any)
	}
	if _, exists := v.vals[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.vals[key] = val
	return v
}

// Get returns the value stored under key.
func (v *Values) Get(key string) (any, bool) {
	if v == nil {
		return nil, false
	}
	val, ok := v.vals[key]
	return val, ok
}

// Has reports whether key is present, even with a nil value.
func (v *Values) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Delete removes key if present.
func (v *Values) Delete(key string) {
	if v == nil {
		return
	}
	if _, ok := v.vals[key]; !ok {
		return
	}
	delete(v.vals, key)
	for i, k := range v.keys {
		if k == key {
			v.keys = append(v.keys[:i], v.keys[i+1:]...)
			break
		}
	}
}

// Keys returns a copy of the keys in order.
func (v *Values) Keys() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Len returns the number of entries.
func (v *Values) Len() int {
	if v == nil {
		return 0
	}
	return len(v.keys)
}

// Range calls fn for each entry in order until fn returns false.
func (v *Values) Range(fn func(key string, val any) bool) {
	if v == nil {
		return
	}
	for _, k := range v.keys {
		if !fn(k, v.vals[k]) {
			return
		}
	}
}

// Clone returns a shallow copy.
func (v *Values) Clone() *Values {
	if v == nil {
		return nil
	}
	out := &Values{
		keys: make([]string, len(v.keys)),
		vals: make(map[string]any, len(v.vals)),
	}
	copy(out.keys, v.keys)
	for k, val := range v.vals {
		out.vals[k] = val
	}
	return out
}

// Map converts to a plain map, recursively converting nested Values
// (including those inside slices).
func (v *Values) Map() map[string]any {
	if v == nil {
		return nil
	}
	out := make(map[string]any, len(v.keys))
	for _, k := range v.keys {
		out[k] = plain(v.vals[k])
	}
	return out
}

func plain(val any) any {
	switch t := val.(type) {
	case *Values:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	default:
		return val
	}
}

// MarshalJSON encodes the entries as a JSON object in key order.
func (v *Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range v.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(v.vals[k])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal value of %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the document's key order.
// Nested objects become *Values and numbers become json.Number.
func (v *Values) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	obj, err := decodeJSONObject(dec)
	if err != nil {
		return err
	}
	*v = *obj
	return nil
}

// decodeJSONObject reads entries after an opening '{' up to and including '}'.
func decodeJSONObject(dec *json.Decoder) (*Values, error) {
	obj := NewValues()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		val, err := decodeJSONValue(dec)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		obj.Set(key, val)
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		return decodeJSONObject(dec)
	case '[':
		arr := make([]any, 0)
		for dec.More() {
			item, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, item)
		}
		// closing ']'
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}

// MarshalYAML encodes the entries as a YAML mapping in key order.
func (v *Values) MarshalYAML() (any, error) {
	if v == nil {
		return nil, nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range v.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		valNode := &yaml.Node{}
		if err := valNode.Encode(v.vals[k]); err != nil {
			return nil, fmt.Errorf("failed to encode value of %q: %w", k, err)
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

// UnmarshalYAML decodes a YAML mapping keeping the document's key order.
// Nested mappings become *Values.
func (v *Values) UnmarshalYAML(node *yaml.Node) error {
	val, err := decodeYAMLNode(node)
	if err != nil {
		return err
	}
	obj, ok := val.(*Values)
	if !ok {
		return fmt.Errorf("line %d: expected YAML mapping", node.Line)
	}
	*v = *obj
	return nil
}

func decodeYAMLNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return decodeYAMLNode(node.Content[0])
	case yaml.AliasNode:
		return decodeYAMLNode(node.Alias)
	case yaml.MappingNode:
		obj := NewValues()
		for i := 0; i+1 < len(node.Content); i += 2 {
			var key string
			if err := node.Content[i].Decode(&key); err != nil {
				return nil, err
			}
			val, err := decodeYAMLNode(node.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			obj.Set(key, val)
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			val, err := decodeYAMLNode(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		return arr, nil
	default:
		var val any
		if err := node.Decode(&val); err != nil {
			return nil, err
		}
		return val, nil
	}
}
