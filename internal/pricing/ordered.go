package pricing

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Pair is a single key/value entry of an OrderedStrings object.
type Pair struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// OrderedStrings is a JSON object with string values that remembers the
// order in which its keys appeared. Product attributes are displayed in
// document order, which a Go map would lose.
type OrderedStrings []Pair

// Get returns the value stored under key.
func (o OrderedStrings) Get(key string) (string, bool) {
	for _, p := range o {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Keys returns the keys in document order.
func (o OrderedStrings) Keys() []string {
	keys := make([]string, 0, len(o))
	for _, p := range o {
		keys = append(keys, p.Key)
	}
	return keys
}

// Map returns an unordered copy.
func (o OrderedStrings) Map() map[string]string {
	m := make(map[string]string, len(o))
	for _, p := range o {
		m[p.Key] = p.Value
	}
	return m
}

// UnmarshalJSON decodes a JSON object, keeping key order. A duplicated key
// keeps its first position and its last value, matching how browsers build
// objects from JSON text.
func (o *OrderedStrings) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	out := OrderedStrings{}
	index := map[string]int{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("value of %q: %w", key, err)
		}
		if i, seen := index[key]; seen {
			out[i].Value = value
			continue
		}
		index[key] = len(out)
		out = append(out, Pair{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

// MarshalJSON encodes the pairs back into a JSON object in order.
func (o OrderedStrings) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
