package metadata

import (
	"bytes"
	"iter"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Map is a string-keyed map that remembers insertion order.
type Map struct {
	om *orderedmap.OrderedMap[string, Value]
}

func NewMap() *Map {
	return &Map{om: orderedmap.NewOrderedMap[string, Value]()}
}

func newMapWithCapacity(n int) *Map {
	return &Map{om: orderedmap.NewOrderedMapWithCapacity[string, Value](n)}
}

// Set stores v under key. A new key is appended to the order; an existing
// key keeps its position.
func (m *Map) Set(key string, v Value) {
	m.om.Set(key, v)
}

func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	return m.om.Get(key)
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return m.om.Len()
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, m.om.Len())
	for k := range m.om.AllFromFront() {
		out = append(out, k)
	}
	return out
}

// All iterates entries in insertion order.
func (m *Map) All() iter.Seq2[string, Value] {
	if m == nil {
		return func(func(string, Value) bool) {}
	}
	return m.om.AllFromFront()
}

// Lookup resolves a dotted path such as
// "ObjectInfo.ExperimentalConditions.MicroscopeConditions.AcceleratingVoltage".
func (m *Map) Lookup(path string) (Value, bool) {
	return MapValue(m).Lookup(path)
}

// LookupString is Lookup restricted to String leaves.
func (m *Map) LookupString(path string) (string, bool) {
	v, ok := m.Lookup(path)
	if !ok {
		return "", false
	}
	return v.Str()
}

func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.appendJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Map) appendJSON(buf *bytes.Buffer) error {
	if m == nil {
		buf.WriteString("null")
		return nil
	}
	buf.WriteByte('{')
	i := 0
	for k, v := range m.om.AllFromFront() {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		if err := v.appendJSON(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func (m *Map) MarshalYAML() (any, error) {
	return m.yamlNode(), nil
}

func (m *Map) yamlNode() *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if m == nil {
		return n
	}
	for k, v := range m.om.AllFromFront() {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		n.Content = append(n.Content, key, v.yamlNode())
	}
	return n
}
