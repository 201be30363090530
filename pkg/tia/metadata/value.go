// Package metadata folds the XML metadata embedded in EMI files into an
// ordered nested map.
//
// Folding follows the familiar etree-to-dict convention:
//
//   - repeated child tags become a List in document order
//   - attributes become "@name" entries
//   - text that shares an element with attributes or children goes under "#text"
//   - a text-only element folds to its String
//   - an empty element folds to Null
//
// The top-level result is always a one-entry map keyed by the root tag.
package metadata

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

const (
	AttrPrefix = "@"
	TextKey    = "#text"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a folded metadata value: Null, String, Map or List.
// The zero Value is Null.
type Value struct {
	kind Kind
	str  string
	m    *Map
	list []Value
}

func Null() Value               { return Value{} }
func String(s string) Value     { return Value{kind: KindString, str: s} }
func MapValue(m *Map) Value     { return Value{kind: KindMap, m: m} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string of a String value.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Map returns the map of a Map value.
func (v Value) Map() (*Map, bool) {
	return v.m, v.kind == KindMap
}

// List returns the items of a List value.
func (v Value) List() ([]Value, bool) {
	return v.list, v.kind == KindList
}

// String renders leaves as-is and containers as compact JSON.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNull:
		return ""
	default:
		b, err := v.MarshalJSON()
		if err != nil {
			return fmt.Sprintf("<%s>", v.kind)
		}
		return string(b)
	}
}

// Lookup walks a dotted path below v. Map segments are keys; list segments
// are zero-based indices.
func (v Value) Lookup(path string) (Value, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch cur.kind {
		case KindMap:
			next, ok := cur.m.Get(seg)
			if !ok {
				return Value{}, false
			}
			cur = next
		case KindList:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(cur.list) {
				return Value{}, false
			}
			cur = cur.list[i]
		default:
			return Value{}, false
		}
	}
	return cur, true
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.appendJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) appendJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindMap:
		return v.m.appendJSON(buf)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.appendJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	return nil
}

func (v Value) MarshalYAML() (any, error) {
	return v.yamlNode(), nil
}

func (v Value) yamlNode() *yaml.Node {
	switch v.kind {
	case KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.str}
	case KindMap:
		return v.m.yamlNode()
	case KindList:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.list {
			n.Content = append(n.Content, item.yamlNode())
		}
		return n
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}
