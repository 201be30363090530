package metadata

// Attr is one attribute of a Node, in document order.
type Attr struct {
	Name  string
	Value string
}

// Node is one element of a parsed metadata tree.
type Node struct {
	Tag      string
	Attrs    []Attr
	Text     string // trimmed
	Children []*Node
}

// FoldRoot folds n and wraps the result as {n.Tag: value}.
func FoldRoot(n *Node) *Map {
	out := NewMap()
	out.Set(n.Tag, Fold(n))
	return out
}

// Fold converts n into a Value bottom-up.
func Fold(n *Node) Value {
	hasAttrs := len(n.Attrs) > 0
	hasChildren := len(n.Children) > 0

	if !hasAttrs && !hasChildren {
		if n.Text == "" {
			return Null()
		}
		return String(n.Text)
	}

	out := newMapWithCapacity(len(n.Children) + len(n.Attrs) + 1)
	if hasChildren {
		order := make([]string, 0, len(n.Children))
		groups := make(map[string][]Value, len(n.Children))
		for _, c := range n.Children {
			if _, seen := groups[c.Tag]; !seen {
				order = append(order, c.Tag)
			}
			groups[c.Tag] = append(groups[c.Tag], Fold(c))
		}
		for _, tag := range order {
			vals := groups[tag]
			if len(vals) == 1 {
				out.Set(tag, vals[0])
			} else {
				out.Set(tag, List(vals...))
			}
		}
	}
	for _, a := range n.Attrs {
		out.Set(AttrPrefix+a.Name, String(a.Value))
	}
	if n.Text != "" {
		out.Set(TextKey, String(n.Text))
	}
	return MapValue(out)
}
