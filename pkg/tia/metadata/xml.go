package metadata

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samcharles93/seremi/pkg/tia"
)

// ParseXML builds a Node tree from the single root element of s.
// Namespaces are dropped; tags and attributes use their local names.
// An element's Text is the character data before its first child; text
// after a child element is discarded. Anything but whitespace, comments or
// processing instructions after the root element is an error.
func ParseXML(s string) (*Node, error) {
	d := xml.NewDecoder(strings.NewReader(s))
	// The footer string is already text; ignore any declared encoding.
	d.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	var (
		stack []*Node
		texts []*strings.Builder
		root  *Node
	)
	for {
		tok, err := d.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, &tia.Error{Kind: tia.ErrFormat, Op: "metadata", Offset: d.InputOffset(), Msg: fmt.Sprintf("xml: %v", err)}
			}
			if root == nil {
				return nil, tia.FormatError("metadata", d.InputOffset(), "no root element")
			}
			return root, nil
		}

		if root != nil {
			switch t := tok.(type) {
			case xml.StartElement:
				return nil, tia.FormatError("metadata", d.InputOffset(), "junk after document element: <"+t.Name.Local+">")
			case xml.CharData:
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, tia.FormatError("metadata", d.InputOffset(), "junk after document element")
				}
			}
			continue
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Tag: t.Name.Local}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				n.Attrs = append(n.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
			texts = append(texts, &strings.Builder{})
		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, tia.FormatError("metadata", d.InputOffset(), "text before document element")
				}
				continue
			}
			if len(stack[len(stack)-1].Children) == 0 {
				texts[len(texts)-1].Write(t)
			}
		case xml.EndElement:
			n := stack[len(stack)-1]
			n.Text = strings.TrimSpace(texts[len(texts)-1].String())
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]
			if len(stack) == 0 {
				root = n
			}
		}
	}
}

// FoldXML parses s and folds it with FoldRoot.
func FoldXML(s string) (*Map, error) {
	root, err := ParseXML(s)
	if err != nil {
		return nil, err
	}
	return FoldRoot(root), nil
}
