// Package transform renders documents to HTML through templates: a
// caller-supplied one, one embedded in the document, or the default
// registered for the transform type.
package transform

import (
	"strings"

	"github.com/beevik/etree"
)

// Doc is the template execution context: a thin query layer over the
// parsed document. Paths are slash-separated local names; a leading //
// searches the whole tree. Namespace prefixes in paths are ignored so the
// same template works across producers.
type Doc struct {
	root *etree.Element
}

// NewDoc wraps a parsed document for template execution.
func NewDoc(root *etree.Element) *Doc {
	return &Doc{root: root}
}

// Root returns the root element's local name.
func (d *Doc) Root() string {
	if d.root == nil {
		return ""
	}
	return d.root.Tag
}

// Text returns the trimmed text of the first element matching path.
func (d *Doc) Text(path string) string {
	els := d.Find(path)
	if len(els) == 0 {
		return ""
	}
	return strings.TrimSpace(els[0].Text())
}

// Texts returns the trimmed texts of all elements matching path.
func (d *Doc) Texts(path string) []string {
	els := d.Find(path)
	out := make([]string, 0, len(els))
	for _, el := range els {
		out = append(out, strings.TrimSpace(el.Text()))
	}
	return out
}

// Attr returns the named attribute of the first element matching path.
func (d *Doc) Attr(path, name string) string {
	els := d.Find(path)
	if len(els) == 0 {
		return ""
	}
	return els[0].SelectAttrValue(name, "")
}

// Count returns the number of elements matching path.
func (d *Doc) Count(path string) int {
	return len(d.Find(path))
}

// Each returns sub-documents for all elements matching path, for range
// loops over repeating structures like invoice lines.
func (d *Doc) Each(path string) []*Doc {
	els := d.Find(path)
	out := make([]*Doc, 0, len(els))
	for _, el := range els {
		out = append(out, &Doc{root: el})
	}
	return out
}

// Find resolves a path to matching elements.
func (d *Doc) Find(path string) []*etree.Element {
	if d.root == nil || path == "" {
		return nil
	}
	deep := strings.HasPrefix(path, "//")
	path = strings.TrimPrefix(path, "//")
	path = strings.TrimPrefix(path, "/")

	steps := strings.Split(path, "/")
	for i, s := range steps {
		steps[i] = localName(s)
	}

	current := []*etree.Element{d.root}
	for i, step := range steps {
		var next []*etree.Element
		for _, el := range current {
			if deep && i == 0 {
				findDeep(el, step, &next)
			} else {
				for _, child := range el.ChildElements() {
					if child.Tag == step {
						next = append(next, child)
					}
				}
			}
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}
	return current
}

func findDeep(el *etree.Element, name string, out *[]*etree.Element) {
	for _, child := range el.ChildElements() {
		if child.Tag == name {
			*out = append(*out, child)
		}
		findDeep(child, name, out)
	}
}

func localName(s string) string {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		return s[i+1:]
	}
	return s
}
