// Package schema validates documents against the structural schema of
// their detected type, including profile-declared occurrence overrides.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/mersel/xslt-service/internal/profile"
)

// Unbounded marks an element with no upper occurrence limit.
const Unbounded = -1

// ElementDecl is one declared element with its occurrence constraints and
// declared children. Leaf declarations have no children and accept text.
type ElementDecl struct {
	Name     string // local name
	Min      int
	Max      int
	Children []*ElementDecl
	AnyChild bool // wildcard content: children are not checked
}

// Schema is the compiled structural model for one document family.
type Schema struct {
	Name string
	Root *ElementDecl
}

// Parse compiles an XSD document into the structural model. Supported
// vocabulary: global xs:element declarations, named and inline
// xs:complexType, xs:sequence, xs:choice, xs:all, element ref/type lookup,
// minOccurs/maxOccurs and xs:any wildcards. This covers the authority's
// published schemas; anything else is a malformed-asset error.
func Parse(name string, content []byte) (*Schema, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "schema" {
		return nil, fmt.Errorf("schema %s: missing xs:schema root", name)
	}

	p := &parser{
		types:    map[string]*etree.Element{},
		elements: map[string]*etree.Element{},
	}
	for _, child := range root.ChildElements() {
		switch child.Tag {
		case "complexType":
			if n := child.SelectAttrValue("name", ""); n != "" {
				p.types[n] = child
			}
		case "element":
			if n := child.SelectAttrValue("name", ""); n != "" {
				p.elements[n] = child
			}
		}
	}

	// The document root is the first global element declaration.
	var rootEl *etree.Element
	for _, child := range root.ChildElements() {
		if child.Tag == "element" && child.SelectAttrValue("name", "") != "" {
			rootEl = child
			break
		}
	}
	if rootEl == nil {
		return nil, fmt.Errorf("schema %s: no global element declaration", name)
	}

	decl, err := p.buildElement(rootEl, 0)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return &Schema{Name: name, Root: decl}, nil
}

type parser struct {
	types    map[string]*etree.Element
	elements map[string]*etree.Element
}

const maxDepth = 64

func (p *parser) buildElement(el *etree.Element, depth int) (*ElementDecl, error) {
	if depth > maxDepth {
		// Recursive type; stop expanding and accept any content below.
		return &ElementDecl{Name: el.SelectAttrValue("name", ""), Min: 1, Max: 1, AnyChild: true}, nil
	}

	decl := &ElementDecl{
		Name: localName(el.SelectAttrValue("name", "")),
		Min:  1,
		Max:  1,
	}

	if ref := el.SelectAttrValue("ref", ""); ref != "" {
		target, ok := p.elements[localName(ref)]
		if !ok {
			// References into imported schema documents resolve to an
			// unchecked subtree.
			decl.Name = localName(ref)
			decl.AnyChild = true
		} else {
			built, err := p.buildElement(target, depth+1)
			if err != nil {
				return nil, err
			}
			decl.Name = built.Name
			decl.Children = built.Children
			decl.AnyChild = built.AnyChild
		}
	}

	var err error
	if decl.Min, err = parseOccurs(el.SelectAttrValue("minOccurs", "1")); err != nil {
		return nil, fmt.Errorf("element %s: %w", decl.Name, err)
	}
	if decl.Max, err = parseOccurs(el.SelectAttrValue("maxOccurs", "1")); err != nil {
		return nil, fmt.Errorf("element %s: %w", decl.Name, err)
	}

	ct := el.SelectElement("complexType")
	if ct == nil {
		if tn := el.SelectAttrValue("type", ""); tn != "" {
			if named, ok := p.types[localName(tn)]; ok {
				ct = named
			} else if !strings.HasPrefix(tn, "xs:") && !strings.HasPrefix(tn, "xsd:") {
				// Type defined in an imported document: unchecked subtree.
				decl.AnyChild = true
			}
		}
	}
	if ct != nil {
		if err := p.buildContent(ct, decl, depth+1); err != nil {
			return nil, err
		}
	}
	return decl, nil
}

func (p *parser) buildContent(ct *etree.Element, decl *ElementDecl, depth int) error {
	for _, group := range ct.ChildElements() {
		switch group.Tag {
		case "sequence", "all", "choice":
			if err := p.buildGroup(group, decl, depth); err != nil {
				return err
			}
		case "any":
			decl.AnyChild = true
		case "simpleContent", "complexContent":
			// Attribute-only extensions; text content is unchecked.
		}
	}
	return nil
}

func (p *parser) buildGroup(group *etree.Element, decl *ElementDecl, depth int) error {
	optional := group.Tag == "choice"
	for _, child := range group.ChildElements() {
		switch child.Tag {
		case "element":
			sub, err := p.buildElement(child, depth+1)
			if err != nil {
				return err
			}
			if optional {
				sub.Min = 0
			}
			decl.Children = append(decl.Children, sub)
		case "any":
			decl.AnyChild = true
		case "sequence", "choice", "all":
			if err := p.buildGroup(child, decl, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseOccurs(v string) (int, error) {
	if v == "unbounded" {
		return Unbounded, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid occurrence value %q", v)
	}
	return n, nil
}

func localName(qname string) string {
	if i := strings.LastIndex(qname, ":"); i >= 0 {
		return qname[i+1:]
	}
	return qname
}

// ── Overrides ───────────────────────────────────────────────────────

// clone deep-copies a declaration tree.
func (d *ElementDecl) clone() *ElementDecl {
	c := &ElementDecl{Name: d.Name, Min: d.Min, Max: d.Max, AnyChild: d.AnyChild}
	for _, child := range d.Children {
		c.Children = append(c.Children, child.clone())
	}
	return c
}

// WithOverrides returns a private copy of the schema with the profile's
// occurrence overrides applied. The shared compiled schema is never
// mutated; concurrent validations keep seeing the original.
func (s *Schema) WithOverrides(overrides []profile.XsdOverride) (*Schema, error) {
	if len(overrides) == 0 {
		return s, nil
	}
	copied := &Schema{Name: s.Name, Root: s.Root.clone()}
	for _, o := range overrides {
		if err := o.Validate(); err != nil {
			return nil, err
		}
		target := localName(o.Element)
		if !applyOverride(copied.Root, target, o) {
			return nil, fmt.Errorf("override element %q not found in schema %s", o.Element, s.Name)
		}
	}
	return copied, nil
}

func applyOverride(d *ElementDecl, target string, o profile.XsdOverride) bool {
	applied := false
	if d.Name == target {
		if o.MinOccurs != nil {
			d.Min = *o.MinOccurs
		}
		if o.MaxOccurs != nil {
			if *o.MaxOccurs == "unbounded" {
				d.Max = Unbounded
			} else if n, err := strconv.Atoi(*o.MaxOccurs); err == nil {
				d.Max = n
			}
		}
		applied = true
	}
	for _, child := range d.Children {
		if applyOverride(child, target, o) {
			applied = true
		}
	}
	return applied
}

// ── Validation ──────────────────────────────────────────────────────

// Validate checks a parsed document against the schema, returning all
// structural violations as readable messages. Violations are collected,
// never raised.
func (s *Schema) Validate(doc *etree.Document) []string {
	root := doc.Root()
	if root == nil {
		return []string{"document has no root element"}
	}
	var errs []string
	if root.Tag != s.Root.Name {
		errs = append(errs, fmt.Sprintf(
			"root element is '%s' but schema %s declares '%s'", root.Tag, s.Name, s.Root.Name))
		return errs
	}
	validateElement(root, s.Root, root.Tag, &errs)
	return errs
}

func validateElement(el *etree.Element, decl *ElementDecl, path string, errs *[]string) {
	if decl.AnyChild {
		return
	}

	declared := make(map[string]*ElementDecl, len(decl.Children))
	for _, c := range decl.Children {
		declared[c.Name] = c
	}

	counts := map[string]int{}
	for _, child := range el.ChildElements() {
		counts[child.Tag]++
		if _, ok := declared[child.Tag]; !ok {
			*errs = append(*errs, fmt.Sprintf(
				"unexpected element '%s' under '%s'", child.Tag, path))
		}
	}

	for _, c := range decl.Children {
		n := counts[c.Name]
		if n < c.Min {
			*errs = append(*errs, fmt.Sprintf(
				"element '%s' under '%s' occurs %d time(s), minimum is %d", c.Name, path, n, c.Min))
		}
		if c.Max != Unbounded && n > c.Max {
			*errs = append(*errs, fmt.Sprintf(
				"element '%s' under '%s' occurs %d time(s), maximum is %d", c.Name, path, n, c.Max))
		}
	}

	for _, child := range el.ChildElements() {
		if c, ok := declared[child.Tag]; ok {
			validateElement(child, c, path+"/"+child.Tag, errs)
		}
	}
}
