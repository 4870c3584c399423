// Package schematron evaluates assertion-style rule sets against XML
// documents, merging authority rules with global and profile-injected
// custom rules.
package schematron

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/mersel/xslt-service/internal/profile"
)

// Assertion is one testable statement inside a rule. Asserts fail when the
// test evaluates false; reports fire when it evaluates true.
type Assertion struct {
	ID      string
	Test    string
	Message string
	Report  bool
}

// Rule groups assertions sharing one context expression.
type Rule struct {
	ID      string
	Context string
	Asserts []Assertion
}

// RuleSet is a compiled rule collection for one rule-set family.
type RuleSet struct {
	Name  string
	Rules []Rule
}

// Parse reads an ISO-Schematron document into a RuleSet. Both the .sch and
// the authority's .xml packaging use the same pattern/rule/assert
// vocabulary; namespace prefixes on the schematron elements are ignored.
func Parse(name string, content []byte) (*RuleSet, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, fmt.Errorf("parse rule set %s: %w", name, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("rule set %s: empty document", name)
	}

	rs := &RuleSet{Name: name}
	collectRules(root, rs)
	if len(rs.Rules) == 0 {
		return nil, fmt.Errorf("rule set %s: no rules found", name)
	}
	return rs, nil
}

func collectRules(el *etree.Element, rs *RuleSet) {
	if el.Tag == "rule" {
		rule := Rule{
			ID:      el.SelectAttrValue("id", ""),
			Context: el.SelectAttrValue("context", ""),
		}
		for _, child := range el.ChildElements() {
			switch child.Tag {
			case "assert", "report":
				rule.Asserts = append(rule.Asserts, Assertion{
					ID:      child.SelectAttrValue("id", ""),
					Test:    child.SelectAttrValue("test", ""),
					Message: textContent(child),
					Report:  child.Tag == "report",
				})
			}
		}
		if rule.Context != "" && len(rule.Asserts) > 0 {
			rs.Rules = append(rs.Rules, rule)
		}
		return
	}
	for _, child := range el.ChildElements() {
		collectRules(child, rs)
	}
}

func textContent(el *etree.Element) string {
	var out string
	for _, t := range el.Child {
		if cd, ok := t.(*etree.CharData); ok {
			out += cd.Data
		}
	}
	return trimSpace(out)
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	// Collapse internal runs of whitespace so multi-line messages render
	// as one line.
	out := make([]byte, 0, end-start)
	space := false
	for i := start; i < end; i++ {
		if isSpace(s[i]) {
			space = true
			continue
		}
		if space && len(out) > 0 {
			out = append(out, ' ')
		}
		space = false
		out = append(out, s[i])
	}
	return string(out)
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Merge appends custom rules (global first, then profile) to a copy of the
// base rule set. Each custom rule becomes a single-assert rule carrying its
// own id, so suppression rules can target it.
func (rs *RuleSet) Merge(global, injected []profile.CustomRule) (*RuleSet, error) {
	if len(global) == 0 && len(injected) == 0 {
		return rs, nil
	}
	merged := &RuleSet{Name: rs.Name, Rules: make([]Rule, len(rs.Rules), len(rs.Rules)+len(global)+len(injected))}
	copy(merged.Rules, rs.Rules)

	add := func(c profile.CustomRule) error {
		if c.Context == "" || c.Test == "" {
			return fmt.Errorf("custom rule %q: context and test required", c.ID)
		}
		if _, err := Compile(c.Test); err != nil {
			return fmt.Errorf("custom rule %q: unparsable test: %w", c.ID, err)
		}
		merged.Rules = append(merged.Rules, Rule{
			ID:      c.ID,
			Context: c.Context,
			Asserts: []Assertion{{ID: c.ID, Test: c.Test, Message: c.Message}},
		})
		return nil
	}
	for _, c := range global {
		if err := add(c); err != nil {
			return nil, err
		}
	}
	for _, c := range injected {
		if err := add(c); err != nil {
			return nil, err
		}
	}
	return merged, nil
}
