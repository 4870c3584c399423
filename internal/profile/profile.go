// Package profile holds named validation profiles: suppression rules,
// schema occurrence overrides and injected Schematron rules, with single
// parent inheritance.
package profile

import (
	"fmt"
	"regexp"
	"sync"
)

// Suppression match modes. The Equals modes compare the full field value
// literally: rule ids and test expressions in some rule-set families are
// syntactically dense enough that full-match semantics beat regex escaping.
const (
	MatchRuleID       = "ruleId"
	MatchRuleIDEquals = "ruleIdEquals"
	MatchTest         = "test"
	MatchTestEquals   = "testEquals"
	MatchText         = "text"
)

// SuppressionRule filters matching validation errors out of the result.
type SuppressionRule struct {
	Match       string   `yaml:"match" json:"match"`
	Pattern     string   `yaml:"pattern" json:"pattern"`
	Scope       []string `yaml:"scope,omitempty" json:"scope,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// Validate checks rule well-formedness.
func (r SuppressionRule) Validate() error {
	switch r.Match {
	case MatchRuleID, MatchRuleIDEquals, MatchTest, MatchTestEquals, MatchText:
	default:
		return fmt.Errorf("unknown match mode %q", r.Match)
	}
	if r.Pattern == "" {
		return fmt.Errorf("suppression rule with empty pattern")
	}
	return nil
}

// XsdOverride adjusts occurrence constraints of one schema element for the
// profile. MaxOccurs accepts "unbounded".
type XsdOverride struct {
	Element   string  `yaml:"element" json:"element"`
	MinOccurs *int    `yaml:"minOccurs,omitempty" json:"minOccurs,omitempty"`
	MaxOccurs *string `yaml:"maxOccurs,omitempty" json:"maxOccurs,omitempty"`
}

// Validate checks that the override changes at least one constraint.
func (o XsdOverride) Validate() error {
	if o.Element == "" {
		return fmt.Errorf("xsd override with empty element")
	}
	if o.MinOccurs == nil && o.MaxOccurs == nil {
		return fmt.Errorf("xsd override for %q changes nothing", o.Element)
	}
	return nil
}

// CustomRule is a profile-injected Schematron assertion.
type CustomRule struct {
	ID      string `yaml:"id,omitempty" json:"id,omitempty"`
	Context string `yaml:"context" json:"context"`
	Test    string `yaml:"test" json:"test"`
	Message string `yaml:"message" json:"message"`
}

// Profile is one named validation configuration. Names are unique and
// immutable once created.
type Profile struct {
	Name            string                   `yaml:"-" json:"name"`
	Description     string                   `yaml:"description,omitempty" json:"description,omitempty"`
	Extends         string                   `yaml:"extends,omitempty" json:"extends,omitempty"`
	Suppressions    []SuppressionRule        `yaml:"suppressions,omitempty" json:"suppressions,omitempty"`
	XsdOverrides    map[string][]XsdOverride `yaml:"xsdOverrides,omitempty" json:"xsdOverrides,omitempty"`
	SchematronRules map[string][]CustomRule  `yaml:"schematronRules,omitempty" json:"schematronRules,omitempty"`
}

// Resolved is a flattened, immutable profile snapshot with inheritance
// applied: ancestor rules first, own rules appended. Rule order carries no
// precedence because suppression is evaluated as any-match.
type Resolved struct {
	Name            string
	Suppressions    []CompiledRule
	XsdOverrides    map[string][]XsdOverride
	SchematronRules map[string][]CustomRule
}

// Empty is the no-profile identity: nothing suppressed, nothing overridden.
var Empty = &Resolved{Name: ""}

// CompiledRule is a suppression rule with its regex compiled once.
type CompiledRule struct {
	Rule SuppressionRule
	re   *regexp.Regexp // nil in Equals modes
}

// InScope reports whether the rule applies for the given type names.
// An empty scope applies everywhere.
func (c CompiledRule) InScope(types map[string]bool) bool {
	if len(c.Rule.Scope) == 0 {
		return true
	}
	for _, s := range c.Rule.Scope {
		if types[s] {
			return true
		}
	}
	return false
}

// MatchesField reports whether the compiled pattern matches the value
// under the rule's semantics (regex find vs. exact equality).
func (c CompiledRule) MatchesField(value string) bool {
	switch c.Rule.Match {
	case MatchRuleIDEquals, MatchTestEquals:
		return value == c.Rule.Pattern
	default:
		return c.re != nil && c.re.MatchString(value)
	}
}

// regexCache caches compiled patterns across resolutions. Entries live for
// the process lifetime; profile edits change pattern strings, not compiled
// semantics, so stale entries are never wrong, only unused.
var regexCache sync.Map // pattern string -> *regexp.Regexp

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if v, ok := regexCache.Load(pattern); ok {
		return v.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

// CompileRules compiles the regex modes of the given rules, skipping
// Equals modes. Invalid patterns are reported, not silently dropped.
func CompileRules(rules []SuppressionRule) ([]CompiledRule, error) {
	compiled := make([]CompiledRule, 0, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		c := CompiledRule{Rule: r}
		if r.Match != MatchRuleIDEquals && r.Match != MatchTestEquals {
			re, err := compilePattern(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", r.Pattern, err)
			}
			c.re = re
		}
		compiled = append(compiled, c)
	}
	return compiled, nil
}
