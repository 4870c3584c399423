package schematron

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/model"
	"github.com/mersel/xslt-service/internal/profile"
)

// compiledSet pairs a merged rule set with its precompiled expressions.
type compiledSet struct {
	rules []compiledRule
}

type compiledRule struct {
	id      string
	context *Expr
	asserts []compiledAssert
}

type compiledAssert struct {
	src  Assertion
	test *Expr
}

// Validator loads, merges and caches rule sets, and evaluates documents
// against them.
type Validator struct {
	store    *assets.Store
	cache    *assets.Cache
	profiles *profile.Store
	log      *zap.Logger
}

// NewValidator creates a rule validator backed by the asset cache.
func NewValidator(store *assets.Store, cache *assets.Cache, profiles *profile.Store, log *zap.Logger) *Validator {
	return &Validator{store: store, cache: cache, profiles: profiles, log: log.Named("schematron")}
}

// Name implements assets.Reloadable.
func (v *Validator) Name() string { return "Schematron Rule Sets" }

// Kind implements assets.Reloadable.
func (v *Validator) Kind() model.AssetKind { return model.KindRuleSet }

// Reload invalidates cached rule sets and recompiles every present base
// set without profile merges.
func (v *Validator) Reload() model.ReloadResult {
	start := time.Now()
	res := model.ReloadResult{Component: v.Name()}

	v.cache.Invalidate(model.KindRuleSet)

	for _, t := range allRuleSetTypes {
		path, _ := assets.RuleSetPath(t)
		if !v.store.Exists(path) {
			continue
		}
		if _, err := v.compiled(t, profile.Empty); err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		res.Loaded++
	}

	res.DurationMs = time.Since(start).Milliseconds()
	switch {
	case len(res.Errors) == 0:
		res.Status = model.ReloadOK
	case res.Loaded > 0:
		res.Status = model.ReloadPartial
	default:
		res.Status = model.ReloadFailed
	}
	return res
}

var allRuleSetTypes = []model.RuleSetType{
	model.RulesUBLTRMain,
	model.RulesEArchiveReport,
	model.RulesLedgerJournal,
	model.RulesLedgerKebir,
	model.RulesLedgerBerat,
	model.RulesLedgerReport,
	model.RulesInventoryBerat,
	model.RulesInventoryLedger,
}

// compiled returns the cached merged rule set for a family and profile.
// Merged output is deterministic for a given base set and profile, so the
// cache key is their combination; profile edits invalidate the kind.
func (v *Validator) compiled(t model.RuleSetType, resolved *profile.Resolved) (*compiledSet, error) {
	path, ok := assets.RuleSetPath(t)
	if !ok {
		return nil, model.NewAssetError(model.KindRuleSet, string(t), "no rule set registered for type", nil)
	}

	key := path + "|" + resolved.Name
	value, err := v.cache.Get(model.KindRuleSet, key, func() (any, error) {
		data, err := v.store.Read(path)
		if err != nil {
			return nil, model.NewAssetError(model.KindRuleSet, path, "rule set asset missing", err)
		}
		base, err := Parse(path, data)
		if err != nil {
			return nil, model.NewAssetError(model.KindRuleSet, path, "rule set asset corrupt", err)
		}

		global := v.profiles.GlobalRules()[string(t)]
		injected := resolved.SchematronRules[string(t)]
		merged, err := base.Merge(global, injected)
		if err != nil {
			return nil, model.NewProfileError(resolved.Name, "custom rule merge failed", err)
		}
		return compile(merged)
	})
	if err != nil {
		return nil, err
	}
	return value.(*compiledSet), nil
}

func compile(rs *RuleSet) (*compiledSet, error) {
	out := &compiledSet{rules: make([]compiledRule, 0, len(rs.Rules))}
	for _, r := range rs.Rules {
		ctxExpr, err := Compile(contextToExpr(r.Context))
		if err != nil {
			return nil, fmt.Errorf("rule %q: bad context %q: %w", r.ID, r.Context, err)
		}
		cr := compiledRule{id: r.ID, context: ctxExpr}
		for _, a := range r.Asserts {
			t, err := Compile(a.Test)
			if err != nil {
				return nil, fmt.Errorf("assert %q: bad test %q: %w", a.ID, a.Test, err)
			}
			cr.asserts = append(cr.asserts, compiledAssert{src: a, test: t})
		}
		out.rules = append(out.rules, cr)
	}
	return out, nil
}

// contextToExpr normalizes a rule context into a location path that
// selects its nodes from the document root. Relative contexts match
// anywhere, per Schematron pattern semantics.
func contextToExpr(context string) string {
	if len(context) > 0 && context[0] == '/' {
		return context
	}
	return "//" + context
}

// Validate evaluates the merged rule set for docType against the document.
// Each failed assertion yields one RuleError. The error return is reserved
// for asset faults and profile configuration errors.
func (v *Validator) Validate(content []byte, docType model.DocumentType, resolved *profile.Resolved) ([]model.RuleError, error) {
	ruleSetType, ok := model.RuleSetTypeFor(docType)
	if !ok {
		return nil, model.NewAssetError(model.KindRuleSet, string(docType), "no rule set mapping for document type", nil)
	}

	cs, err := v.compiled(ruleSetType, resolved)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return []model.RuleError{{Message: "malformed XML: " + err.Error()}}, nil
	}
	root := doc.Root()
	if root == nil {
		return []model.RuleError{{Message: "document has no root element"}}, nil
	}

	var errs []model.RuleError
	for _, rule := range cs.rules {
		contexts := selectNodes(rule.context, root)
		for _, ctx := range contexts {
			for _, a := range rule.asserts {
				fired := a.test.EvalBool(ctx)
				if a.src.Report != fired {
					continue
				}
				id := a.src.ID
				if id == "" {
					id = rule.id
				}
				errs = append(errs, model.RuleError{
					RuleID:  id,
					Test:    a.src.Test,
					Message: a.src.Message,
				})
			}
		}
	}
	return errs, nil
}

func selectNodes(e *Expr, root *etree.Element) []*etree.Element {
	v := e.root.eval(root)
	return v.nodes
}

// AppliedInfo returns the rule set display name and store path for a
// document type, for result metadata.
func (v *Validator) AppliedInfo(docType model.DocumentType) (name, path string) {
	t, ok := model.RuleSetTypeFor(docType)
	if !ok {
		return "", ""
	}
	p, _ := assets.RuleSetPath(t)
	return string(t), p
}
