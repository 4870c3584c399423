package profile

import "github.com/mersel/xslt-service/internal/model"

// SuppressionOutcome is the result of filtering one error set.
type SuppressionOutcome struct {
	Kept       []model.RuleError
	Suppressed []model.RuleError
}

// SuppressRuleErrors filters Schematron errors through the resolved
// profile. An error is suppressed when any in-scope rule matches its
// corresponding field (logical OR across rules and modes). Applying the
// filter twice is a no-op: kept errors by definition match no rule.
func SuppressRuleErrors(errors []model.RuleError, resolved *Resolved, scope map[string]bool) SuppressionOutcome {
	out := SuppressionOutcome{Kept: make([]model.RuleError, 0, len(errors))}
	if resolved == nil || len(resolved.Suppressions) == 0 {
		out.Kept = append(out.Kept, errors...)
		return out
	}

	for _, e := range errors {
		if ruleErrorSuppressed(e, resolved.Suppressions, scope) {
			out.Suppressed = append(out.Suppressed, e)
		} else {
			out.Kept = append(out.Kept, e)
		}
	}
	return out
}

func ruleErrorSuppressed(e model.RuleError, rules []CompiledRule, scope map[string]bool) bool {
	for _, r := range rules {
		if !r.InScope(scope) {
			continue
		}
		switch r.Rule.Match {
		case MatchRuleID, MatchRuleIDEquals:
			if r.MatchesField(e.RuleID) {
				return true
			}
		case MatchTest, MatchTestEquals:
			if r.MatchesField(e.Test) {
				return true
			}
		case MatchText:
			if r.MatchesField(e.Message) {
				return true
			}
		}
	}
	return false
}

// SuppressSchemaErrors filters schema error strings. Schema errors carry no
// rule id or test expression, so only text-mode rules can match them.
func SuppressSchemaErrors(errors []string, resolved *Resolved, scope map[string]bool) (kept, suppressed []string) {
	kept = make([]string, 0, len(errors))
	if resolved == nil || len(resolved.Suppressions) == 0 {
		kept = append(kept, errors...)
		return kept, nil
	}

	for _, msg := range errors {
		matched := false
		for _, r := range resolved.Suppressions {
			if r.Rule.Match != MatchText || !r.InScope(scope) {
				continue
			}
			if r.MatchesField(msg) {
				matched = true
				break
			}
		}
		if matched {
			suppressed = append(suppressed, msg)
		} else {
			kept = append(kept, msg)
		}
	}
	return kept, suppressed
}
