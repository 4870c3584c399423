package syncer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/model"
	"github.com/mersel/xslt-service/internal/profile"
)

// AnalyzeImpact cross-checks a staged package against every configured
// suppression rule that targets rule ids: a suppression whose rule id
// disappears from its rule set will silently stop matching after approval,
// which is exactly the situation an operator wants flagged before
// promoting the sync.
func AnalyzeImpact(store *assets.Store, profiles *profile.Store, packageID string, files []model.FileDiffSummary) []model.SuppressionWarning {
	var warnings []model.SuppressionWarning

	for _, f := range files {
		if f.Status != model.FileModified && f.Status != model.FileRemoved {
			continue
		}
		if !isRuleSetPath(f.Path) {
			continue
		}

		oldIDs := ruleIDs(readOptionalContent(store, f.Path))
		var newIDs map[string]bool
		if f.Status == model.FileModified {
			newIDs = ruleIDs(readOptionalContent(store, StagingPath(packageID, f.Path)))
		} else {
			newIDs = map[string]bool{}
		}

		removed := make([]string, 0)
		for id := range oldIDs {
			if !newIDs[id] {
				removed = append(removed, id)
			}
		}
		sort.Strings(removed)

		added := make([]string, 0, len(newIDs))
		for id := range newIDs {
			if !oldIDs[id] {
				added = append(added, id)
			}
		}
		sort.Strings(added)

		warnings = append(warnings, matchRemovedIDs(profiles, removed, added)...)
	}
	return warnings
}

// isRuleSetPath reports whether an asset path carries Schematron rules.
func isRuleSetPath(p string) bool {
	if strings.HasSuffix(p, ".sch") {
		return true
	}
	return strings.HasSuffix(p, ".xml") && strings.Contains(p, "schematron/")
}

func readOptionalContent(store *assets.Store, rel string) []byte {
	data, _ := store.Read(rel)
	return data
}

// ruleIDs collects id attributes from pattern, rule, assert and report
// elements, the four places Schematron identifies rules.
func ruleIDs(content []byte) map[string]bool {
	ids := map[string]bool{}
	if len(content) == 0 {
		return ids
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return ids
	}
	root := doc.Root()
	if root == nil {
		return ids
	}
	collectIDs(root, ids)
	return ids
}

func collectIDs(el *etree.Element, ids map[string]bool) {
	switch el.Tag {
	case "pattern", "rule", "assert", "report":
		if id := el.SelectAttrValue("id", ""); id != "" {
			ids[id] = true
		}
	}
	for _, child := range el.ChildElements() {
		collectIDs(child, ids)
	}
}

func matchRemovedIDs(profiles *profile.Store, removed, added []string) []model.SuppressionWarning {
	if len(removed) == 0 {
		return nil
	}

	var warnings []model.SuppressionWarning
	for _, p := range profiles.List() {
		for _, rule := range p.Suppressions {
			if rule.Match != profile.MatchRuleID && rule.Match != profile.MatchRuleIDEquals {
				continue
			}
			compiled, err := profile.CompileRules([]profile.SuppressionRule{rule})
			if err != nil || len(compiled) == 0 {
				continue
			}
			for _, id := range removed {
				if !compiled[0].MatchesField(id) {
					continue
				}
				warnings = append(warnings, buildWarning(p.Name, rule, id, added))
			}
		}
	}
	return warnings
}

func buildWarning(profileName string, rule profile.SuppressionRule, removedID string, added []string) model.SuppressionWarning {
	severity := model.SeverityWarning
	if len(rule.Scope) == 0 {
		// Unrestricted rules apply to every document family, so losing
		// their target is the widest possible blast radius.
		severity = model.SeverityCritical
	}

	msg := fmt.Sprintf("suppression in profile %q matches rule id %q which the staged package removes",
		profileName, removedID)
	if renamed := similarID(removedID, added); renamed != "" {
		msg += fmt.Sprintf("; possibly renamed to %q", renamed)
	}

	return model.SuppressionWarning{
		RuleID:      removedID,
		ProfileName: profileName,
		Pattern:     rule.Pattern,
		Severity:    severity,
		Message:     msg,
	}
}

// similarID finds a plausible rename target among added ids: same leading
// alphabetic stem with only trailing digits differing, like GIB-001
// becoming GIB-002.
func similarID(removed string, added []string) string {
	stem := idStem(removed)
	if stem == "" {
		return ""
	}
	for _, id := range added {
		if idStem(id) == stem {
			return id
		}
	}
	return ""
}

func idStem(id string) string {
	return strings.TrimRight(id, "0123456789")
}
