package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/model"
	"github.com/mersel/xslt-service/internal/profile"
)

const schOld = `<schema xmlns="http://purl.oclc.org/dsdl/schematron">
  <pattern id="checks">
    <rule id="R-1" context="//Invoice">
      <assert id="GIB-001" test="ID">id required</assert>
      <assert id="GIB-002" test="UUID">uuid required</assert>
    </rule>
  </pattern>
</schema>`

const schNew = `<schema xmlns="http://purl.oclc.org/dsdl/schematron">
  <pattern id="checks">
    <rule id="R-1" context="//Invoice">
      <assert id="GIB-002" test="UUID">uuid required</assert>
      <assert id="GIB-005" test="ID">id required</assert>
    </rule>
  </pattern>
</schema>`

func impactFixture(t *testing.T, profilesYML string) (*assets.Store, *profile.Store) {
	t.Helper()
	store := newSyncStore(t)
	if profilesYML != "" {
		require.NoError(t, store.Write(assets.ProfilesFile, []byte(profilesYML)))
	}
	profiles := profile.NewStore(store, zap.NewNop())
	profiles.Reload()
	return store, profiles
}

func TestAnalyzeImpactFlagsRemovedSuppressedRule(t *testing.T) {
	store, profiles := impactFixture(t, `
profiles:
  lenient:
    suppressions:
      - match: ruleIdEquals
        pattern: GIB-001
        scope: ["INVOICE"]
`)

	rel := "validator/ubl-tr-package/schematron/UBL-TR_Main_Schematron.xml"
	require.NoError(t, store.Write(rel, []byte(schOld)))
	require.NoError(t, store.Write(StagingPath("efatura", rel), []byte(schNew)))

	files := []model.FileDiffSummary{{Path: rel, Status: model.FileModified}}
	warnings := AnalyzeImpact(store, profiles, "efatura", files)
	require.Len(t, warnings, 1)

	w := warnings[0]
	assert.Equal(t, "GIB-001", w.RuleID)
	assert.Equal(t, "lenient", w.ProfileName)
	assert.Equal(t, model.SeverityWarning, w.Severity)
	assert.Contains(t, w.Message, `possibly renamed to "GIB-005"`)
}

func TestAnalyzeImpactCriticalWithoutScope(t *testing.T) {
	store, profiles := impactFixture(t, `
profiles:
  lenient:
    suppressions:
      - match: ruleIdEquals
        pattern: GIB-001
`)

	rel := "validator/ubl-tr-package/schematron/UBL-TR_Main_Schematron.xml"
	require.NoError(t, store.Write(rel, []byte(schOld)))

	files := []model.FileDiffSummary{{Path: rel, Status: model.FileRemoved}}
	warnings := AnalyzeImpact(store, profiles, "efatura", files)

	// Removing the whole rule set loses both suppressed ids, but only
	// GIB-001 has a suppression targeting it.
	require.Len(t, warnings, 1)
	assert.Equal(t, model.SeverityCritical, warnings[0].Severity)
}

func TestAnalyzeImpactRegexPattern(t *testing.T) {
	store, profiles := impactFixture(t, `
profiles:
  lenient:
    suppressions:
      - match: ruleId
        pattern: "^GIB-00[12]$"
        scope: ["INVOICE"]
`)

	rel := "validator/eledger/schematron/yevmiye.sch"
	require.NoError(t, store.Write(rel, []byte(schOld)))

	files := []model.FileDiffSummary{{Path: rel, Status: model.FileRemoved}}
	warnings := AnalyzeImpact(store, profiles, "edefter", files)

	// Both GIB-001 and GIB-002 disappear and both match the regex.
	require.Len(t, warnings, 2)
	assert.Equal(t, "GIB-001", warnings[0].RuleID)
	assert.Equal(t, "GIB-002", warnings[1].RuleID)
}

func TestAnalyzeImpactIgnoresNonRuleSetFiles(t *testing.T) {
	store, profiles := impactFixture(t, `
profiles:
  lenient:
    suppressions:
      - match: ruleIdEquals
        pattern: GIB-001
`)

	files := []model.FileDiffSummary{
		{Path: "validator/ubl-tr-package/schema/maindoc/UBL-Invoice-2.1.xsd", Status: model.FileRemoved},
		{Path: "xslt/gib/efatura/general.xslt", Status: model.FileModified},
	}
	warnings := AnalyzeImpact(store, profiles, "efatura", files)
	assert.Empty(t, warnings)
}

func TestAnalyzeImpactNoSuppressionMatch(t *testing.T) {
	store, profiles := impactFixture(t, `
profiles:
  lenient:
    suppressions:
      - match: ruleIdEquals
        pattern: OTHER-999
`)

	rel := "validator/earchive/schematron/eArsivRaporu.sch"
	require.NoError(t, store.Write(rel, []byte(schOld)))

	files := []model.FileDiffSummary{{Path: rel, Status: model.FileRemoved}}
	warnings := AnalyzeImpact(store, profiles, "earsiv", files)
	assert.Empty(t, warnings)
}
