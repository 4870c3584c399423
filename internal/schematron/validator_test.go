package schematron_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/model"
	"github.com/mersel/xslt-service/internal/profile"
	"github.com/mersel/xslt-service/internal/schematron"
)

const mainSchematron = `<?xml version="1.0"?>
<schema xmlns="http://purl.oclc.org/dsdl/schematron">
  <pattern id="invoice-checks">
    <rule id="R-INV" context="//Invoice">
      <assert id="GIB-001" test="ID">Invoice must carry an ID</assert>
      <assert id="GIB-002" test="count(InvoiceLine) &gt;= 1">Invoice needs at least one line</assert>
      <report id="GIB-003" test="Note = 'DRAFT'">Draft invoices may not be submitted</report>
    </rule>
  </pattern>
</schema>`

type fixture struct {
	store    *assets.Store
	profiles *profile.Store
	v        *schematron.Validator
}

func newFixture(t *testing.T, profilesYML string) *fixture {
	t.Helper()
	store, err := assets.NewStore(t.TempDir())
	require.NoError(t, err)

	path, _ := assets.RuleSetPath(model.RulesUBLTRMain)
	require.NoError(t, store.Write(path, []byte(mainSchematron)))
	if profilesYML != "" {
		require.NoError(t, store.Write(assets.ProfilesFile, []byte(profilesYML)))
	}

	profiles := profile.NewStore(store, zap.NewNop())
	profiles.Reload()

	cache := assets.NewCache(time.Minute)
	return &fixture{
		store:    store,
		profiles: profiles,
		v:        schematron.NewValidator(store, cache, profiles, zap.NewNop()),
	}
}

func TestValidateAssertsAndReports(t *testing.T) {
	f := newFixture(t, "")

	// Missing ID and lines, and a firing report.
	doc := []byte(`<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2">
  <Note>DRAFT</Note>
</Invoice>`)

	errs, err := f.v.Validate(doc, model.DocInvoice, profile.Empty)
	require.NoError(t, err)
	require.Len(t, errs, 3)

	ids := []string{errs[0].RuleID, errs[1].RuleID, errs[2].RuleID}
	assert.Contains(t, ids, "GIB-001")
	assert.Contains(t, ids, "GIB-002")
	assert.Contains(t, ids, "GIB-003")
}

func TestValidateCleanDocument(t *testing.T) {
	f := newFixture(t, "")

	doc := []byte(`<Invoice>
  <ID>TST2023000000001</ID>
  <InvoiceLine><Qty>1</Qty></InvoiceLine>
</Invoice>`)

	errs, err := f.v.Validate(doc, model.DocInvoice, profile.Empty)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestValidateMergesProfileRules(t *testing.T) {
	f := newFixture(t, `
profiles:
  strict:
    schematronRules:
      UBLTR_MAIN:
        - id: ORG-7
          context: //Invoice
          test: Currency
          message: organization requires a currency element
`)

	resolved, err := f.profiles.Resolve("strict")
	require.NoError(t, err)

	doc := []byte(`<Invoice>
  <ID>1</ID>
  <InvoiceLine/>
</Invoice>`)

	errs, err := f.v.Validate(doc, model.DocInvoice, resolved)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "ORG-7", errs[0].RuleID)
	assert.Equal(t, "organization requires a currency element", errs[0].Message)

	// Without the profile the custom rule does not apply.
	errs, err = f.v.Validate(doc, model.DocInvoice, profile.Empty)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestValidateMergesGlobalRules(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.profiles.SaveGlobalRules(map[string][]profile.CustomRule{
		"UBLTR_MAIN": {
			{ID: "GLB-1", Context: "//Invoice", Test: "UUID", Message: "uuid required"},
		},
	}))

	doc := []byte(`<Invoice><ID>1</ID><InvoiceLine/></Invoice>`)

	errs, err := f.v.Validate(doc, model.DocInvoice, profile.Empty)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "GLB-1", errs[0].RuleID)
}

func TestValidateMalformedDocument(t *testing.T) {
	f := newFixture(t, "")

	errs, err := f.v.Validate([]byte("<unclosed"), model.DocInvoice, profile.Empty)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "malformed XML")
}

func TestValidateMissingRuleSetAsset(t *testing.T) {
	store, err := assets.NewStore(t.TempDir())
	require.NoError(t, err)
	profiles := profile.NewStore(store, zap.NewNop())
	v := schematron.NewValidator(store, assets.NewCache(time.Minute), profiles, zap.NewNop())

	_, err = v.Validate([]byte(`<Invoice/>`), model.DocInvoice, profile.Empty)
	require.Error(t, err)

	var assetErr *model.AssetError
	assert.ErrorAs(t, err, &assetErr)
}

func TestReloadReportsCompiledSets(t *testing.T) {
	f := newFixture(t, "")

	res := f.v.Reload()
	assert.Equal(t, model.ReloadOK, res.Status)
	assert.Equal(t, 1, res.Loaded)
}
