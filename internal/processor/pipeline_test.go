package processor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/detect"
	"github.com/mersel/xslt-service/internal/model"
	"github.com/mersel/xslt-service/internal/processor"
	"github.com/mersel/xslt-service/internal/profile"
	"github.com/mersel/xslt-service/internal/schema"
	"github.com/mersel/xslt-service/internal/schematron"
)

const invoiceXSD = `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="Invoice">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="ID" minOccurs="1" maxOccurs="1"/>
        <xs:element name="InvoiceLine" minOccurs="1" maxOccurs="unbounded"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`

const mainSchematron = `<?xml version="1.0"?>
<schema xmlns="http://purl.oclc.org/dsdl/schematron">
  <pattern id="checks">
    <rule id="R-INV" context="//Invoice">
      <assert id="GIB-001" test="ID">Invoice must carry an ID</assert>
      <assert id="GIB-002" test="count(InvoiceLine) &gt;= 1">Invoice needs at least one line</assert>
    </rule>
  </pattern>
</schema>`

const profilesYML = `
profiles:
  lenient:
    description: suppresses the ID rule
    suppressions:
      - match: ruleIdEquals
        pattern: GIB-001
        scope: ["INVOICE"]
  scoped-elsewhere:
    suppressions:
      - match: ruleIdEquals
        pattern: GIB-001
        scope: ["EDEFTER_YEVMIYE"]
`

func newPipeline(t *testing.T) *processor.Pipeline {
	t.Helper()
	store, err := assets.NewStore(t.TempDir())
	require.NoError(t, err)

	xsdPath, _ := assets.SchemaPath(model.SchemaInvoice)
	require.NoError(t, store.Write(xsdPath, []byte(invoiceXSD)))
	schPath, _ := assets.RuleSetPath(model.RulesUBLTRMain)
	require.NoError(t, store.Write(schPath, []byte(mainSchematron)))
	require.NoError(t, store.Write(assets.ProfilesFile, []byte(profilesYML)))

	log := zap.NewNop()
	cache := assets.NewCache(time.Minute)
	profiles := profile.NewStore(store, log)
	profiles.Reload()

	return processor.NewPipeline(
		detect.NewDetector(),
		schema.NewValidator(store, cache, log),
		schematron.NewValidator(store, cache, profiles, log),
		profiles,
		log,
	)
}

func TestPipelineValidDocument(t *testing.T) {
	p := newPipeline(t)

	doc := []byte(`<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2">
  <ID>TST2023000000001</ID>
  <InvoiceLine/>
</Invoice>`)

	result, err := p.Validate(context.Background(), doc, processor.Options{})
	require.NoError(t, err)
	assert.Equal(t, "INVOICE", result.DetectedDocumentType)
	assert.True(t, result.ValidSchema)
	assert.True(t, result.ValidSchematron)
	assert.Empty(t, result.SchemaErrors)
	assert.Empty(t, result.RuleErrors)
	assert.Nil(t, result.Suppression)
	assert.Equal(t, "UBLTR_MAIN", result.AppliedRuleSet)
	assert.Equal(t, "INVOICE", result.AppliedXSD)
}

func TestPipelineCollectsBothErrorKinds(t *testing.T) {
	p := newPipeline(t)

	doc := []byte(`<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2">
  <InvoiceLine/>
</Invoice>`)

	result, err := p.Validate(context.Background(), doc, processor.Options{})
	require.NoError(t, err)
	assert.False(t, result.ValidSchema)
	assert.False(t, result.ValidSchematron)
	assert.NotEmpty(t, result.SchemaErrors)
	require.Len(t, result.RuleErrors, 1)
	assert.Equal(t, "GIB-001", result.RuleErrors[0].RuleID)
}

func TestPipelineAppliesSuppressionProfile(t *testing.T) {
	p := newPipeline(t)

	doc := []byte(`<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2">
  <InvoiceLine/>
</Invoice>`)

	result, err := p.Validate(context.Background(), doc, processor.Options{Profile: "lenient"})
	require.NoError(t, err)
	assert.True(t, result.ValidSchematron)
	assert.Empty(t, result.RuleErrors)

	require.NotNil(t, result.Suppression)
	assert.Equal(t, "lenient", result.Suppression.Profile)
	assert.Equal(t, 1, result.Suppression.SuppressedCount)
	require.Len(t, result.Suppression.SuppressedErrors, 1)
	assert.Equal(t, "GIB-001", result.Suppression.SuppressedErrors[0].RuleID)
}

func TestPipelineScopeGatesSuppression(t *testing.T) {
	p := newPipeline(t)

	doc := []byte(`<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2">
  <InvoiceLine/>
</Invoice>`)

	// The suppression is scoped to ledger documents, so it does not fire
	// for an invoice.
	result, err := p.Validate(context.Background(), doc, processor.Options{Profile: "scoped-elsewhere"})
	require.NoError(t, err)
	assert.False(t, result.ValidSchematron)
	require.NotNil(t, result.Suppression)
	assert.Equal(t, 0, result.Suppression.SuppressedCount)
}

func TestPipelineForcedType(t *testing.T) {
	p := newPipeline(t)

	// No namespace, so detection alone would fail.
	doc := []byte(`<Invoice><ID>1</ID><InvoiceLine/></Invoice>`)

	_, err := p.Validate(context.Background(), doc, processor.Options{})
	require.Error(t, err)

	result, err := p.Validate(context.Background(), doc, processor.Options{ForcedType: model.DocInvoice})
	require.NoError(t, err)
	assert.True(t, result.ValidSchema)
}

func TestPipelineUnknownProfile(t *testing.T) {
	p := newPipeline(t)

	_, err := p.Validate(context.Background(), []byte("<Invoice/>"), processor.Options{Profile: "missing"})
	assert.ErrorIs(t, err, model.ErrNotFound)
}
