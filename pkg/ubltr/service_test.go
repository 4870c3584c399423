package ubltr_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mersel/xslt-service/pkg/ubltr"
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
    </rule>
  </pattern>
</schema>`

const validInvoice = `<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2">
  <ID>TST2023000000001</ID>
  <InvoiceLine/>
</Invoice>`

func writeAsset(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func newTestService(t *testing.T) *ubltr.Service {
	t.Helper()
	root := t.TempDir()
	writeAsset(t, root, "validator/ubl-tr-package/schema/maindoc/UBL-Invoice-2.1.xsd", invoiceXSD)
	writeAsset(t, root, "validator/ubl-tr-package/schematron/UBL-TR_Main_Schematron.xml", mainSchematron)
	writeAsset(t, root, "xslt/default/INVOICE.xslt", `<html><head></head><body>{{ .Text "ID" }}</body></html>`)

	svc, err := ubltr.NewService(ubltr.Options{AssetsPath: root})
	require.NoError(t, err)
	return svc
}

func TestServiceDetectType(t *testing.T) {
	svc := newTestService(t)

	docType, err := svc.DetectType([]byte(validInvoice))
	require.NoError(t, err)
	assert.Equal(t, ubltr.DocInvoice, docType)
}

func TestServiceValidate(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Validate(context.Background(), []byte(validInvoice), "")
	require.NoError(t, err)
	assert.True(t, result.ValidSchema)
	assert.True(t, result.ValidSchematron)

	result, err = svc.Validate(context.Background(),
		[]byte(`<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"><InvoiceLine/></Invoice>`), "")
	require.NoError(t, err)
	assert.False(t, result.ValidSchema)
	require.Len(t, result.RuleErrors, 1)
	assert.Equal(t, "GIB-001", result.RuleErrors[0].RuleID)
}

func TestServiceTransform(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Transform([]byte(validInvoice), ubltr.TransformOptions{WatermarkText: "TASLAK"})
	require.NoError(t, err)
	assert.True(t, result.DefaultUsed)
	assert.True(t, result.WatermarkApplied)
	assert.Contains(t, string(result.Output), "TST2023000000001")
}

func TestServiceReload(t *testing.T) {
	svc := newTestService(t)

	outcome, err := svc.Reload()
	require.NoError(t, err)
	assert.NotEmpty(t, outcome.Results)
}
