package detect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mersel/xslt-service/internal/model"
)

func TestDetectUBLDocuments(t *testing.T) {
	tests := []struct {
		root string
		want model.DocumentType
	}{
		{"Invoice", model.DocInvoice},
		{"CreditNote", model.DocCreditNote},
		{"DespatchAdvice", model.DocDespatchAdvice},
		{"ReceiptAdvice", model.DocReceiptAdvice},
		{"ApplicationResponse", model.DocApplicationResponse},
	}

	for _, tt := range tests {
		t.Run(tt.root, func(t *testing.T) {
			xml := `<?xml version="1.0"?>
<` + tt.root + ` xmlns="urn:oasis:names:specification:ubl:schema:xsd:` + tt.root + `-2">
  <ID>TST2023000000001</ID>
</` + tt.root + `>`

			got, err := NewDetector().Detect([]byte(xml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectEArchiveReport(t *testing.T) {
	xml := `<?xml version="1.0"?>
<eArsivRaporu xmlns="http://earsiv.efatura.gov.tr">
  <baslik/>
</eArsivRaporu>`

	got, err := NewDetector().Detect([]byte(xml))
	require.NoError(t, err)
	assert.Equal(t, model.DocEArchiveReport, got)
}

func TestDetectLedgerBooks(t *testing.T) {
	tests := []struct {
		name      string
		prefix    string
		root      string
		contextID string
		want      model.DocumentType
	}{
		{"journal", "edefter", "defter", "journal_context", model.DocLedgerJournal},
		{"kebir", "edefter", "defter", "ledger_context", model.DocLedgerKebir},
		{"ledger berat", "edefter", "berat", "journal_context", model.DocLedgerBerat},
		{"inventory berat in ledger prefix", "edefter", "berat", "assets_context", model.DocInventoryBerat},
		{"inventory ledger", "envanter", "defter", "assets_context", model.DocInventoryLedger},
		{"inventory berat", "envanter", "berat", "assets_context", model.DocInventoryBerat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xml := `<?xml version="1.0"?>
<` + tt.prefix + `:` + tt.root + ` xmlns:` + tt.prefix + `="http://www.edefter.gov.tr" xmlns:xbrli="http://www.xbrl.org/2003/instance">
  <xbrli:xbrl>
    <xbrli:context id="` + tt.contextID + `"/>
  </xbrli:xbrl>
</` + tt.prefix + `:` + tt.root + `>`

			got, err := NewDetector().Detect([]byte(xml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectLedgerReport(t *testing.T) {
	xml := `<edefter:defterRaporu xmlns:edefter="http://www.edefter.gov.tr"/>`

	got, err := NewDetector().Detect([]byte(xml))
	require.NoError(t, err)
	assert.Equal(t, model.DocLedgerReport, got)
}

func TestDetectErrors(t *testing.T) {
	d := NewDetector()

	var detErr *model.DetectionError

	_, err := d.Detect(nil)
	require.Error(t, err)
	assert.True(t, errors.As(err, &detErr))

	_, err = d.Detect([]byte("<unclosed"))
	require.Error(t, err)
	assert.True(t, errors.As(err, &detErr))

	_, err = d.Detect([]byte(`<Unknown xmlns="http://example.com/ns"/>`))
	require.Error(t, err)
	require.True(t, errors.As(err, &detErr))
	assert.Contains(t, detErr.Error(), "http://example.com/ns")
}

func TestDetectLedgerWithoutContextFails(t *testing.T) {
	xml := `<edefter:defter xmlns:edefter="http://www.edefter.gov.tr"/>`

	_, err := NewDetector().Detect([]byte(xml))
	require.Error(t, err)

	var detErr *model.DetectionError
	assert.True(t, errors.As(err, &detErr))
}
