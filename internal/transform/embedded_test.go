package transform

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseRoot(t *testing.T, xml string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	require.NotNil(t, doc.Root())
	return doc.Root()
}

func attachmentDoc(filename, payload string) string {
	return fmt.Sprintf(`<Invoice>
  <AdditionalDocumentReference>
    <ID>F9D8</ID>
    <Attachment>
      <EmbeddedDocumentBinaryObject filename=%q mimeCode="application/xml">%s</EmbeddedDocumentBinaryObject>
    </Attachment>
  </AdditionalDocumentReference>
</Invoice>`, filename, payload)
}

func TestExtractEmbeddedTemplate(t *testing.T) {
	src := `<html>{{ .Text "ID" }}</html>`
	payload := base64.StdEncoding.EncodeToString([]byte(src))

	got := ExtractEmbedded(parseRoot(t, attachmentDoc("fatura.xslt", payload)))
	assert.Equal(t, []byte(src), got)
}

func TestExtractEmbeddedIgnoresWhitespaceInPayload(t *testing.T) {
	src := "<html>ok</html>"
	payload := base64.StdEncoding.EncodeToString([]byte(src))
	wrapped := payload[:4] + "\n  " + payload[4:]

	got := ExtractEmbedded(parseRoot(t, attachmentDoc("Fatura.XSL", wrapped)))
	assert.Equal(t, []byte(src), got)
}

func TestExtractEmbeddedReplacesLegacyEncodingLabel(t *testing.T) {
	src := `<?xml version="1.0" encoding="Windows-1254"?><html/>`
	payload := base64.StdEncoding.EncodeToString([]byte(src))

	got := ExtractEmbedded(parseRoot(t, attachmentDoc("a.xsl", payload)))
	assert.Contains(t, string(got), `encoding="UTF-8"`)
}

func TestExtractEmbeddedSkipsOtherAttachments(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))
	got := ExtractEmbedded(parseRoot(t, attachmentDoc("ek.pdf", payload)))
	assert.Nil(t, got)
}

func TestExtractEmbeddedBadBase64(t *testing.T) {
	got := ExtractEmbedded(parseRoot(t, attachmentDoc("a.xslt", "not base64 at all!")))
	assert.Nil(t, got)
}

func TestExtractEmbeddedAbsent(t *testing.T) {
	got := ExtractEmbedded(parseRoot(t, "<Invoice><ID>1</ID></Invoice>"))
	assert.Nil(t, got)
}
