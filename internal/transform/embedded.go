package transform

import (
	"encoding/base64"
	"strings"

	"github.com/beevik/etree"
)

// ExtractEmbedded returns the template carried inside a UBL document, or
// nil when none is present. UBL-TR documents may embed their display
// template base64-encoded in
// AdditionalDocumentReference/Attachment/EmbeddedDocumentBinaryObject with
// a filename ending in .xsl or .xslt; other attachments (PDFs, images)
// share the same carrier and are skipped by filename.
func ExtractEmbedded(root *etree.Element) []byte {
	doc := &Doc{root: root}
	for _, ref := range doc.Find("//AdditionalDocumentReference") {
		obj := (&Doc{root: ref}).Find("Attachment/EmbeddedDocumentBinaryObject")
		if len(obj) == 0 {
			continue
		}
		el := obj[0]
		filename := strings.ToLower(el.SelectAttrValue("filename", ""))
		if !strings.HasSuffix(filename, ".xsl") && !strings.HasSuffix(filename, ".xslt") {
			continue
		}

		payload := stripWhitespace(el.Text())
		if payload == "" {
			return nil
		}
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil
		}
		// Legacy producers label the payload Windows-1254; the bytes are
		// already UTF-8 by the time they reach us.
		out := strings.Replace(string(decoded), "Windows-1254", "UTF-8", 1)
		return []byte(out)
	}
	return nil
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
