package transform_test

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/model"
	"github.com/mersel/xslt-service/internal/transform"
)

const defaultTemplate = `<html><head></head><body>default:{{ .Text "ID" }}</body></html>`

const invoiceXML = `<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2">
  <ID>TST2023000000001</ID>
</Invoice>`

func newEngine(t *testing.T) (*transform.Engine, *assets.Store, *assets.Cache) {
	t.Helper()
	store, err := assets.NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Write(assets.TemplatePath(model.TransformInvoice), []byte(defaultTemplate)))
	cache := assets.NewCache(time.Minute)
	return transform.NewEngine(store, cache, 3, zap.NewNop()), store, cache
}

func TestTransformDefaultTemplate(t *testing.T) {
	e, _, _ := newEngine(t)

	res, err := e.Transform([]byte(invoiceXML), transform.Options{Type: model.TransformInvoice})
	require.NoError(t, err)
	assert.True(t, res.DefaultUsed)
	assert.False(t, res.EmbeddedUsed)
	assert.Contains(t, string(res.Output), "default:TST2023000000001")
	assert.Equal(t, len(res.Output), res.OutputSize)
}

func TestTransformCustomTemplateWins(t *testing.T) {
	e, _, _ := newEngine(t)

	res, err := e.Transform([]byte(invoiceXML), transform.Options{
		Type:   model.TransformInvoice,
		Custom: []byte(`custom:{{ .Text "ID" }}`),
	})
	require.NoError(t, err)
	assert.False(t, res.DefaultUsed)
	assert.Empty(t, res.CustomXSLTError)
	assert.Equal(t, "custom:TST2023000000001", string(res.Output))
}

func TestTransformBrokenCustomFallsBack(t *testing.T) {
	e, _, _ := newEngine(t)

	res, err := e.Transform([]byte(invoiceXML), transform.Options{
		Type:   model.TransformInvoice,
		Custom: []byte(`{{ .Missing `),
	})
	require.NoError(t, err)
	assert.True(t, res.DefaultUsed)
	assert.NotEmpty(t, res.CustomXSLTError)
	assert.Contains(t, string(res.Output), "default:")
}

func TestTransformEmbeddedPreferred(t *testing.T) {
	e, _, _ := newEngine(t)

	src := `embedded:{{ .Text "ID" }}`
	doc := fmt.Sprintf(`<Invoice>
  <ID>42</ID>
  <AdditionalDocumentReference>
    <Attachment>
      <EmbeddedDocumentBinaryObject filename="fatura.xslt">%s</EmbeddedDocumentBinaryObject>
    </Attachment>
  </AdditionalDocumentReference>
</Invoice>`, base64.StdEncoding.EncodeToString([]byte(src)))

	res, err := e.Transform([]byte(doc), transform.Options{
		Type:        model.TransformInvoice,
		UseEmbedded: true,
	})
	require.NoError(t, err)
	assert.True(t, res.EmbeddedUsed)
	assert.False(t, res.DefaultUsed)
	assert.Equal(t, "embedded:42", string(res.Output))

	// Without the flag the same document renders with the default.
	res, err = e.Transform([]byte(doc), transform.Options{Type: model.TransformInvoice})
	require.NoError(t, err)
	assert.True(t, res.DefaultUsed)
}

func TestTransformWatermark(t *testing.T) {
	e, _, _ := newEngine(t)

	res, err := e.Transform([]byte(invoiceXML), transform.Options{
		Type:          model.TransformInvoice,
		WatermarkText: "TASLAK",
	})
	require.NoError(t, err)
	assert.True(t, res.WatermarkApplied)
	assert.Contains(t, string(res.Output), `class="watermark"`)
}

func TestTransformMalformedDocument(t *testing.T) {
	e, _, _ := newEngine(t)

	_, err := e.Transform([]byte("<oops"), transform.Options{Type: model.TransformInvoice})
	require.Error(t, err)

	var detErr *model.DetectionError
	assert.ErrorAs(t, err, &detErr)
}

func TestTransformMissingDefaultTemplate(t *testing.T) {
	store, err := assets.NewStore(t.TempDir())
	require.NoError(t, err)
	e := transform.NewEngine(store, assets.NewCache(time.Minute), 3, zap.NewNop())

	_, err = e.Transform([]byte(invoiceXML), transform.Options{Type: model.TransformEMM})
	require.Error(t, err)

	var assetErr *model.AssetError
	assert.ErrorAs(t, err, &assetErr)
}

func TestEngineReloadPicksUpEdits(t *testing.T) {
	e, store, _ := newEngine(t)

	res, err := e.Transform([]byte(invoiceXML), transform.Options{Type: model.TransformInvoice})
	require.NoError(t, err)
	assert.Contains(t, string(res.Output), "default:")

	require.NoError(t, store.Write(assets.TemplatePath(model.TransformInvoice),
		[]byte(`<html><head></head><body>v2:{{ .Text "ID" }}</body></html>`)))

	// Cached until a reload invalidates the kind.
	res, err = e.Transform([]byte(invoiceXML), transform.Options{Type: model.TransformInvoice})
	require.NoError(t, err)
	assert.Contains(t, string(res.Output), "default:")

	outcome := e.Reload()
	assert.Equal(t, model.ReloadOK, outcome.Status)
	assert.Equal(t, 1, outcome.Loaded)

	res, err = e.Transform([]byte(invoiceXML), transform.Options{Type: model.TransformInvoice})
	require.NoError(t, err)
	assert.Contains(t, string(res.Output), "v2:")
}
