package transform

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/model"
)

// Options selects the template for one transformation.
type Options struct {
	// Type picks the default template when nothing else applies.
	Type model.TransformType

	// Custom is a caller-supplied template source. It wins over everything
	// else, but a broken one falls back to the default instead of failing
	// the request.
	Custom []byte

	// UseEmbedded prefers a template embedded in the document itself.
	UseEmbedded bool

	// WatermarkText, when non-blank, is overlaid on the rendered HTML.
	WatermarkText string
}

// Engine renders documents to HTML. Default templates are compiled per
// transform type and cached; custom and embedded templates are compiled per
// request.
type Engine struct {
	store          *assets.Store
	cache          *assets.Cache
	log            *zap.Logger
	watermarkCount int
}

// NewEngine creates a transform engine backed by the asset cache.
func NewEngine(store *assets.Store, cache *assets.Cache, watermarkCount int, log *zap.Logger) *Engine {
	if watermarkCount < 1 {
		watermarkCount = 1
	}
	return &Engine{store: store, cache: cache, watermarkCount: watermarkCount, log: log.Named("transform")}
}

// Name implements assets.Reloadable.
func (e *Engine) Name() string { return "Default Templates" }

// Kind implements assets.Reloadable.
func (e *Engine) Kind() model.AssetKind { return model.KindTemplate }

// Reload invalidates cached templates and recompiles every present one.
func (e *Engine) Reload() model.ReloadResult {
	start := time.Now()
	res := model.ReloadResult{Component: e.Name()}

	e.cache.Invalidate(model.KindTemplate)

	for _, t := range allTransformTypes() {
		if !e.store.Exists(assets.TemplatePath(t)) {
			continue
		}
		if _, err := e.compiled(t); err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		res.Loaded++
	}

	res.DurationMs = time.Since(start).Milliseconds()
	switch {
	case len(res.Errors) == 0:
		res.Status = model.ReloadOK
	case res.Loaded > 0:
		res.Status = model.ReloadPartial
	default:
		res.Status = model.ReloadFailed
	}
	return res
}

func allTransformTypes() []model.TransformType {
	return []model.TransformType{
		model.TransformInvoice,
		model.TransformArchiveInvoice,
		model.TransformDespatchAdvice,
		model.TransformReceiptAdvice,
		model.TransformEMM,
		model.TransformECheck,
	}
}

// Transform parses the document and renders it through the selected
// template. A failed custom template never fails the request: the error is
// recorded on the result and the default template renders instead.
func (e *Engine) Transform(content []byte, opts Options) (*model.TransformResult, error) {
	start := time.Now()

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, model.NewDetectionError("", "", "document is not well-formed XML")
	}
	root := doc.Root()
	if root == nil {
		return nil, model.NewDetectionError("", "", "document has no root element")
	}

	res := &model.TransformResult{}
	ctx := NewDoc(root)

	out, err := e.render(ctx, root, opts, res)
	if err != nil {
		return nil, err
	}

	if opts.WatermarkText != "" {
		out, res.WatermarkApplied = Watermark(out, opts.WatermarkText, e.watermarkCount)
	}

	res.Output = out
	res.OutputSize = len(out)
	res.DurationMs = time.Since(start).Milliseconds()
	return res, nil
}

func (e *Engine) render(ctx *Doc, root *etree.Element, opts Options, res *model.TransformResult) ([]byte, error) {
	if len(opts.Custom) > 0 {
		out, err := execute("custom", opts.Custom, ctx)
		if err == nil {
			return out, nil
		}
		res.CustomXSLTError = err.Error()
		e.log.Warn("custom template failed, falling back to default",
			zap.String("type", string(opts.Type)), zap.Error(err))
	}

	if opts.UseEmbedded {
		if src := ExtractEmbedded(root); src != nil {
			out, err := execute("embedded", src, ctx)
			if err == nil {
				res.EmbeddedUsed = true
				return out, nil
			}
			e.log.Warn("embedded template failed, falling back to default",
				zap.String("type", string(opts.Type)), zap.Error(err))
		}
	}

	tmpl, err := e.compiled(opts.Type)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		path := assets.TemplatePath(opts.Type)
		return nil, model.NewAssetError(model.KindTemplate, path, "default template execution failed", err)
	}
	res.DefaultUsed = true
	return buf.Bytes(), nil
}

// compiled returns the cached default template for a transform type.
func (e *Engine) compiled(t model.TransformType) (*template.Template, error) {
	path := assets.TemplatePath(t)
	v, err := e.cache.Get(model.KindTemplate, string(t), func() (any, error) {
		data, err := e.store.Read(path)
		if err != nil {
			return nil, model.NewAssetError(model.KindTemplate, path, "default template not available", err)
		}
		tmpl, err := template.New(string(t)).Parse(string(data))
		if err != nil {
			return nil, model.NewAssetError(model.KindTemplate, path, "default template does not parse", err)
		}
		return tmpl, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*template.Template), nil
}

func execute(name string, src []byte, ctx *Doc) ([]byte, error) {
	tmpl, err := template.New(name).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s template does not parse: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("%s template execution failed: %w", name, err)
	}
	return buf.Bytes(), nil
}
