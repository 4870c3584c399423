package schema

import (
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/model"
	"github.com/mersel/xslt-service/internal/profile"
)

// Validator compiles and caches schemas per family and validates documents
// against them, applying profile occurrence overrides to a private copy.
type Validator struct {
	store *assets.Store
	cache *assets.Cache
	log   *zap.Logger
}

// NewValidator creates a schema validator backed by the asset cache.
func NewValidator(store *assets.Store, cache *assets.Cache, log *zap.Logger) *Validator {
	return &Validator{store: store, cache: cache, log: log.Named("schema")}
}

// Name implements assets.Reloadable.
func (v *Validator) Name() string { return "XSD Schemas" }

// Kind implements assets.Reloadable.
func (v *Validator) Kind() model.AssetKind { return model.KindSchema }

// Reload invalidates cached schemas and recompiles every present one.
func (v *Validator) Reload() model.ReloadResult {
	start := time.Now()
	res := model.ReloadResult{Component: v.Name()}

	v.cache.Invalidate(model.KindSchema)

	present := 0
	for t := range allSchemaTypes() {
		path, _ := assets.SchemaPath(t)
		if !v.store.Exists(path) {
			continue
		}
		present++
		if _, err := v.compiled(t); err != nil {
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

func allSchemaTypes() map[model.SchemaType]bool {
	return map[model.SchemaType]bool{
		model.SchemaInvoice:             true,
		model.SchemaDespatchAdvice:      true,
		model.SchemaReceiptAdvice:       true,
		model.SchemaCreditNote:          true,
		model.SchemaApplicationResponse: true,
		model.SchemaEArchive:            true,
		model.SchemaELedger:             true,
	}
}

// compiled returns the cached compiled schema for a family, building it on
// demand. Concurrent builds for the same family coalesce in the cache.
func (v *Validator) compiled(t model.SchemaType) (*Schema, error) {
	path, ok := assets.SchemaPath(t)
	if !ok {
		return nil, model.NewAssetError(model.KindSchema, string(t), "no schema registered for type", nil)
	}
	value, err := v.cache.Get(model.KindSchema, path, func() (any, error) {
		data, err := v.store.Read(path)
		if err != nil {
			return nil, model.NewAssetError(model.KindSchema, path, "schema asset missing", err)
		}
		s, err := Parse(path, data)
		if err != nil {
			return nil, model.NewAssetError(model.KindSchema, path, "schema asset corrupt", err)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Schema), nil
}

// Validate validates document bytes against the schema for docType. The
// resolved profile's overrides for that schema family are applied to a
// private schema copy. Returned strings are document-shape violations; the
// error return is reserved for asset faults and malformed input.
func (v *Validator) Validate(content []byte, docType model.DocumentType, resolved *profile.Resolved) ([]string, error) {
	schemaType, ok := model.SchemaTypeFor(docType)
	if !ok {
		return nil, model.NewAssetError(model.KindSchema, string(docType), "no schema mapping for document type", nil)
	}

	s, err := v.compiled(schemaType)
	if err != nil {
		return nil, err
	}

	if resolved != nil {
		if overrides := resolved.XsdOverrides[string(schemaType)]; len(overrides) > 0 {
			s, err = s.WithOverrides(overrides)
			if err != nil {
				return nil, model.NewProfileError(resolved.Name, "xsd override failed", err)
			}
			v.log.Debug("applied xsd overrides",
				zap.String("profile", resolved.Name),
				zap.String("schema", string(schemaType)),
				zap.Int("count", len(overrides)))
		}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return []string{"malformed XML: " + err.Error()}, nil
	}
	return s.Validate(doc), nil
}

// AppliedInfo returns the schema display name and store path for a
// document type, for result metadata.
func (v *Validator) AppliedInfo(docType model.DocumentType) (name, path string) {
	schemaType, ok := model.SchemaTypeFor(docType)
	if !ok {
		return "", ""
	}
	p, _ := assets.SchemaPath(schemaType)
	return string(schemaType), p
}
