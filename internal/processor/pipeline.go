// Package processor wires detection, schema validation, rule validation
// and suppression into the validation pipeline.
package processor

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mersel/xslt-service/internal/detect"
	"github.com/mersel/xslt-service/internal/model"
	"github.com/mersel/xslt-service/internal/profile"
	"github.com/mersel/xslt-service/internal/schema"
	"github.com/mersel/xslt-service/internal/schematron"
)

// Pipeline runs one validation request end to end. It is stateless and
// safe for arbitrary concurrency: every stage only reads from the caches.
type Pipeline struct {
	detector   *detect.Detector
	schema     *schema.Validator
	schematron *schematron.Validator
	profiles   *profile.Store
	log        *zap.Logger
}

// NewPipeline assembles the validation pipeline.
func NewPipeline(
	detector *detect.Detector,
	schemaValidator *schema.Validator,
	ruleValidator *schematron.Validator,
	profiles *profile.Store,
	log *zap.Logger,
) *Pipeline {
	return &Pipeline{
		detector:   detector,
		schema:     schemaValidator,
		schematron: ruleValidator,
		profiles:   profiles,
		log:        log.Named("pipeline"),
	}
}

// Options tune one validation run.
type Options struct {
	// Profile names the suppression profile to apply; empty means none.
	Profile string
	// ForcedType skips detection when the caller already knows the type.
	ForcedType model.DocumentType
}

// Validate detects the document type, runs schema and rule validation in
// parallel, applies the profile's suppressions, and assembles the result.
// Document-shape problems land in the result's error lists; the error
// return carries detection failures, unknown profiles and asset faults.
func (p *Pipeline) Validate(ctx context.Context, content []byte, opts Options) (*model.ValidationResult, error) {
	resolved, err := p.profiles.Resolve(opts.Profile)
	if err != nil {
		return nil, err
	}

	docType := opts.ForcedType
	if docType == "" {
		docType, err = p.detector.Detect(content)
		if err != nil {
			return nil, err
		}
	}

	result := &model.ValidationResult{DetectedDocumentType: string(docType)}
	result.AppliedXSD, result.AppliedXSDPath = p.schema.AppliedInfo(docType)
	result.AppliedRuleSet, result.AppliedRuleSetPath = p.schematron.AppliedInfo(docType)

	var schemaErrors []string
	var ruleErrors []model.RuleError

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		schemaErrors, err = p.schema.Validate(content, docType, resolved)
		return err
	})
	g.Go(func() error {
		var err error
		ruleErrors, err = p.schematron.Validate(content, docType, resolved)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scope := scopeSet(docType)
	keptSchema, suppressedSchema := profile.SuppressSchemaErrors(schemaErrors, resolved, scope)
	outcome := profile.SuppressRuleErrors(ruleErrors, resolved, scope)

	result.SchemaErrors = keptSchema
	result.RuleErrors = outcome.Kept
	result.ValidSchema = len(keptSchema) == 0
	result.ValidSchematron = len(outcome.Kept) == 0

	if resolved.Name != "" {
		info := &model.SuppressionInfo{
			Profile:          resolved.Name,
			TotalRawErrors:   len(schemaErrors) + len(ruleErrors),
			SuppressedCount:  len(suppressedSchema) + len(outcome.Suppressed),
			SuppressedErrors: outcome.Suppressed,
		}
		for _, msg := range suppressedSchema {
			info.SuppressedErrors = append(info.SuppressedErrors, model.RuleError{Message: msg})
		}
		result.Suppression = info

		p.log.Debug("suppression applied",
			zap.String("profile", resolved.Name),
			zap.String("documentType", string(docType)),
			zap.Int("raw", info.TotalRawErrors),
			zap.Int("suppressed", info.SuppressedCount))
	}

	return result, nil
}

// scopeSet lists the type names a suppression rule scope may name for this
// document: the document type itself plus its schema and rule-set families.
func scopeSet(docType model.DocumentType) map[string]bool {
	scope := map[string]bool{string(docType): true}
	if s, ok := model.SchemaTypeFor(docType); ok {
		scope[string(s)] = true
	}
	if r, ok := model.RuleSetTypeFor(docType); ok {
		scope[string(r)] = true
	}
	return scope
}
