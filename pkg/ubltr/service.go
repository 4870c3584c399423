package ubltr

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/detect"
	"github.com/mersel/xslt-service/internal/processor"
	"github.com/mersel/xslt-service/internal/profile"
	"github.com/mersel/xslt-service/internal/schema"
	"github.com/mersel/xslt-service/internal/schematron"
	"github.com/mersel/xslt-service/internal/transform"
)

// Options configure an embedded Service.
type Options struct {
	// AssetsPath is the root directory holding schemas, rule sets,
	// templates and the profile file.
	AssetsPath string

	// CacheTTL bounds how long compiled assets are reused. Zero means
	// 15 minutes.
	CacheTTL time.Duration

	// WatermarkCount is how many watermark column pairs Transform
	// overlays. Zero means 3.
	WatermarkCount int

	// Logger receives structured logs; nil discards them.
	Logger *zap.Logger
}

// DefaultOptions returns the options used when none are supplied.
func DefaultOptions() Options {
	return Options{
		AssetsPath:     "xslt-assets",
		CacheTTL:       15 * time.Minute,
		WatermarkCount: 3,
	}
}

// TransformOptions tune one Transform call.
type TransformOptions struct {
	Type          TransformType
	CustomXSLT    []byte
	UseEmbedded   bool
	WatermarkText string
}

// Service is the embeddable validation and rendering engine, for callers
// who want the document pipeline without the HTTP server around it.
type Service struct {
	store    *assets.Store
	cache    *assets.Cache
	profiles *profile.Store
	pipeline *processor.Pipeline
	engine   *transform.Engine
	reloader *assets.Reloader
	detector *detect.Detector
}

// NewService builds a service rooted at the given asset directory.
func NewService(opts Options) (*Service, error) {
	if opts.AssetsPath == "" {
		opts.AssetsPath = "xslt-assets"
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 15 * time.Minute
	}
	if opts.WatermarkCount <= 0 {
		opts.WatermarkCount = 3
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	store, err := assets.NewStore(opts.AssetsPath)
	if err != nil {
		return nil, err
	}
	cache := assets.NewCache(opts.CacheTTL)

	profiles := profile.NewStore(store, log)
	detector := detect.NewDetector()
	schemaValidator := schema.NewValidator(store, cache, log)
	ruleValidator := schematron.NewValidator(store, cache, profiles, log)
	engine := transform.NewEngine(store, cache, opts.WatermarkCount, log)

	reloader := assets.NewReloader(log)
	reloader.Register(profiles)
	reloader.Register(schemaValidator)
	reloader.Register(ruleValidator)
	reloader.Register(engine)

	if res := profiles.Reload(); len(res.Errors) > 0 {
		log.Warn("profile load reported errors", zap.Strings("errors", res.Errors))
	}

	return &Service{
		store:    store,
		cache:    cache,
		profiles: profiles,
		pipeline: processor.NewPipeline(detector, schemaValidator, ruleValidator, profiles, log),
		engine:   engine,
		reloader: reloader,
		detector: detector,
	}, nil
}

// NewDefaultService creates a service with default options.
func NewDefaultService() (*Service, error) {
	return NewService(DefaultOptions())
}

// DetectType returns the document type of raw XML content.
func (s *Service) DetectType(content []byte) (DocumentType, error) {
	return s.detector.Detect(content)
}

// Validate runs schema and rule validation with the named suppression
// profile; an empty name applies no profile.
func (s *Service) Validate(ctx context.Context, content []byte, profileName string) (*ValidationResult, error) {
	return s.pipeline.Validate(ctx, content, processor.Options{Profile: profileName})
}

// Transform renders a document to HTML.
func (s *Service) Transform(content []byte, opts TransformOptions) (*TransformResult, error) {
	if opts.Type == "" {
		opts.Type = TransformInvoice
	}
	return s.engine.Transform(content, transform.Options{
		Type:          opts.Type,
		Custom:        opts.CustomXSLT,
		UseEmbedded:   opts.UseEmbedded,
		WatermarkText: opts.WatermarkText,
	})
}

// Reload drops all compiled asset state and rebuilds it from disk.
func (s *Service) Reload() (ReloadOutcome, error) {
	return s.reloader.ReloadAll()
}
