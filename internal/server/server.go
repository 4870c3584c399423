// Package server exposes the validation, transformation and asset
// administration HTTP API.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/config"
	"github.com/mersel/xslt-service/internal/model"
	"github.com/mersel/xslt-service/internal/processor"
	"github.com/mersel/xslt-service/internal/profile"
	"github.com/mersel/xslt-service/internal/syncer"
	"github.com/mersel/xslt-service/internal/transform"
)

// Server represents the HTTP API server
type Server struct {
	config   *config.Config
	router   *gin.Engine
	log      *zap.Logger
	auth     *Auth
	pipeline *processor.Pipeline
	engine   *transform.Engine
	profiles *profile.Store
	store    *assets.Store
	cache    *assets.Cache
	reloader *assets.Reloader
	syncer   *syncer.Orchestrator
	history  *syncer.History
}

// Deps are the wired components the server exposes over HTTP.
type Deps struct {
	Pipeline *processor.Pipeline
	Engine   *transform.Engine
	Profiles *profile.Store
	Store    *assets.Store
	Cache    *assets.Cache
	Reloader *assets.Reloader
	Syncer   *syncer.Orchestrator
	History  *syncer.History
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Deps, log *zap.Logger) *Server {
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config:   cfg,
		router:   router,
		log:      log.Named("server"),
		auth:     NewAuth(cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.TokenTTL.Std(), cfg.Admin.MaxLoginAttempts, log),
		pipeline: deps.Pipeline,
		engine:   deps.Engine,
		profiles: deps.Profiles,
		store:    deps.Store,
		cache:    deps.Cache,
		reloader: deps.Reloader,
		syncer:   deps.Syncer,
		history:  deps.History,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/v1")
	{
		v1.POST("/validate", s.handleValidate)
		v1.POST("/transform", s.handleTransform)

		auth := v1.Group("/auth")
		{
			auth.POST("/login", s.handleLogin)
			auth.POST("/logout", s.handleLogout)
			auth.GET("/check", s.handleAuthCheck)
		}

		admin := v1.Group("/admin", s.auth.Middleware())
		{
			admin.GET("/profiles", s.handleListProfiles)
			admin.GET("/profiles/:name", s.handleGetProfile)
			admin.PUT("/profiles/:name", s.handleSaveProfile)
			admin.DELETE("/profiles/:name", s.handleDeleteProfile)

			admin.GET("/schematron-rules", s.handleGetGlobalRules)
			admin.PUT("/schematron-rules", s.handleSaveGlobalRules)
			admin.DELETE("/schematron-rules", s.handleDeleteGlobalRules)

			admin.GET("/default-xslt/:type", s.handleGetDefaultTemplate)
			admin.PUT("/default-xslt/:type", s.handleSaveDefaultTemplate)
			admin.DELETE("/default-xslt/:type", s.handleDeleteDefaultTemplate)

			admin.GET("/packages", s.handleListPackages)
			admin.POST("/sync-preview", s.handleSyncAll)
			admin.POST("/sync-preview/:id", s.handleSyncOne)

			admin.GET("/asset-versions", s.handleListVersions)
			admin.GET("/asset-versions/pending", s.handlePendingVersions)
			admin.GET("/asset-versions/:id", s.handleGetVersion)
			admin.GET("/asset-versions/:id/diff", s.handleVersionDiff)
			admin.POST("/asset-versions/:id/approve", s.handleApprove)
			admin.POST("/asset-versions/:id/reject", s.handleReject)

			admin.POST("/assets/reload", s.handleReload)
		}
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Server.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout.Std(),
		WriteTimeout: s.config.Server.WriteTimeout.Std(),
	}
	s.log.Info("listening", zap.String("address", s.config.Server.Address))
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"assets": s.store.Inventory(),
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return
	}

	opts := processor.Options{Profile: c.Query("profile")}
	if forced := c.Query("ublSubType"); forced != "" {
		t, err := model.ParseDocumentType(forced)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		opts.ForcedType = t
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result, err := s.pipeline.Validate(ctx, body, opts)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTransform(c *gin.Context) {
	document, custom, err := transformPayload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if len(document) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty document"})
		return
	}

	transformType, err := model.ParseTransformType(c.DefaultQuery("transformType", string(model.TransformInvoice)))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	opts := transform.Options{
		Type:          transformType,
		Custom:        custom,
		UseEmbedded:   c.Query("useEmbeddedXslt") == "true",
		WatermarkText: c.Query("watermarkText"),
	}

	result, err := s.engine.Transform(document, opts)
	if err != nil {
		s.writeError(c, err)
		return
	}

	// Metadata travels in headers so the body stays pure rendered output.
	c.Header("X-Xslt-Default-Used", boolHeader(result.DefaultUsed))
	c.Header("X-Xslt-Embedded-Used", boolHeader(result.EmbeddedUsed))
	c.Header("X-Xslt-Watermark-Applied", boolHeader(result.WatermarkApplied))
	c.Header("X-Xslt-Duration-Ms", strconv.FormatInt(result.DurationMs, 10))
	c.Header("X-Xslt-Output-Size", strconv.Itoa(result.OutputSize))
	if result.CustomXSLTError != "" {
		c.Header("X-Xslt-Custom-Error", result.CustomXSLTError)
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", result.Output)
}

// transformPayload reads the document and optional custom template: either
// a raw XML body, or a multipart form with "document" and "xslt" parts.
func transformPayload(c *gin.Context) (document, custom []byte, err error) {
	if form, formErr := c.MultipartForm(); formErr == nil && form != nil {
		document, err = formFile(c, "document")
		if err != nil {
			return nil, nil, err
		}
		custom, _ = formFile(c, "xslt")
		return document, custom, nil
	}

	document, err = c.GetRawData()
	if err != nil {
		return nil, nil, errors.New("failed to read request body")
	}
	return document, nil, nil
}

func formFile(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, errors.New("missing form file " + field)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username and password are required"})
		return
	}

	token, expiry, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, errLockedOut) {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiry})
}

func (s *Server) handleLogout(c *gin.Context) {
	if token := bearerToken(c); token != "" {
		s.auth.Logout(token)
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (s *Server) handleAuthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"valid": s.auth.Check(bearerToken(c))})
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	var detectionErr *model.DetectionError
	var profileErr *model.ProfileError
	var assetErr *model.AssetError
	var syncErr *model.SyncError

	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrSyncInProgress), errors.Is(err, model.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.As(err, &detectionErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.As(err, &profileErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	case errors.As(err, &assetErr):
		s.log.Error("asset fault", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	case errors.As(err, &syncErr):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	default:
		s.log.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func boolHeader(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
