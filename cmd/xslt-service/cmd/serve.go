package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/config"
	"github.com/mersel/xslt-service/internal/detect"
	"github.com/mersel/xslt-service/internal/logging"
	"github.com/mersel/xslt-service/internal/processor"
	"github.com/mersel/xslt-service/internal/profile"
	"github.com/mersel/xslt-service/internal/schema"
	"github.com/mersel/xslt-service/internal/schematron"
	"github.com/mersel/xslt-service/internal/server"
	"github.com/mersel/xslt-service/internal/syncer"
	"github.com/mersel/xslt-service/internal/transform"
)

var (
	serverAddr  string
	serverDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the validation and transformation HTTP API.

The API provides endpoints for:
  - POST /v1/validate           - Validate a document (schema + rules)
  - POST /v1/transform          - Render a document to HTML
  - POST /v1/auth/login         - Obtain an admin bearer token
  - /v1/admin/...               - Profiles, templates, package sync, reload
  - GET  /health                - Health check

Examples:
  # Start with defaults
  xslt-service serve

  # Start with a config file
  xslt-service serve --config config.yml

  # Start in debug mode on a custom port
  xslt-service serve --address :9090 --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serverAddr != "" {
		cfg.Server.Address = serverAddr
	}
	if serverDebug {
		cfg.Server.Debug = true
	}

	log, err := logging.New(cfg.LogLevel, cfg.Server.Debug)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	deps, cleanup, err := wire(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.NewServer(cfg, deps, log)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down")
		cleanup()
		os.Exit(0)
	}()

	fmt.Printf("Starting server on %s\n", cfg.Server.Address)
	return srv.Run()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if assetsPath != "" {
		cfg.Assets.Path = assetsPath
	}
	return cfg, nil
}

// wire assembles the component graph every command shares: the asset
// store, caches, validators, transform engine and sync workflow.
func wire(cfg *config.Config, log *zap.Logger) (server.Deps, func(), error) {
	store, err := assets.NewStore(cfg.Assets.Path)
	if err != nil {
		return server.Deps{}, nil, err
	}
	cache := assets.NewCache(cfg.Assets.CacheTTL.Std())

	profiles := profile.NewStore(store, log)
	detector := detect.NewDetector()
	schemaValidator := schema.NewValidator(store, cache, log)
	ruleValidator := schematron.NewValidator(store, cache, profiles, log)
	engine := transform.NewEngine(store, cache, cfg.Transform.WatermarkCount, log)
	pipeline := processor.NewPipeline(detector, schemaValidator, ruleValidator, profiles, log)

	reloader := assets.NewReloader(log)
	reloader.Register(profiles)
	reloader.Register(schemaValidator)
	reloader.Register(ruleValidator)
	reloader.Register(engine)

	if res := profiles.Reload(); len(res.Errors) > 0 {
		log.Warn("profile load reported errors", zap.Strings("errors", res.Errors))
	}

	history, err := syncer.OpenHistory(store)
	if err != nil {
		return server.Deps{}, nil, err
	}

	downloader := syncer.NewDownloader(cfg.Sync.PackageTimeout.Std())
	orchestrator := syncer.NewOrchestrator(store, profiles, cache, downloader, history, reloader, log)

	deps := server.Deps{
		Pipeline: pipeline,
		Engine:   engine,
		Profiles: profiles,
		Store:    store,
		Cache:    cache,
		Reloader: reloader,
		Syncer:   orchestrator,
		History:  history,
	}
	cleanup := func() { history.Close() } //nolint:errcheck
	return deps, cleanup, nil
}
