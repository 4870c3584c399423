package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"

	// Global flags
	configPath string
	assetsPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "xslt-service",
	Short: "Validate and render GIB e-documents (e-Fatura, e-Arsiv, e-Defter)",
	Long: `xslt-service validates Turkish GIB e-documents against their XSD schemas
and Schematron rule sets, and renders them to HTML.

Supports:
  - UBL-TR documents: Invoice, CreditNote, DespatchAdvice, ReceiptAdvice, ApplicationResponse
  - e-Arsiv reports
  - e-Defter ledgers (yevmiye, kebir, berat, envanter)

Examples:
  # Validate a document
  xslt-service validate invoice.xml

  # Validate with a suppression profile
  xslt-service validate invoice.xml --profile acme

  # Render a document to HTML
  xslt-service transform invoice.xml -o invoice.html

  # Start the HTTP API server
  xslt-service serve --config config.yml

  # Stage the official GIB packages for review
  xslt-service sync`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (env: XSLT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&assetsPath, "assets", "", "Asset store directory (env: XSLT_ASSETS_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if configPath == "" {
		configPath = os.Getenv("XSLT_CONFIG")
	}
	if assetsPath == "" {
		assetsPath = os.Getenv("XSLT_ASSETS_PATH")
	}
}
