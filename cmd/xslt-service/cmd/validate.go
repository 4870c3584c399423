package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mersel/xslt-service/internal/model"
	"github.com/mersel/xslt-service/pkg/ubltr"
)

var (
	validateProfile string
	outputFormat    string
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate GIB e-document files",
	Long: `Validate one or more documents against their XSD schema and Schematron
rule set. The document type is detected from namespaces automatically.

Examples:
  xslt-service validate invoice.xml
  xslt-service validate *.xml --profile acme
  xslt-service validate invoice.xml -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateProfile, "profile", "", "Suppression profile to apply")
	validateCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "Output format (json, table)")
}

// FileValidation holds the result of validating a single file
type FileValidation struct {
	File   string                  `json:"file"`
	Error  string                  `json:"error,omitempty"`
	Result *model.ValidationResult `json:"result,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to validate")
	}

	svc, err := newService()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	results := make([]*FileValidation, 0, len(files))
	allValid := true
	for _, file := range files {
		fv := &FileValidation{File: file}
		results = append(results, fv)

		data, err := os.ReadFile(file)
		if err != nil {
			fv.Error = err.Error()
			allValid = false
			continue
		}
		result, err := svc.Validate(ctx, data, validateProfile)
		if err != nil {
			fv.Error = err.Error()
			allValid = false
			continue
		}
		fv.Result = result
		if !result.ValidSchema || !result.ValidSchematron {
			allValid = false
		}
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			return err
		}
	} else {
		printValidationTable(results)
	}

	if !allValid {
		return fmt.Errorf("validation failed for some files")
	}
	return nil
}

func printValidationTable(results []*FileValidation) {
	for _, r := range results {
		if r.Error != "" {
			fmt.Printf("✗ %s: ERROR: %s\n", r.File, r.Error)
			continue
		}
		res := r.Result
		if res.ValidSchema && res.ValidSchematron {
			fmt.Printf("✓ %s: VALID (%s)\n", r.File, res.DetectedDocumentType)
		} else {
			fmt.Printf("✗ %s: INVALID (%s)\n", r.File, res.DetectedDocumentType)
			for _, e := range res.SchemaErrors {
				fmt.Printf("  - schema: %s\n", e)
			}
			for _, e := range res.RuleErrors {
				fmt.Printf("  - %s: %s\n", e.RuleID, e.Message)
			}
		}
		if res.Suppression != nil && res.Suppression.SuppressedCount > 0 {
			fmt.Printf("  ⚠ %d error(s) suppressed by profile %s\n",
				res.Suppression.SuppressedCount, res.Suppression.Profile)
		}
	}
}

func newService() (*ubltr.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	opts := ubltr.Options{
		AssetsPath:     cfg.Assets.Path,
		CacheTTL:       cfg.Assets.CacheTTL.Std(),
		WatermarkCount: cfg.Transform.WatermarkCount,
	}
	if verbose {
		log, err := newVerboseLogger()
		if err != nil {
			return nil, err
		}
		opts.Logger = log
	}
	return ubltr.NewService(opts)
}

func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, err
		}
		if matches == nil {
			matches = []string{arg}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, err
			}
			if info.Mode().IsRegular() {
				files = append(files, m)
			}
		}
	}
	return files, nil
}
