package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mersel/xslt-service/internal/logging"
	"github.com/mersel/xslt-service/internal/syncer"
)

var (
	syncPackage string
	syncApprove bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Stage the official GIB asset packages",
	Long: `Download the official GIB packages, stage them against the live asset
store and print the resulting diff. Nothing goes live until a staged
version is approved.

Examples:
  # Stage every package
  xslt-service sync

  # Stage one package
  xslt-service sync --package efatura

  # Stage and immediately approve (non-interactive deployments)
  xslt-service sync --package efatura --approve`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncPackage, "package", "", "Sync only this package id")
	syncCmd.Flags().BoolVar(&syncApprove, "approve", false, "Approve staged versions without review")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, verbose)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	deps, cleanup, err := wire(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()

	var results []syncer.PackageSyncResult
	if syncPackage != "" {
		res := syncer.PackageSyncResult{PackageID: syncPackage}
		preview, err := deps.Syncer.Preview(ctx, syncPackage)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Preview = preview
		}
		results = append(results, res)
	} else {
		results = deps.Syncer.SyncAll(ctx)
	}

	failed := false
	for _, res := range results {
		if res.Error != "" {
			failed = true
			fmt.Printf("✗ %s: %s\n", res.PackageID, res.Error)
			continue
		}
		v := res.Preview.Version
		fmt.Printf("✓ %s: staged version %s (+%d -%d ~%d =%d)\n",
			res.PackageID, v.ID, v.Files.Added, v.Files.Removed, v.Files.Modified, v.Files.Unchanged)
		for _, w := range res.Preview.Warnings {
			fmt.Printf("  ⚠ [%s] %s\n", w.Severity, w.Message)
		}

		if syncApprove {
			applied, err := deps.Syncer.Approve(v.ID)
			if err != nil {
				failed = true
				fmt.Printf("  ✗ approve failed: %v\n", err)
				continue
			}
			fmt.Printf("  ✓ applied at %s\n", applied.AppliedAt.Format("2006-01-02 15:04:05"))
		}
	}

	if verbose {
		encoder := json.NewEncoder(os.Stderr)
		encoder.SetIndent("", "  ")
		encoder.Encode(results) //nolint:errcheck
	}

	if failed {
		return fmt.Errorf("sync failed for some packages")
	}
	return nil
}
