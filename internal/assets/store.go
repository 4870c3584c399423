// Package assets manages the on-disk Asset Store and its in-memory cache.
//
// The store root holds live schema, rule-set and template files organized by
// document family, plus the profile file, the staging area and the version
// history. All files arrive either through an approved package sync or by
// manual curation; readers only ever see a complete generation.
package assets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mersel/xslt-service/internal/model"
)

// Well-known store subdirectories.
const (
	StagingDir   = "staging"
	HistoryDir   = "history"
	SnapshotsDir = "history/snapshots"

	ProfilesFile = "validation-profiles.yml"
)

// Store resolves and reads files under the asset root directory.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir, creating it when absent.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("asset store: empty root directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("asset store: create root: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute asset root directory.
func (s *Store) Root() string { return s.root }

// Resolve maps a relative asset path onto the filesystem, rejecting
// traversal outside the root.
func (s *Store) Resolve(rel string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(rel))
	clean := filepath.Clean(p)
	if clean != s.root && !strings.HasPrefix(clean, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("asset store: path escapes root: %s", rel)
	}
	return clean, nil
}

// Read returns the contents of one asset file.
func (s *Store) Read(rel string) ([]byte, error) {
	p, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, model.NewAssetError("", rel, "read failed", err)
	}
	return data, nil
}

// Exists reports whether the asset file is present.
func (s *Store) Exists(rel string) bool {
	p, err := s.Resolve(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Write stores an asset file, creating parent directories as needed.
func (s *Store) Write(rel string, data []byte) error {
	p, err := s.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// Remove deletes an asset file. Missing files are not an error.
func (s *Store) Remove(rel string) error {
	p, err := s.Resolve(rel)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ListFiles walks a subdirectory and returns sorted slash-separated paths
// relative to that subdirectory. A missing directory yields an empty list.
func (s *Store) ListFiles(rel string) ([]string, error) {
	dir, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}
	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.Type().IsRegular() {
			r, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(r))
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ── Asset path conventions ──────────────────────────────────────────

var schemaPaths = map[model.SchemaType]string{
	model.SchemaInvoice:             "validator/ubl-tr-package/schema/maindoc/UBL-Invoice-2.1.xsd",
	model.SchemaDespatchAdvice:      "validator/ubl-tr-package/schema/maindoc/UBL-DespatchAdvice-2.1.xsd",
	model.SchemaReceiptAdvice:       "validator/ubl-tr-package/schema/maindoc/UBL-ReceiptAdvice-2.1.xsd",
	model.SchemaCreditNote:          "validator/ubl-tr-package/schema/maindoc/UBL-CreditNote-2.1.xsd",
	model.SchemaApplicationResponse: "validator/ubl-tr-package/schema/maindoc/UBL-ApplicationResponse-2.1.xsd",
	model.SchemaEArchive:            "validator/earchive/schema/eArsivRaporu.xsd",
	model.SchemaELedger:             "validator/eledger/schema/edefter.xsd",
}

var ruleSetPaths = map[model.RuleSetType]string{
	model.RulesUBLTRMain:       "validator/ubl-tr-package/schematron/UBL-TR_Main_Schematron.xml",
	model.RulesEArchiveReport:  "validator/earchive/schematron/eArsivRaporu.sch",
	model.RulesLedgerJournal:   "validator/eledger/schematron/yevmiye.sch",
	model.RulesLedgerKebir:     "validator/eledger/schematron/kebir.sch",
	model.RulesLedgerBerat:     "validator/eledger/schematron/berat.sch",
	model.RulesLedgerReport:    "validator/eledger/schematron/defterRaporu.sch",
	model.RulesInventoryBerat:  "validator/eledger/schematron/envanterBerat.sch",
	model.RulesInventoryLedger: "validator/eledger/schematron/envanterDefter.sch",
}

// SchemaPath returns the live schema file path for a schema family.
func SchemaPath(t model.SchemaType) (string, bool) {
	p, ok := schemaPaths[t]
	return p, ok
}

// RuleSetPath returns the live rule-set file path for a rule-set family.
func RuleSetPath(t model.RuleSetType) (string, bool) {
	p, ok := ruleSetPaths[t]
	return p, ok
}

// TemplatePath returns the default template file path for a transform type.
func TemplatePath(t model.TransformType) string {
	return "xslt/default/" + string(t) + ".xslt"
}

var templateTypes = []model.TransformType{
	model.TransformInvoice,
	model.TransformArchiveInvoice,
	model.TransformDespatchAdvice,
	model.TransformReceiptAdvice,
	model.TransformEMM,
	model.TransformECheck,
}

// KindInventory counts the well-known files of one asset kind that are
// present on disk.
type KindInventory struct {
	Present  int      `json:"present"`
	Expected int      `json:"expected"`
	Missing  []string `json:"missing,omitempty"`
}

// Inventory reports which well-known asset files the store currently
// holds, per kind. Missing entries are listed by family name so an
// operator can see at a glance what an empty health report refers to.
type Inventory struct {
	Schemas      KindInventory `json:"schemas"`
	RuleSets     KindInventory `json:"ruleSets"`
	Templates    KindInventory `json:"templates"`
	ProfilesFile bool          `json:"profilesFile"`
}

// Inventory scans the store for the well-known schema, rule-set and
// template files.
func (s *Store) Inventory() Inventory {
	var inv Inventory

	for t, p := range schemaPaths {
		inv.Schemas.Expected++
		if s.Exists(p) {
			inv.Schemas.Present++
		} else {
			inv.Schemas.Missing = append(inv.Schemas.Missing, string(t))
		}
	}
	for t, p := range ruleSetPaths {
		inv.RuleSets.Expected++
		if s.Exists(p) {
			inv.RuleSets.Present++
		} else {
			inv.RuleSets.Missing = append(inv.RuleSets.Missing, string(t))
		}
	}
	for _, t := range templateTypes {
		inv.Templates.Expected++
		if s.Exists(TemplatePath(t)) {
			inv.Templates.Present++
		} else {
			inv.Templates.Missing = append(inv.Templates.Missing, string(t))
		}
	}
	sort.Strings(inv.Schemas.Missing)
	sort.Strings(inv.RuleSets.Missing)
	sort.Strings(inv.Templates.Missing)

	inv.ProfilesFile = s.Exists(ProfilesFile)
	return inv
}

// KindDir returns the store subtree holding files of the given kind, used
// by reload scoping after a package promotion.
func KindDir(kind model.AssetKind) string {
	switch kind {
	case model.KindSchema:
		return "validator"
	case model.KindRuleSet:
		return "validator"
	case model.KindTemplate:
		return "xslt"
	case model.KindProfile:
		return ProfilesFile
	}
	return ""
}
