// Package syncer downloads GIB asset packages, stages them against the
// live asset store and walks each staged change through an approval
// workflow before promotion.
package syncer

// FileMapping routes extracted files matching a glob into a target
// directory under the asset root.
type FileMapping struct {
	Glob      string `json:"glob"`
	TargetDir string `json:"targetDir"`
}

// PackageDefinition describes one official GIB distribution package.
type PackageDefinition struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"displayName"`
	URL         string        `json:"url"`
	Mappings    []FileMapping `json:"-"`
}

// packageDefinitions is the fixed set of syncable upstream packages.
var packageDefinitions = []PackageDefinition{
	{
		ID:          "efatura",
		DisplayName: "e-Fatura Paketi (UBL-TR)",
		URL:         "https://ebelge.gib.gov.tr/dosyalar/efaturapaketi/e-FaturaPaketi.zip",
		Mappings: []FileMapping{
			{Glob: "**/*.xsd", TargetDir: "validator/ubl-tr-package/schema"},
			{Glob: "**/UBL-TR_Main_Schematron.xml", TargetDir: "validator/ubl-tr-package/schematron"},
			{Glob: "**/*.xslt", TargetDir: "xslt/gib/efatura"},
		},
	},
	{
		ID:          "ubltr-xsd",
		DisplayName: "UBL-TR XSD Paketi",
		URL:         "https://ebelge.gib.gov.tr/dosyalar/UBL-TR_1.2.1_Paketi.zip",
		Mappings: []FileMapping{
			{Glob: "**/maindoc/*.xsd", TargetDir: "validator/ubl-tr-package/schema/maindoc"},
			{Glob: "**/common/*.xsd", TargetDir: "validator/ubl-tr-package/schema/common"},
		},
	},
	{
		ID:          "earsiv",
		DisplayName: "e-Arsiv Paketi",
		URL:         "https://ebelge.gib.gov.tr/dosyalar/earsivpaketi/e-ArsivPaketi.zip",
		Mappings: []FileMapping{
			{Glob: "**/*.xsd", TargetDir: "validator/earchive/schema"},
			{Glob: "**/*.sch", TargetDir: "validator/earchive/schematron"},
			{Glob: "**/*.xslt", TargetDir: "xslt/gib/earsiv"},
		},
	},
	{
		ID:          "edefter",
		DisplayName: "e-Defter Paketi",
		URL:         "https://ebelge.gib.gov.tr/dosyalar/edefterpaketi/e-DefterPaketi.zip",
		Mappings: []FileMapping{
			{Glob: "**/*.xsd", TargetDir: "validator/eledger/schema"},
			{Glob: "**/*.sch", TargetDir: "validator/eledger/schematron"},
			{Glob: "**/*.xslt", TargetDir: "xslt/gib/edefter"},
		},
	},
}

// Packages returns the fixed package catalog.
func Packages() []PackageDefinition {
	out := make([]PackageDefinition, len(packageDefinitions))
	copy(out, packageDefinitions)
	return out
}

// PackageByID looks up a package definition.
func PackageByID(id string) (PackageDefinition, bool) {
	for _, p := range packageDefinitions {
		if p.ID == id {
			return p, true
		}
	}
	return PackageDefinition{}, false
}
