package model

import "fmt"

// DocumentType identifies an automatically detected XML document kind.
type DocumentType string

const (
	// UBL-TR document types
	DocInvoice             DocumentType = "INVOICE"
	DocCreditNote          DocumentType = "CREDIT_NOTE"
	DocDespatchAdvice      DocumentType = "DESPATCH_ADVICE"
	DocReceiptAdvice       DocumentType = "RECEIPT_ADVICE"
	DocApplicationResponse DocumentType = "APPLICATION_RESPONSE"

	// e-archive
	DocEArchiveReport DocumentType = "EARCHIVE_REPORT"

	// e-ledger
	DocLedgerJournal DocumentType = "EDEFTER_YEVMIYE"
	DocLedgerKebir   DocumentType = "EDEFTER_KEBIR"
	DocLedgerBerat   DocumentType = "EDEFTER_BERAT"
	DocLedgerReport  DocumentType = "EDEFTER_RAPOR"

	// e-inventory
	DocInventoryLedger DocumentType = "ENVANTER_DEFTER"
	DocInventoryBerat  DocumentType = "ENVANTER_BERAT"
)

func (d DocumentType) String() string { return string(d) }

// ParseDocumentType converts a request string into a DocumentType.
func ParseDocumentType(s string) (DocumentType, error) {
	switch DocumentType(s) {
	case DocInvoice, DocCreditNote, DocDespatchAdvice, DocReceiptAdvice,
		DocApplicationResponse, DocEArchiveReport,
		DocLedgerJournal, DocLedgerKebir, DocLedgerBerat, DocLedgerReport,
		DocInventoryLedger, DocInventoryBerat:
		return DocumentType(s), nil
	}
	return "", fmt.Errorf("unknown document type: %q", s)
}

// SchemaType identifies which XSD schema family validates a document.
type SchemaType string

const (
	SchemaInvoice             SchemaType = "INVOICE"
	SchemaDespatchAdvice      SchemaType = "DESPATCH_ADVICE"
	SchemaReceiptAdvice       SchemaType = "RECEIPT_ADVICE"
	SchemaCreditNote          SchemaType = "CREDIT_NOTE"
	SchemaApplicationResponse SchemaType = "APPLICATION_RESPONSE"
	SchemaEArchive            SchemaType = "EARCHIVE"
	SchemaELedger             SchemaType = "EDEFTER"
)

func (s SchemaType) String() string { return string(s) }

// RuleSetType identifies which Schematron rule set validates a document.
type RuleSetType string

const (
	RulesUBLTRMain       RuleSetType = "UBLTR_MAIN"
	RulesEArchiveReport  RuleSetType = "EARCHIVE_REPORT"
	RulesLedgerJournal   RuleSetType = "EDEFTER_YEVMIYE"
	RulesLedgerKebir     RuleSetType = "EDEFTER_KEBIR"
	RulesLedgerBerat     RuleSetType = "EDEFTER_BERAT"
	RulesLedgerReport    RuleSetType = "EDEFTER_RAPOR"
	RulesInventoryBerat  RuleSetType = "ENVANTER_BERAT"
	RulesInventoryLedger RuleSetType = "ENVANTER_DEFTER"
)

func (r RuleSetType) String() string { return string(r) }

// TransformType identifies which default template renders a document.
type TransformType string

const (
	TransformInvoice        TransformType = "INVOICE"
	TransformArchiveInvoice TransformType = "ARCHIVE_INVOICE"
	TransformDespatchAdvice TransformType = "DESPATCH_ADVICE"
	TransformReceiptAdvice  TransformType = "RECEIPT_ADVICE"
	TransformEMM            TransformType = "EMM"
	TransformECheck         TransformType = "ECHECK"
)

func (t TransformType) String() string { return string(t) }

// ParseTransformType converts a request string into a TransformType.
func ParseTransformType(s string) (TransformType, error) {
	switch TransformType(s) {
	case TransformInvoice, TransformArchiveInvoice, TransformDespatchAdvice,
		TransformReceiptAdvice, TransformEMM, TransformECheck:
		return TransformType(s), nil
	}
	return "", fmt.Errorf("unknown transform type: %q", s)
}

// schemaMap maps each document type to its schema family.
var schemaMap = map[DocumentType]SchemaType{
	DocInvoice:             SchemaInvoice,
	DocCreditNote:          SchemaCreditNote,
	DocDespatchAdvice:      SchemaDespatchAdvice,
	DocReceiptAdvice:       SchemaReceiptAdvice,
	DocApplicationResponse: SchemaApplicationResponse,
	DocEArchiveReport:      SchemaEArchive,
	DocLedgerJournal:       SchemaELedger,
	DocLedgerKebir:         SchemaELedger,
	DocLedgerBerat:         SchemaELedger,
	DocLedgerReport:        SchemaELedger,
	DocInventoryLedger:     SchemaELedger,
	DocInventoryBerat:      SchemaELedger,
}

// ruleSetMap maps each document type to its Schematron rule set.
var ruleSetMap = map[DocumentType]RuleSetType{
	DocInvoice:             RulesUBLTRMain,
	DocCreditNote:          RulesUBLTRMain,
	DocDespatchAdvice:      RulesUBLTRMain,
	DocReceiptAdvice:       RulesUBLTRMain,
	DocApplicationResponse: RulesUBLTRMain,
	DocEArchiveReport:      RulesEArchiveReport,
	DocLedgerJournal:       RulesLedgerJournal,
	DocLedgerKebir:         RulesLedgerKebir,
	DocLedgerBerat:         RulesLedgerBerat,
	DocLedgerReport:        RulesLedgerReport,
	DocInventoryLedger:     RulesInventoryLedger,
	DocInventoryBerat:      RulesInventoryBerat,
}

// SchemaTypeFor returns the schema family validating the given document type.
func SchemaTypeFor(d DocumentType) (SchemaType, bool) {
	s, ok := schemaMap[d]
	return s, ok
}

// RuleSetTypeFor returns the rule set validating the given document type.
func RuleSetTypeFor(d DocumentType) (RuleSetType, bool) {
	r, ok := ruleSetMap[d]
	return r, ok
}

// AssetKind partitions the Asset Store by the kind of file it holds.
type AssetKind string

const (
	KindSchema   AssetKind = "schema"
	KindRuleSet  AssetKind = "schematron"
	KindTemplate AssetKind = "xslt"
	KindProfile  AssetKind = "profiles"
)

func (k AssetKind) String() string { return string(k) }
