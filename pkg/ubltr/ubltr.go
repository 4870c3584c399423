// Package ubltr provides a public API for validating and rendering GIB
// e-document families: e-Fatura, e-Arsiv and e-Defter.
//
// Example usage:
//
//	svc, err := ubltr.NewService(ubltr.Options{AssetsPath: "xslt-assets"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := svc.Validate(ctx, xmlBytes, "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.ValidSchema, result.ValidSchematron)
package ubltr

import "github.com/mersel/xslt-service/internal/model"

// Re-export core types for public API
type (
	DocumentType     = model.DocumentType
	TransformType    = model.TransformType
	ValidationResult = model.ValidationResult
	TransformResult  = model.TransformResult
	RuleError        = model.RuleError
	SuppressionInfo  = model.SuppressionInfo
	ReloadOutcome    = model.ReloadOutcome
)

// Re-export document types
const (
	DocInvoice             = model.DocInvoice
	DocCreditNote          = model.DocCreditNote
	DocDespatchAdvice      = model.DocDespatchAdvice
	DocReceiptAdvice       = model.DocReceiptAdvice
	DocApplicationResponse = model.DocApplicationResponse
	DocEArchiveReport      = model.DocEArchiveReport
	DocLedgerJournal       = model.DocLedgerJournal
	DocLedgerKebir         = model.DocLedgerKebir
	DocLedgerBerat         = model.DocLedgerBerat
	DocLedgerReport        = model.DocLedgerReport
	DocInventoryLedger     = model.DocInventoryLedger
	DocInventoryBerat      = model.DocInventoryBerat
)

// Re-export transform types
const (
	TransformInvoice        = model.TransformInvoice
	TransformArchiveInvoice = model.TransformArchiveInvoice
	TransformDespatchAdvice = model.TransformDespatchAdvice
	TransformReceiptAdvice  = model.TransformReceiptAdvice
	TransformEMM            = model.TransformEMM
	TransformECheck         = model.TransformECheck
)
