// Package detect classifies incoming XML documents into document types.
package detect

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/mersel/xslt-service/internal/model"
)

// Namespace signals used for classification.
const (
	nsUBLPrefix = "urn:oasis:names:specification:ubl:schema:xsd:"
	nsEArchive  = "http://earsiv.efatura.gov.tr"
	nsELedger   = "http://www.edefter.gov.tr"
)

// xbrli context ids distinguishing ledger book variants. The authority
// publishes both the ledger berat and the inventory berat under the same
// edefter:berat root, so the root element alone is not enough.
const (
	contextJournal = "journal_context"
	contextLedger  = "ledger_context"
	contextAssets  = "assets_context"
)

var ublRoots = map[string]model.DocumentType{
	"Invoice":             model.DocInvoice,
	"CreditNote":          model.DocCreditNote,
	"DespatchAdvice":      model.DocDespatchAdvice,
	"ReceiptAdvice":       model.DocReceiptAdvice,
	"ApplicationResponse": model.DocApplicationResponse,
}

// Detector classifies raw document bytes into one DocumentType. It is a
// pure function of the input and safe for concurrent use.
type Detector struct{}

// NewDetector creates a detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect inspects the root element namespace, prefix and local name, and for
// ledger books the xbrli context id, returning the matching document type.
// Unrecognized input yields a DetectionError, never a panic.
func (d *Detector) Detect(content []byte) (model.DocumentType, error) {
	if len(content) == 0 {
		return "", model.NewDetectionError("", "", "empty document")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return "", &model.DetectionError{Message: "malformed XML", Cause: err}
	}

	root := doc.Root()
	if root == nil {
		return "", model.NewDetectionError("", "", "document has no root element")
	}

	ns := root.NamespaceURI()
	prefix := root.Space
	local := root.Tag

	// UBL-TR family: document type follows the root element name.
	if strings.HasPrefix(ns, nsUBLPrefix) {
		if t, ok := ublRoots[local]; ok {
			return t, nil
		}
		return "", model.NewDetectionError(ns, local, "unrecognized UBL root element")
	}

	// e-archive report.
	if ns == nsEArchive {
		return model.DocEArchiveReport, nil
	}

	// e-ledger / e-inventory share a namespace; the prefix tells them apart.
	if ns == nsELedger {
		switch prefix {
		case "edefter":
			return detectLedger(root, local)
		case "envanter":
			switch local {
			case "defter":
				return model.DocInventoryLedger, nil
			case "berat":
				return model.DocInventoryBerat, nil
			}
		}
		return "", model.NewDetectionError(ns, local, "unrecognized ledger root element")
	}

	return "", model.NewDetectionError(ns, local, "unrecognized namespace or root element")
}

func detectLedger(root *etree.Element, local string) (model.DocumentType, error) {
	switch local {
	case "defterRaporu":
		return model.DocLedgerReport, nil
	case "defter":
		switch findContextID(root) {
		case contextJournal:
			return model.DocLedgerJournal, nil
		case contextLedger:
			return model.DocLedgerKebir, nil
		}
	case "berat":
		switch findContextID(root) {
		case contextAssets:
			return model.DocInventoryBerat, nil
		case contextJournal, contextLedger:
			return model.DocLedgerBerat, nil
		}
	}
	return "", model.NewDetectionError(nsELedger, local, "ledger document without a recognized context id")
}

// findContextID returns the id attribute of the first xbrli context element.
func findContextID(el *etree.Element) string {
	if el.Tag == "context" {
		return el.SelectAttrValue("id", "")
	}
	for _, child := range el.ChildElements() {
		if id := findContextID(child); id != "" {
			return id
		}
	}
	return ""
}
