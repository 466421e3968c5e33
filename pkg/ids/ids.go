// Package ids generates the short prefixed record codes used as primary keys
// (for example PAT-3F9A1C).
package ids

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

const (
	PrefixPatient      = "PAT"
	PrefixDoctor       = "DOC"
	PrefixUser         = "USR"
	PrefixDepartment   = "DEPT"
	PrefixVisit        = "VIS"
	PrefixDiagnosis    = "DX"
	PrefixPrescription = "RX"
	PrefixBill         = "BILL"
	PrefixBillService  = "SVC"
	PrefixMedicalSvc   = "MSV"
)

// New returns prefix-XXXXXX where XXXXXX is six upper-case hex characters
// taken from a random UUID.
func New(prefix string) string {
	u := uuid.New()
	return prefix + "-" + strings.ToUpper(hex.EncodeToString(u[:3]))
}

// OrNew returns id unless it is blank, in which case a fresh code is generated.
func OrNew(id, prefix string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return New(prefix)
}

// InvoiceNumber renders the display number of a bill: BILL-XXXXXX becomes
// INV-XXXXXX. Other codes are returned unchanged.
func InvoiceNumber(billID string) string {
	if strings.HasPrefix(billID, PrefixBill+"-") {
		return "INV-" + strings.TrimPrefix(billID, PrefixBill+"-")
	}
	return billID
}

// BillIDFromInvoice reverses InvoiceNumber.
func BillIDFromInvoice(invoice string) string {
	if strings.HasPrefix(invoice, "INV-") {
		return PrefixBill + "-" + strings.TrimPrefix(invoice, "INV-")
	}
	return invoice
}
