package receipt

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is the canonical representation of a fiscal check, independent
// of which operator issued it. A Receipt is built exactly once by a
// parser and never mutated afterwards.
type Receipt struct {
	// Header
	CompanyName    string `json:"company_name"`
	CertificateVAT string `json:"certificate_vat,omitempty"`
	TaxID          string `json:"tax_id"` // ИИН/БИН of the company
	CompanyAddress string `json:"company_address"`
	SerialNumber   string `json:"serial_number"`    // ЗНМ, device serial
	RegistrationID string `json:"registration_id"`  // РНМ, tax authority registration

	// Provenance
	DateTime   time.Time     `json:"date_time"`
	FiscalSign string        `json:"fiscal_sign"` // dedup key downstream
	Operator   Operator      `json:"operator"`
	Operation  OperationType `json:"operation"`

	// Body
	Items []Item `json:"items"`
	URL   string `json:"url"` // scanned URL, kept verbatim

	// Taxes
	TaxType string           `json:"tax_type,omitempty"`
	TaxSum  *decimal.Decimal `json:"tax_sum,omitempty"`

	// Settlement
	Taken    *decimal.Decimal `json:"taken,omitempty"`
	Change   *decimal.Decimal `json:"change,omitempty"`
	Payments []Payment        `json:"payments"`
	TotalSum decimal.Decimal  `json:"total_sum"`
}

// Item is one purchased line on a receipt.
type Item struct {
	Barcode  string           `json:"barcode,omitempty"`
	CodeMark string           `json:"code_mark,omitempty"` // excise stamp
	Name     string           `json:"name"`
	Count    decimal.Decimal  `json:"count"`
	Price    decimal.Decimal  `json:"price"`
	Unit     Unit             `json:"unit"`
	Sum      decimal.Decimal  `json:"sum"`
	TaxType  string           `json:"tax_type,omitempty"`
	TaxSum   *decimal.Decimal `json:"tax_sum,omitempty"`
}

// Payment is one payment instrument used to settle a receipt. Payments
// need not sum exactly to TotalSum; upstream rounding is kept as-is.
type Payment struct {
	Type PaymentType     `json:"type"`
	Sum  decimal.Decimal `json:"sum"`
}

// Operator identifies the fiscal data operator a receipt came from.
type Operator string

const (
	OperatorKazakhtelecom Operator = "1"
	OperatorTranstelecom  Operator = "2"
	OperatorJusan         Operator = "3"
)

// Name returns the operator display name in the given language
// ("ru", "kk" or "en"; anything else falls back to English).
func (o Operator) Name(language string) string {
	switch o {
	case OperatorKazakhtelecom:
		if language == "kk" {
			return "Қазақтелеком"
		}
		if language == "ru" {
			return "Казахтелеком"
		}
		return "Kazakhtelecom"
	case OperatorTranstelecom:
		return "Transtelecom"
	case OperatorJusan:
		if language == "ru" || language == "kk" {
			return "Джусан Мобайл"
		}
		return "JUSAN Mobile"
	}
	return "Unknown"
}
