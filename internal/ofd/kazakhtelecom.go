package ofd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abeknur/ofd-check/internal/receipt"
)

const kazakhtelecomAPIBase = "https://consumer.oofd.kz/api/tickets"

// Kazakhtelecom handles consumer.oofd.kz checks: a structured JSON API
// reached through one redirect that the transport cannot follow on its
// own. The Location header carries an opaque relative path that must be
// spliced onto the API base, not onto the original URL.
type Kazakhtelecom struct {
	client  *http.Client
	apiBase string
}

func NewKazakhtelecom(timeout time.Duration) *Kazakhtelecom {
	return NewKazakhtelecomWithBase(timeout, kazakhtelecomAPIBase)
}

// NewKazakhtelecomWithBase points the handler at a custom API base, for
// tests.
func NewKazakhtelecomWithBase(timeout time.Duration, apiBase string) *Kazakhtelecom {
	return &Kazakhtelecom{
		client: &http.Client{
			Timeout: timeout,
			// Redirects are resolved manually in FetchCheck.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		apiBase: apiBase,
	}
}

func (h *Kazakhtelecom) FetchCheck(ctx context.Context, u *url.URL) (*receipt.Receipt, error) {
	body, resp, err := get(ctx, h.client, u.String())
	if err != nil {
		return nil, transportErr(err, "fetching check")
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		location := resp.Header.Get("Location")
		if location == "" {
			return nil, transportErr(nil, "redirect response without Location header")
		}
		body, resp, err = get(ctx, h.client, h.apiBase+location)
		if err != nil {
			return nil, transportErr(err, "following check redirect")
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, transportErr(nil, "unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		// The operator answers an HTML error page for unknown checks.
		return nil, transportErr(nil, "check not found: content type %q", ct)
	}

	return h.parse(body, u.String())
}

type ktEnvelope struct {
	OrgTitle           string    `json:"orgTitle"`
	OrgID              string    `json:"orgId"`
	RetailPlaceAddress string    `json:"retailPlaceAddress"`
	KKMSerialNumber    string    `json:"kkmSerialNumber"`
	KKMFNSID           string    `json:"kkmFnsId"`
	Ticket             *ktTicket `json:"ticket"`
	Taxes              []ktTax   `json:"taxes"`
}

type ktTicket struct {
	FiscalID        string           `json:"fiscalId"`
	OperationType   *int             `json:"operationType"`
	TransactionDate string           `json:"transactionDate"`
	Items           []ktItem         `json:"items"`
	Payments        []ktPayment      `json:"payments"`
	TotalSum        *decimal.Decimal `json:"totalSum"`
	TakenSum        *decimal.Decimal `json:"takenSum"`
	ChangeSum       *decimal.Decimal `json:"changeSum"`
}

type ktItem struct {
	Commodity *ktCommodity `json:"commodity"`
}

type ktPayment struct {
	PaymentType string           `json:"paymentType"`
	Sum         *decimal.Decimal `json:"sum"`
}

type ktCommodity struct {
	Name            string           `json:"name"`
	Quantity        *decimal.Decimal `json:"quantity"`
	Price           *decimal.Decimal `json:"price"`
	Sum             *decimal.Decimal `json:"sum"`
	Barcode         string           `json:"barcode"`
	ExciseStamp     string           `json:"exciseStamp"`
	MeasureUnitCode string           `json:"measureUnitCode"`
	Taxes           []ktTax          `json:"taxes"`
}

type ktTax struct {
	Rate   *decimal.Decimal `json:"rate"`
	Sum    *decimal.Decimal `json:"sum"`
	Layout *ktTaxLayout     `json:"layout"`
}

type ktTaxLayout struct {
	Rate *decimal.Decimal `json:"rate"`
}

func (h *Kazakhtelecom) parse(body []byte, sourceURL string) (*receipt.Receipt, error) {
	var env ktEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, structuralErrf(truncate(string(body)), "decoding check JSON: %v", err)
	}

	switch {
	case env.Ticket == nil:
		return nil, structuralErrf("", "ticket object missing")
	case env.OrgTitle == "":
		return nil, structuralErrf("", "orgTitle missing")
	case env.OrgID == "":
		return nil, structuralErrf("", "orgId missing")
	case env.RetailPlaceAddress == "":
		return nil, structuralErrf("", "retailPlaceAddress missing")
	case env.KKMSerialNumber == "":
		return nil, structuralErrf("", "kkmSerialNumber missing")
	case env.KKMFNSID == "":
		return nil, structuralErrf("", "kkmFnsId missing")
	case env.Ticket.FiscalID == "":
		return nil, structuralErrf("", "ticket.fiscalId missing")
	case env.Ticket.OperationType == nil:
		return nil, structuralErrf("", "ticket.operationType missing")
	case env.Ticket.TotalSum == nil:
		return nil, structuralErrf("", "ticket.totalSum missing")
	case env.Ticket.TransactionDate == "":
		return nil, structuralErrf("", "ticket.transactionDate missing")
	}

	operation, err := receipt.OperationTypeFromCode(*env.Ticket.OperationType)
	if err != nil {
		return nil, semanticErrf("", "%v", err)
	}

	dateTime, err := parseKazakhtelecomDate(env.Ticket.TransactionDate)
	if err != nil {
		return nil, semanticErrf(env.Ticket.TransactionDate, "unparsable transaction date")
	}

	payments := make([]receipt.Payment, 0, len(env.Ticket.Payments))
	for _, p := range env.Ticket.Payments {
		typ, err := receipt.PaymentTypeFromVocab(p.PaymentType)
		if err != nil {
			// A partial payment list would misstate how the check was
			// settled, so this fails the whole parse.
			return nil, semanticErrf(p.PaymentType, "%v", err)
		}
		if p.Sum == nil {
			return nil, structuralErrf(p.PaymentType, "payment sum missing")
		}
		payments = append(payments, receipt.Payment{Type: typ, Sum: *p.Sum})
	}

	items := make([]receipt.Item, 0, len(env.Ticket.Items))
	for _, raw := range env.Ticket.Items {
		c := raw.Commodity
		if c == nil || c.Name == "" || c.Quantity == nil || c.Price == nil || c.Sum == nil {
			continue
		}
		item := receipt.Item{
			Barcode:  c.Barcode,
			CodeMark: c.ExciseStamp,
			Name:     receipt.CleanItemName(c.Name),
			Count:    *c.Quantity,
			Price:    *c.Price,
			Unit:     receipt.UnitFromString(c.MeasureUnitCode),
			Sum:      *c.Sum,
		}
		if len(c.Taxes) > 0 {
			if c.Taxes[0].Layout != nil && c.Taxes[0].Layout.Rate != nil {
				item.TaxType = c.Taxes[0].Layout.Rate.String()
			}
			item.TaxSum = c.Taxes[0].Sum
		}
		warnSumMismatch("kazakhtelecom", item)
		items = append(items, item)
	}

	rec := &receipt.Receipt{
		CompanyName:    env.OrgTitle,
		TaxID:          env.OrgID,
		CompanyAddress: env.RetailPlaceAddress,
		SerialNumber:   env.KKMSerialNumber,
		RegistrationID: env.KKMFNSID,
		DateTime:       dateTime,
		FiscalSign:     env.Ticket.FiscalID,
		Operator:       receipt.OperatorKazakhtelecom,
		Operation:      operation,
		Items:          items,
		URL:            sourceURL,
		Taken:          env.Ticket.TakenSum,
		Change:         env.Ticket.ChangeSum,
		Payments:       payments,
		TotalSum:       *env.Ticket.TotalSum,
	}
	if len(env.Taxes) > 0 {
		if env.Taxes[0].Rate != nil {
			rec.TaxType = env.Taxes[0].Rate.String()
		}
		rec.TaxSum = env.Taxes[0].Sum
	}
	return rec, nil
}

// parseKazakhtelecomDate tries strict ISO-8601 first, then the
// operator's offset-less fallback pattern in Almaty time. A "now"
// substitution is never acceptable here: the timestamp feeds the dedup
// and display path.
func parseKazakhtelecomDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999", s, almaty)
}

// truncate keeps error fragments log-sized.
func truncate(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
