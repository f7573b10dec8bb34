package ofd

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/abeknur/ofd-check/internal/receipt"
)

// Transtelecom handles ofd1.kz checks: no API at all, just the rendered
// HTML page. Header fields sit behind label-then-sibling selectors; the
// item rows repeat the same qty/price/sum grammar as the text-transcript
// operator, only spread across DOM nodes.
type Transtelecom struct {
	client *http.Client
}

func NewTranstelecom(timeout time.Duration) *Transtelecom {
	return &Transtelecom{client: &http.Client{Timeout: timeout}}
}

func (h *Transtelecom) FetchCheck(ctx context.Context, u *url.URL) (*receipt.Receipt, error) {
	body, resp, err := get(ctx, h.client, u.String())
	if err != nil {
		return nil, transportErr(err, "fetching check")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, transportErr(nil, "unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, structuralErrf("", "parsing check HTML: %v", err)
	}
	return parseTranstelecomDoc(doc, u.String())
}

var barcodeRe = regexp.MustCompile(`^(\d{13}|\d{8})`)

func parseTranstelecomDoc(doc *goquery.Document, sourceURL string) (*receipt.Receipt, error) {
	headerText := func(label string) string {
		sel := "div.ticket_header > div:contains('" + label + "') > span"
		return strings.TrimSpace(doc.Find(sel).First().Text())
	}

	companyName := strings.TrimSpace(doc.Find("div.ticket_header > div > span").First().Text())
	companyAddress := headerText("Адрес")
	taxID := headerText("БИН")
	serialNumber := headerText("ЗНМ")
	registrationID := headerText("РНМ")

	fiscalSign := strings.TrimSpace(doc.Find("div.ticket_footer > div:contains('Фискальный признак') > span").First().Text())
	if fiscalSign == "" {
		return nil, structuralErrf("", "fiscal sign selector not found")
	}

	dateText := headerText("Дата и время")
	if dateText == "" {
		return nil, structuralErrf("", "check date selector not found")
	}
	dateTime, err := parseTranstelecomDate(dateText)
	if err != nil {
		return nil, semanticErrf(dateText, "unparsable check date")
	}

	operation, err := extractTTOperation(doc)
	if err != nil {
		return nil, err
	}

	items, err := extractTTItems(doc)
	if err != nil {
		return nil, err
	}

	totalDiv := doc.Find("div.total_sum").First()
	if totalDiv.Length() == 0 {
		return nil, structuralErrf("", "totals block not found")
	}
	payments, err := extractTTPayments(totalDiv)
	if err != nil {
		return nil, err
	}
	change, err := extractTTChange(totalDiv)
	if err != nil {
		return nil, err
	}
	totalSum := receipt.ParseAmount(doc.Find("div.total_sum > div > b > span").First().Text())

	return &receipt.Receipt{
		CompanyName:    companyName,
		TaxID:          taxID,
		CompanyAddress: companyAddress,
		SerialNumber:   serialNumber,
		RegistrationID: registrationID,
		DateTime:       dateTime,
		FiscalSign:     fiscalSign,
		Operator:       receipt.OperatorTranstelecom,
		Operation:      operation,
		Items:          items,
		URL:            sourceURL,
		Change:         change,
		Payments:       payments,
		TotalSum:       totalSum,
	}, nil
}

// monthReplacements maps Russian month names to two-digit numbers.
// Order matters: genitive and full forms go before their abbreviation
// prefixes so "января" never half-matches "янв".
var monthReplacements = []struct{ name, num string }{
	{"января", "01"}, {"январь", "01"}, {"янв.", "01"}, {"янв", "01"},
	{"февраля", "02"}, {"февраль", "02"}, {"фев.", "02"}, {"фев", "02"},
	{"марта", "03"}, {"март", "03"}, {"мар.", "03"}, {"мар", "03"},
	{"апреля", "04"}, {"апрель", "04"}, {"апр.", "04"}, {"апр", "04"},
	{"мая", "05"}, {"май", "05"},
	{"июня", "06"}, {"июнь", "06"}, {"июн.", "06"}, {"июн", "06"},
	{"июля", "07"}, {"июль", "07"}, {"июл.", "07"}, {"июл", "07"},
	{"августа", "08"}, {"август", "08"}, {"авг.", "08"}, {"авг", "08"},
	{"сентября", "09"}, {"сентябрь", "09"}, {"сент.", "09"}, {"сент", "09"},
	{"октября", "10"}, {"октябрь", "10"}, {"окт.", "10"}, {"окт", "10"},
	{"ноября", "11"}, {"ноябрь", "11"}, {"нояб.", "11"}, {"нояб", "11"},
	{"декабря", "12"}, {"декабрь", "12"}, {"дек.", "12"}, {"дек", "12"},
}

// parseTranstelecomDate handles the only date this operator exposes: a
// human-formatted "02 февраля 2025, 18:32" string. Month names are
// substituted before the numeric parse; the page carries no offset, so
// Almaty time applies.
func parseTranstelecomDate(text string) (time.Time, error) {
	numeric := strings.ToLower(text)
	for _, m := range monthReplacements {
		numeric = strings.ReplaceAll(numeric, m.name, m.num)
	}
	return time.ParseInLocation("02 01 2006, 15:04", strings.TrimSpace(numeric), almaty)
}

func extractTTOperation(doc *goquery.Document) (receipt.OperationType, error) {
	text := strings.TrimSpace(doc.Find("div.ticket_header > div:contains('Кассалық чек / Кассовый чек') > span").First().Text())
	if text == "" {
		return 0, structuralErrf("", "operation type selector not found")
	}
	parts := strings.Split(text, "/")
	opText := strings.TrimSpace(parts[len(parts)-1])
	operation, ok := receipt.OperationTypeFromLabel(opText)
	if !ok {
		return 0, semanticErrf(text, "unknown operation type")
	}
	return operation, nil
}

// extractTTItems walks the item list rows. Rows without a span.wb-all
// name node are annotations, not products, and are skipped; everything
// else must parse completely or the whole receipt fails.
func extractTTItems(doc *goquery.Document) ([]receipt.Item, error) {
	var items []receipt.Item
	var parseErr error

	doc.Find("ol.ready_ticket__items_list > li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		nameSel := li.Find("span.wb-all")
		if nameSel.Length() == 0 {
			return true
		}

		name := strings.TrimSpace(nameSel.Text())
		var barcode string
		if m := barcodeRe.FindString(name); m != "" {
			barcode = m
			name = strings.TrimSpace(strings.TrimPrefix(name, m))
		}

		infoDiv := li.Find("div.ready_ticket__item").First()
		if infoDiv.Length() == 0 {
			parseErr = structuralErrf(name, "item info block not found")
			return false
		}
		// Bold sub-elements carry annotation text, not item data.
		infoDiv.Find("b").Remove()
		info := strings.TrimSpace(infoDiv.Text())

		item, err := parseTTItemInfo(info)
		if err != nil {
			parseErr = err
			return false
		}
		item.Barcode = barcode
		item.Name = receipt.CleanItemName(name)
		warnSumMismatch("transtelecom", *item)
		items = append(items, *item)
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}
	return items, nil
}

// parseTTItemInfo reads "<price> x <count unit> = <sum> [ҚҚС ...]" from
// a row's text after annotation elements are removed.
func parseTTItemInfo(info string) (*receipt.Item, error) {
	xIdx := strings.Index(info, "x")
	if xIdx == -1 {
		return nil, structuralErrf(info, "item line is missing the 'x' token")
	}
	eqIdx := strings.Index(info, "=")
	if eqIdx == -1 || eqIdx < xIdx {
		return nil, structuralErrf(info, "item line is missing the '=' token")
	}

	price, err := receipt.ParseAmountStrict(info[:xIdx])
	if err != nil {
		return nil, structuralErrf(info, "unparsable item price")
	}

	countAndUnit := strings.TrimSpace(info[xIdx+1 : eqIdx])
	components := strings.Fields(countAndUnit)
	var countText, unitText string
	switch {
	case len(components) >= 2:
		last := components[len(components)-1]
		if isLetters(last) {
			// "1 000 кг": thousands groups then the unit.
			unitText = last
			countText = strings.Join(components[:len(components)-1], "")
		} else {
			countText = components[0]
			unitText = strings.Join(components[1:], " ")
		}
	case len(components) == 1:
		countText = components[0]
	default:
		return nil, structuralErrf(info, "empty count segment in item line")
	}

	count, err := receipt.ParseAmountStrict(countText)
	if err != nil {
		return nil, structuralErrf(info, "unparsable item count")
	}

	sumText := info[eqIdx+1:]
	var taxType string
	var taxSum *decimal.Decimal
	if vatIdx := strings.Index(sumText, "ҚҚС"); vatIdx != -1 {
		taxType, taxSum = extractTTTax(sumText[vatIdx:])
		sumText = sumText[:vatIdx]
	}
	sum, err := receipt.ParseAmountStrict(sumText)
	if err != nil {
		return nil, structuralErrf(info, "unparsable item sum")
	}

	return &receipt.Item{
		Count:   count,
		Price:   price,
		Unit:    receipt.UnitFromString(unitText),
		Sum:     sum,
		TaxType: taxType,
		TaxSum:  taxSum,
	}, nil
}

// extractTTTax reads "ҚҚС <type>: <sum>" from the tail of an item line.
func extractTTTax(text string) (string, *decimal.Decimal) {
	rest := strings.TrimSpace(strings.TrimPrefix(text, "ҚҚС"))
	parts := strings.Split(rest, ":")
	taxType := strings.TrimSpace(parts[0])
	if len(parts) < 2 {
		return taxType, nil
	}
	sum, err := receipt.ParseAmountStrict(parts[len(parts)-1])
	if err != nil {
		return taxType, nil
	}
	return taxType, &sum
}

func isLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// extractTTPayments reads the payment breakdown list from the totals
// block. Every entry must resolve to a known payment type; a guessed
// instrument would misstate how the check was settled.
func extractTTPayments(totalDiv *goquery.Selection) ([]receipt.Payment, error) {
	ul := totalDiv.Find("ul.list-unstyled").First()
	if ul.Length() == 0 {
		return nil, structuralErrf("", "payment breakdown list not found")
	}

	var payments []receipt.Payment
	var parseErr error
	ul.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		text := strings.TrimSpace(li.Text())
		before, after, found := strings.Cut(text, ":")
		if !found {
			parseErr = structuralErrf(text, "payment entry is missing the ':' separator")
			return false
		}
		typ, ok := receipt.PaymentTypeFromText(before)
		if !ok {
			parseErr = semanticErrf(strings.TrimSpace(before), "unknown payment type")
			return false
		}
		sum, err := receipt.ParseAmountStrict(after)
		if err != nil {
			parseErr = structuralErrf(text, "unparsable payment amount")
			return false
		}
		payments = append(payments, receipt.Payment{Type: typ, Sum: sum})
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}
	return payments, nil
}

// extractTTChange reads the optional change row; its absence is normal
// for card payments.
func extractTTChange(totalDiv *goquery.Selection) (*decimal.Decimal, error) {
	row := totalDiv.Find("div:contains('Сдача')").First()
	if row.Length() == 0 {
		return nil, nil
	}
	text := strings.TrimSpace(row.Text())
	_, after, found := strings.Cut(text, ":")
	if !found {
		return nil, structuralErrf(text, "change row is missing the ':' separator")
	}
	change, err := receipt.ParseAmountStrict(after)
	if err != nil {
		return nil, structuralErrf(text, "unparsable change amount")
	}
	return &change, nil
}
