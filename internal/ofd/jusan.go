package ofd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abeknur/ofd-check/internal/receipt"
)

const jusanAPIBase = "https://cabinet.kofd.kz/api/tickets"

// Jusan handles consumer.kofd.kz checks. The scanned URL only carries
// lookup parameters; the actual payload comes from a second API URL and
// is an ordered array of text lines, a flattened transcription of the
// printed check.
type Jusan struct {
	client  *http.Client
	apiBase string
}

func NewJusan(timeout time.Duration) *Jusan {
	return NewJusanWithBase(timeout, jusanAPIBase)
}

// NewJusanWithBase points the handler at a custom API base, for tests.
func NewJusanWithBase(timeout time.Duration, apiBase string) *Jusan {
	return &Jusan{
		client:  &http.Client{Timeout: timeout},
		apiBase: apiBase,
	}
}

func (h *Jusan) FetchCheck(ctx context.Context, u *url.URL) (*receipt.Receipt, error) {
	q := u.Query()
	ticketNumber := q.Get("i")
	registrationNumber := q.Get("f")
	rawDate := q.Get("t")
	if ticketNumber == "" || registrationNumber == "" || rawDate == "" {
		return nil, structuralErrf(u.RawQuery, "check URL is missing required query parameters")
	}

	apiURL := fmt.Sprintf("%s?registrationNumber=%s&ticketNumber=%s&ticketDate=%s",
		h.apiBase,
		url.QueryEscape(registrationNumber),
		url.QueryEscape(ticketNumber),
		url.QueryEscape(rewriteTicketDate(rawDate)),
	)

	body, resp, err := get(ctx, h.client, apiURL)
	if err != nil {
		return nil, transportErr(err, "fetching check")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, transportErr(nil, "unexpected status %d", resp.StatusCode)
	}

	var env jusanEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, structuralErrf(truncate(string(body)), "decoding check JSON: %v", err)
	}
	if len(env.Data.Ticket) == 0 {
		return nil, structuralErrf("", "empty check transcript")
	}

	lines := make([]string, 0, len(env.Data.Ticket))
	for _, rec := range env.Data.Ticket {
		lines = append(lines, rec.Text)
	}
	return parseJusanTicket(lines, u.String())
}

type jusanEnvelope struct {
	Data struct {
		Ticket []struct {
			Text string `json:"text"`
		} `json:"ticket"`
	} `json:"data"`
}

// rewriteTicketDate turns the URL's compact 20060102T150405 stamp into
// the API's expected YYYY-MM-DD. Unrecognized input passes through
// verbatim and lets the API complain.
func rewriteTicketDate(raw string) string {
	t, err := time.Parse("20060102T150405", raw)
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02")
}

// Sentinel lines delimiting the item block in the transcript.
var (
	asteriskSentinelRe = regexp.MustCompile(`\*{10,}`)
	dashSentinelRe     = regexp.MustCompile(`^-{10,}$`)
)

// itemLineRe is the quantity/price/sum grammar of one item line:
// "<qty>(<unit>) x <price>₸ = <sum>₸". Quantity may be decimal in
// newer format generations; thousands groups may use NBSP.
var itemLineRe = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*\(([^)]*)\)\s*x\s*([\d\s\x{00a0}]+(?:[.,]\d+)?)\s*₸\s*=\s*([\d\s\x{00a0}]+(?:[.,]\d+)?)\s*₸`)

// timestampRe matches the check timestamp anywhere in a header line.
var timestampRe = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4} \d{2}:\d{2}:\d{2}`)

// Totals-block keywords; bilingual labels as printed.
const (
	takenKeyword    = "Төленген сома/Сумма оплаты"
	changeKeyword   = "Қайтарым сомасы/Сумма сдачи"
	taxSumKeyword   = "ҚҚС сомасы/Сумма НДС"
	serialKeyword   = "КЗН/ЗНМ"
	regIDKeyword    = "КТН/РНМ"
	fiscalKeyword   = "ФП"
	vatKeyword      = "НДС"
	discountKeyword = "Скидка"
	markupKeyword   = "Наценка"
)

// parseJusanTicket runs the three-phase scan over the transcript:
// keyword-anchored header, sentinel-delimited item block, fixed-order
// totals block.
func parseJusanTicket(lines []string, sourceURL string) (*receipt.Receipt, error) {
	header, err := extractJusanHeader(lines)
	if err != nil {
		return nil, err
	}
	items := extractJusanItems(lines)
	totals, err := extractJusanTotals(lines)
	if err != nil {
		return nil, err
	}

	return &receipt.Receipt{
		CompanyName:    header.companyName,
		TaxID:          header.taxID,
		SerialNumber:   header.serialNumber,
		RegistrationID: header.registrationID,
		DateTime:       header.dateTime,
		FiscalSign:     header.fiscalSign,
		Operator:       receipt.OperatorJusan,
		Operation:      header.operation,
		Items:          items,
		URL:            sourceURL,
		TaxType:        totals.taxType,
		TaxSum:         totals.taxSum,
		Taken:          totals.taken,
		Change:         totals.change,
		Payments:       totals.payments,
		TotalSum:       totals.totalSum,
	}, nil
}

type jusanHeader struct {
	companyName    string
	taxID          string
	operation      receipt.OperationType
	fiscalSign     string
	dateTime       time.Time
	serialNumber   string
	registrationID string
}

// extractJusanHeader scans the transcript for keyword-anchored header
// fields. Everything before the tax-id line is the company name; the
// remaining fields are found by marker substring, not by position, so
// the parser survives the operator inserting or dropping lines.
func extractJusanHeader(lines []string) (jusanHeader, error) {
	var h jusanHeader

	taxIdx := -1
	for i, line := range lines {
		if strings.Contains(line, "БСН/БИН") || strings.Contains(line, "ИИН") {
			h.taxID = strings.TrimSpace(strings.NewReplacer("БСН/БИН", "", "ИИН", "").Replace(line))
			taxIdx = i
			break
		}
	}
	if taxIdx == -1 {
		return h, structuralErrf(truncate(strings.Join(lines, "\n")), "tax id line not found in transcript")
	}

	nameParts := make([]string, 0, taxIdx)
	for _, line := range lines[:taxIdx] {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			nameParts = append(nameParts, trimmed)
		}
	}
	h.companyName = strings.Join(nameParts, " ")

	// The header region ends at the item-block sentinel.
	headerEnd := len(lines)
	for i, line := range lines {
		if asteriskSentinelRe.MatchString(line) {
			headerEnd = i
			break
		}
	}

	// Checks for an ordinary sale often omit the operation line
	// entirely, so its absence defaults to a sale instead of failing.
	h.operation = receipt.OperationSell
	for _, line := range lines[taxIdx:headerEnd] {
		if op, ok := receipt.OperationTypeFromText(line); ok {
			h.operation = op
			break
		}
	}

	for _, line := range lines[taxIdx:headerEnd] {
		if h.fiscalSign == "" && strings.Contains(line, fiscalKeyword) && strings.Contains(line, ":") {
			parts := strings.Split(line, ":")
			h.fiscalSign = strings.TrimSpace(parts[len(parts)-1])
		}
		if h.serialNumber == "" && strings.Contains(line, serialKeyword) {
			_, after, _ := strings.Cut(line, serialKeyword)
			h.serialNumber = strings.TrimSpace(after)
		}
		if h.registrationID == "" && strings.Contains(line, regIDKeyword) {
			_, after, _ := strings.Cut(line, regIDKeyword)
			h.registrationID = strings.TrimSpace(after)
		}
		if h.dateTime.IsZero() {
			if stamp := timestampRe.FindString(line); stamp != "" {
				t, err := time.ParseInLocation("02.01.2006 15:04:05", stamp, almaty)
				if err == nil {
					h.dateTime = t
				}
			}
		}
	}

	if h.fiscalSign == "" {
		return h, structuralErrf("", "fiscal sign line not found in transcript")
	}
	if h.dateTime.IsZero() {
		// A substituted "now" would silently corrupt the receipt, so a
		// missing timestamp fails the parse.
		return h, semanticErrf("", "check timestamp not found in transcript")
	}
	return h, nil
}

// extractJusanItems collects the item block between the asterisk and
// dash sentinels. A transcript without the asterisk sentinel yields no
// items and no error. Lines before the first quantity/price/sum match
// accumulate into the item name; an optional VAT line right after the
// match attaches to the item; a discount/markup line ends the block
// early so price adjustments are never misread as products.
func extractJusanItems(lines []string) []receipt.Item {
	start := -1
	for i, line := range lines {
		if asteriskSentinelRe.MatchString(line) {
			start = i + 1
			break
		}
	}
	if start == -1 {
		return nil
	}

	block := make([]string, 0)
	for _, line := range lines[start:] {
		if dashSentinelRe.MatchString(strings.TrimSpace(line)) {
			break
		}
		block = append(block, line)
	}

	var items []receipt.Item
	var nameParts []string
	for i := 0; i < len(block); i++ {
		line := strings.TrimSpace(block[i])
		if line == "" {
			continue
		}
		if strings.Contains(line, discountKeyword) || strings.Contains(line, markupKeyword) {
			break
		}

		m := itemLineRe.FindStringSubmatch(strings.ReplaceAll(line, " ", " "))
		if m == nil {
			nameParts = append(nameParts, line)
			continue
		}

		item := receipt.Item{
			Name:  receipt.CleanItemName(strings.Join(nameParts, " ")),
			Count: receipt.ParseAmount(m[1]),
			Unit:  jusanUnit(m[2]),
			Price: receipt.ParseAmount(m[3]),
			Sum:   receipt.ParseAmount(m[4]),
		}
		nameParts = nil

		if i+1 < len(block) && strings.Contains(block[i+1], vatKeyword) {
			item.TaxType = vatKeyword
			sum := extractTaxAmount(block[i+1])
			item.TaxSum = &sum
			i++
		}

		warnSumMismatch("jusan", item)
		items = append(items, item)
	}
	return items
}

// jusanUnit canonicalizes the parenthesized unit text; older format
// generations print an empty pair for pieces.
func jusanUnit(text string) receipt.Unit {
	if strings.TrimSpace(text) == "" {
		return receipt.UnitPiece
	}
	return receipt.UnitFromString(text)
}

// extractTaxAmount pulls the money value out of a VAT annotation line
// such as "в т.ч. НДС 12% = 107,14₸".
func extractTaxAmount(line string) decimal.Decimal {
	s := line
	if idx := strings.LastIndex(s, "="); idx != -1 {
		s = s[idx+1:]
	} else if idx := strings.LastIndex(s, ":"); idx != -1 {
		s = s[idx+1:]
	} else {
		s = strings.ReplaceAll(s, vatKeyword, "")
	}
	return receipt.ParseAmount(s)
}

type jusanTotals struct {
	taken    *decimal.Decimal
	payments []receipt.Payment
	change   *decimal.Decimal
	taxType  string
	taxSum   *decimal.Decimal
	totalSum decimal.Decimal
}

// extractJusanTotals parses the block between the first and second dash
// sentinels. Unlike the header, this block has a stable emission order
// for this operator, so fields are read by relative position: tendered
// amount, payment breakdown, change, then VAT and the grand total.
func extractJusanTotals(lines []string) (jusanTotals, error) {
	var t jusanTotals

	idx := 0
	for ; idx < len(lines); idx++ {
		if dashSentinelRe.MatchString(strings.TrimSpace(lines[idx])) {
			idx++
			break
		}
	}
	block := make([]string, 0)
	for ; idx < len(lines); idx++ {
		if dashSentinelRe.MatchString(strings.TrimSpace(lines[idx])) {
			break
		}
		block = append(block, lines[idx])
	}

	if len(block) > 0 {
		taken := amountAfterKeyword(block[0], takenKeyword)
		t.taken = &taken
	}
	if len(block) > 1 {
		payments, err := parseJusanPayment(block[1])
		if err != nil {
			return t, err
		}
		t.payments = payments
	}
	if len(block) > 2 {
		change := amountAfterKeyword(block[2], changeKeyword)
		t.change = &change
	}
	if len(block) > 5 {
		t.taxType = vatKeyword
		taxSum := amountAfterKeyword(block[5], taxSumKeyword)
		t.taxSum = &taxSum
	}
	if len(block) > 6 {
		t.totalSum = amountAfterKeyword(block[6], ":")
	}
	return t, nil
}

// parseJusanPayment reads the single "type: amount" breakdown line.
func parseJusanPayment(line string) ([]receipt.Payment, error) {
	before, after, found := strings.Cut(line, ":")
	if !found {
		return nil, nil
	}
	typ, ok := receipt.PaymentTypeFromText(before)
	if !ok {
		return nil, semanticErrf(strings.TrimSpace(before), "unknown payment type")
	}
	return []receipt.Payment{{Type: typ, Sum: receipt.ParseAmount(after)}}, nil
}

// amountAfterKeyword parses the money value following a label keyword;
// a missing keyword or garbage value degrades to zero.
func amountAfterKeyword(line, keyword string) decimal.Decimal {
	idx := strings.LastIndex(line, keyword)
	if idx == -1 {
		return decimal.Zero
	}
	return receipt.ParseAmount(line[idx+len(keyword):])
}
