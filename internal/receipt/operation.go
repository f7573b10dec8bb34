package receipt

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// OperationType is the kind of fiscal operation a receipt registers.
// The numeric values are the wire codes used by the structured-JSON
// operator and by the storage representation.
type OperationType uint16

const (
	OperationBuy        OperationType = 0
	OperationBuyReturn  OperationType = 1
	OperationSell       OperationType = 2
	OperationSellReturn OperationType = 3
)

// OperationTypeFromCode maps an upstream numeric code to an operation
// type. Unknown codes are an error, never defaulted: a wrong operation
// type flips the purchase/return sign semantics of the whole receipt.
func OperationTypeFromCode(code int) (OperationType, error) {
	switch code {
	case 0:
		return OperationBuy, nil
	case 1:
		return OperationBuyReturn, nil
	case 2:
		return OperationSell, nil
	case 3:
		return OperationSellReturn, nil
	}
	return 0, fmt.Errorf("unknown operation type code: %d", code)
}

// Code returns the protocol code string, e.g. "OPERATION_BUY".
func (t OperationType) Code() string {
	switch t {
	case OperationBuy:
		return "OPERATION_BUY"
	case OperationBuyReturn:
		return "OPERATION_BUY_RETURN"
	case OperationSell:
		return "OPERATION_SELL"
	case OperationSellReturn:
		return "OPERATION_SELL_RETURN"
	}
	return "OPERATION_UNKNOWN"
}

// Description returns the operation display text in the given language
// ("ru", "kk" or "en").
func (t OperationType) Description(language string) string {
	descriptions := map[OperationType]map[string]string{
		OperationBuy:        {"ru": "Покупка", "kk": "Сатып алу", "en": "Purchase"},
		OperationBuyReturn:  {"ru": "Возврат покупки", "kk": "Сатып алуды қайтару", "en": "Purchase Return"},
		OperationSell:       {"ru": "Продажа", "kk": "Сату", "en": "Sale"},
		OperationSellReturn: {"ru": "Возврат продажи", "kk": "Сатуды қайтару", "en": "Sale Return"},
	}
	if byLang, ok := descriptions[t]; ok {
		if d, ok := byLang[language]; ok {
			return d
		}
	}
	return "Unknown Operation"
}

// Full localized operation spellings as printed on checks. Return
// operations are listed first: their spellings contain the plain
// buy/sell words.
var operationVocabulary = []struct {
	op       OperationType
	keywords []string
}{
	{OperationBuyReturn, []string{"возврат покупки", "сатып алуды қайтару", "purchase return", "refund"}},
	{OperationSellReturn, []string{"возврат продажи", "сатуды қайтару", "sale return", "возврат товара", "возврат"}},
	{OperationBuy, []string{"покупка", "сатып алу", "purchase", "buy"}},
	{OperationSell, []string{"продажа", "сату", "sale", "sell"}},
}

// Truncated spellings some operators print in operation-only display
// fields. These are never matched against free text: "прода" would
// also hit a "Продавец" cashier line and flip a return into a sale.
var operationFragments = []struct {
	op        OperationType
	fragments []string
}{
	{OperationSellReturn, []string{"возврат прод"}},
	{OperationBuy, []string{"покуп"}},
	{OperationSell, []string{"прода"}},
}

// OperationTypeFromText matches free receipt text, such as a scanned
// header line, against the full localized operation spellings. Matches
// are whole-word so that unrelated words sharing a stem do not hit.
// The second return is false when no spelling matched.
func OperationTypeFromText(text string) (OperationType, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	if cleaned == "" {
		return 0, false
	}
	for _, entry := range operationVocabulary {
		for _, kw := range entry.keywords {
			if containsWholePhrase(cleaned, kw) {
				return entry.op, true
			}
		}
	}
	return 0, false
}

// OperationTypeFromLabel matches the text of a dedicated operation
// field. Only there are the truncated fragment spellings safe to try
// after the full vocabulary.
func OperationTypeFromLabel(text string) (OperationType, bool) {
	if op, ok := OperationTypeFromText(text); ok {
		return op, true
	}
	cleaned := strings.ToLower(strings.TrimSpace(text))
	for _, entry := range operationFragments {
		for _, frag := range entry.fragments {
			if strings.Contains(cleaned, frag) {
				return entry.op, true
			}
		}
	}
	return 0, false
}

// containsWholePhrase reports whether phrase occurs in text with no
// letter or digit directly adjacent on either side.
func containsWholePhrase(text, phrase string) bool {
	for start := 0; start <= len(text)-len(phrase); {
		idx := strings.Index(text[start:], phrase)
		if idx == -1 {
			return false
		}
		idx += start
		if phraseBounded(text, idx, idx+len(phrase)) {
			return true
		}
		start = idx + 1
	}
	return false
}

func phraseBounded(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
