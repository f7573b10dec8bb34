package receipt

import (
	"fmt"
	"strconv"
	"strings"
)

// PaymentType is the instrument a receipt was settled with. The numeric
// values are the KKM protocol codes (mobile payments are 4 upstream,
// there is no code 2 or 3 in the catalogue this system consumes).
type PaymentType uint16

const (
	PaymentCash   PaymentType = 0
	PaymentCard   PaymentType = 1
	PaymentMobile PaymentType = 4
)

// PaymentTypeFromCode maps an upstream numeric code to a payment type.
func PaymentTypeFromCode(code int) (PaymentType, error) {
	switch code {
	case 0:
		return PaymentCash, nil
	case 1:
		return PaymentCard, nil
	case 4:
		return PaymentMobile, nil
	}
	return 0, fmt.Errorf("unknown payment type code: %d", code)
}

// PaymentTypeFromVocab matches the structured-JSON operator's fixed
// payment vocabulary. Anything outside card/cash/mobile is an error:
// a guessed payment type would misstate how the receipt was settled.
func PaymentTypeFromVocab(s string) (PaymentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "card":
		return PaymentCard, nil
	case "cash":
		return PaymentCash, nil
	case "mobile":
		return PaymentMobile, nil
	}
	return 0, fmt.Errorf("unknown payment type: %q", s)
}

// Free-text keyword sets, matched case-insensitively against payment
// labels printed on checks. Spellings differ per operator and language.
var paymentKeywords = []struct {
	typ      PaymentType
	keywords []string
}{
	{PaymentCard, []string{"банковская карта", "банктік карта", "карт", "карта", "bank", "card"}},
	{PaymentCash, []string{"наличные", "қолма-қол", "нал", "cash"}},
	{PaymentMobile, []string{"мобильные платежи", "мобильді", "моб", "mobile"}},
}

// PaymentTypeFromText matches a free-text payment label against the
// per-type keyword sets, falling back to a numeric code. The second
// return is false when nothing matched.
func PaymentTypeFromText(text string) (PaymentType, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	for _, set := range paymentKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(cleaned, kw) {
				return set.typ, true
			}
		}
	}
	if code, err := strconv.Atoi(cleaned); err == nil {
		if typ, err := PaymentTypeFromCode(code); err == nil {
			return typ, true
		}
	}
	return 0, false
}

// Code returns the protocol code string, e.g. "PAYMENT_CASH".
func (t PaymentType) Code() string {
	switch t {
	case PaymentCash:
		return "PAYMENT_CASH"
	case PaymentCard:
		return "PAYMENT_CARD"
	case PaymentMobile:
		return "PAYMENT_MOBILE"
	}
	return "PAYMENT_UNKNOWN"
}

// Description returns the payment display text in the given language.
func (t PaymentType) Description(language string) string {
	descriptions := map[PaymentType]map[string]string{
		PaymentCash:   {"ru": "Наличные", "kk": "Қолма-қол", "en": "Cash"},
		PaymentCard:   {"ru": "Банковская карта", "kk": "Банктік карта", "en": "Bank Card"},
		PaymentMobile: {"ru": "Мобильные платежи", "kk": "Мобильді төлемдер", "en": "Mobile Payments"},
	}
	if byLang, ok := descriptions[t]; ok {
		if d, ok := byLang[language]; ok {
			return d
		}
	}
	return "Unknown Payment Type"
}
