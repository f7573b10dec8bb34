package receipt

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// amountReplacer strips the tenge glyph and every space variant used as
// a thousands separator, and turns the comma decimal separator into a
// point. NBSP (U+00A0) shows up in all three upstream formats.
var amountReplacer = strings.NewReplacer(
	"₸", "",
	" ", "",
	" ", "",
	",", ".",
)

// ParseAmount parses a locale-formatted money or quantity string, e.g.
// "1 234,56₸" -> 1234.56. Garbage input yields zero: this is the
// tolerated default for sub-fields decorated with label text, where a
// hard failure would throw away an otherwise well-structured receipt.
func ParseAmount(s string) decimal.Decimal {
	d, err := ParseAmountStrict(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseAmountStrict is ParseAmount for fields whose corruption must
// fail the parse instead of degrading to zero.
func ParseAmountStrict(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(amountReplacer.Replace(s))
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}

// nameReplacer removes transcription artifacts left over when an
// upstream flattens a printed check into text lines.
var nameReplacer = strings.NewReplacer(
	"\\", "",
	"\"", "",
	"|", "",
	"*", "",
	"_", "",
	"~", "",
	"\r", "",
	"\n", "",
)

// CleanItemName strips stray markup characters from an item name.
func CleanItemName(name string) string {
	return strings.TrimSpace(nameReplacer.Replace(name))
}
