package ledger

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// KnownCurrency reports whether code is an ISO-4217 code go-money knows about.
func KnownCurrency(code string) bool {
	return len(code) == 3 && money.GetCurrency(strings.ToUpper(code)) != nil
}

// FormatMoney renders an amount with the currency's symbol and grouping,
// e.g. "S/1,234.50" for PEN. Unknown codes fall back to the plain amount.
func FormatMoney(d decimal.Decimal, code string) string {
	cur := money.GetCurrency(strings.ToUpper(code))
	if cur == nil {
		return FormatAmount(d)
	}
	places := int32(cur.Fraction)
	minor := d.Round(places).Shift(places)
	return cur.Formatter().Format(minor.IntPart())
}
