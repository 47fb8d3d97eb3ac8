package generic

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var currencyPrinter = message.NewPrinter(language.English)

// FormatCurrency renders amount with 2 decimal places and thousands
// separators, e.g. 1234567.5 -> "1,234,567.50". Display only.
func FormatCurrency(amount decimal.Decimal) string {
	f, _ := amount.Round(2).Float64()
	return currencyPrinter.Sprint(number.Decimal(f, number.Scale(2)))
}
