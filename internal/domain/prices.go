package domain

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// The gallery sells in euros with French display conventions; the numeric
// value stays authoritative for totals, the formatted string is display-only.
var pricePrinter = message.NewPrinter(language.French)

// FormatPrice renders a numeric price as the display string stored alongside
// it on cart lines and wishlist entries.
func FormatPrice(value float64) string {
	return pricePrinter.Sprint(currency.Symbol(currency.EUR.Amount(value)))
}
