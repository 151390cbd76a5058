// Package format renders prices in the Indian Cr/Lakh scale.
package format

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	Crore = 1e7
	Lakh  = 1e5

	currency = "₹"
)

var printer = message.NewPrinter(language.English)

// Price renders p as "₹1.50 Cr", "₹5.00 Lakh" or "₹99,999".
func Price(p float64) string {
	switch {
	case p >= Crore:
		return fmt.Sprintf("%s%.2f Cr", currency, p/Crore)
	case p >= Lakh:
		return fmt.Sprintf("%s%.2f Lakh", currency, p/Lakh)
	default:
		return currency + printer.Sprintf("%d", int64(math.Round(p)))
	}
}

// PerArea renders a price per square foot, e.g. "₹5,000.00 per sqft".
func PerArea(v float64) string {
	return currency + printer.Sprintf("%.2f", v) + " per sqft"
}

// Area renders a size in square feet with grouping.
func Area(v float64) string {
	if v == math.Trunc(v) {
		return printer.Sprintf("%d sqft", int64(v))
	}
	return printer.Sprintf("%.1f sqft", v)
}

// StripCurrency drops the leading rupee sign so a formatted price can be
// parsed again.
func StripCurrency(text string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), currency))
}
