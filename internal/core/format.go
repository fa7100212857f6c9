package core

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is used when the locale carries no known region.
var DefaultCurrency = currency.MustParseISO("KES")

var regionCurrency = map[string]string{
	"KE": "KES",
	"US": "USD",
	"GB": "GBP",
	"NG": "NGN",
	"ZA": "ZAR",
	"UG": "UGX",
	"TZ": "TZS",
	"GH": "GHS",
	"IN": "INR",
	"EU": "EUR",
	"DE": "EUR",
	"FR": "EUR",
	"CA": "CAD",
	"AU": "AUD",
}

// CurrencyForLocale maps the region part of a locale such as "en-KE" to its
// currency. Locales without a region resolve to DefaultCurrency.
func CurrencyForLocale(locale string) currency.Unit {
	parts := strings.FieldsFunc(locale, func(r rune) bool { return r == '-' || r == '_' })
	if len(parts) < 2 {
		return DefaultCurrency
	}
	code, ok := regionCurrency[strings.ToUpper(parts[1])]
	if !ok {
		return DefaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return DefaultCurrency
	}
	return unit
}

// FormatMoney renders m as "<ISO> <amount>" with no decimals and the digit
// grouping of locale, e.g. "KES 15,000" for en-KE.
func FormatMoney(m Money, locale string) string {
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	return p.Sprintf("%s %d", CurrencyForLocale(locale).String(), m.Decimal().Round(0).IntPart())
}
