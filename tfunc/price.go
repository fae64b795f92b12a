package tfunc

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// DefaultCurrency is the prefix used when none is configured.
	DefaultCurrency = "KES"
	// DefaultLocale is the locale used when none is configured.
	DefaultLocale = "en"
)

// PriceFormatter prints whole currency amounts with locale aware digit
// grouping, eg. "KES 24,000".
type PriceFormatter struct {
	currency string
	printer  *message.Printer
}

// NewPriceFormatter returns a formatter for the given currency prefix and
// locale. Empty values fall back to DefaultCurrency and DefaultLocale.
func NewPriceFormatter(currency, locale string) (*PriceFormatter, error) {
	currency = strings.TrimSpace(currency)
	if currency == "" {
		currency = DefaultCurrency
	}
	if locale == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, errors.Wrapf(err, "price: invalid locale %q", locale)
	}
	return &PriceFormatter{
		currency: currency,
		printer:  message.NewPrinter(tag),
	}, nil
}

// Format rounds the amount to an integer and prints it behind the currency.
func (f *PriceFormatter) Format(amount float64) string {
	whole := int64(math.Round(amount))
	return f.currency + " " + f.printer.Sprintf("%d", whole)
}
