package tfunc

import (
	"text/template"
)

// PageInput configures the page formatting functions.
type PageInput struct {
	// Currency is the fixed prefix printed before every amount.
	Currency string
	// Locale is the BCP 47 tag used to group digits (eg. "en", "de").
	Locale string
}

// All available template functions with their default configuration.
func All() template.FuncMap {
	all, _ := Page(PageInput{})
	return all
}

// Page returns the functions used by the landing page template. It fails
// only on an unparsable locale.
func Page(i PageInput) (template.FuncMap, error) {
	pf, err := NewPriceFormatter(i.Currency, i.Locale)
	if err != nil {
		return nil, err
	}
	return template.FuncMap{
		"jsx":   jsx,
		"price": pf.Format,
	}, nil
}
