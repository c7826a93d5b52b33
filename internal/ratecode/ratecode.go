// Package ratecode validates AWS billing rate codes and resolves them
// against a pricing document.
//
// A rate code has the form SKU.OfferTerm.PriceDimension, for example
// ABCDE12345.JRTCKX.6YS6EN. Within a pricing document it addresses
// terms[type][SKU][SKU.OfferTerm].priceDimensions[SKU.OfferTerm.PriceDimension].
package ratecode

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// FormatCheckThreshold is the input length above which an input that does
// not match the pattern is reported while still being typed.
const FormatCheckThreshold = 30

var pattern = regexp.MustCompile(`(?i)^[A-Za-z0-9]{5,20}\.[A-Za-z0-9]{5,20}\.[A-Za-z0-9]{5,20}$`)

// Sentinel errors. Their messages are shown to the user verbatim.
var (
	ErrPricingNotLoaded = errors.New("pricing data not loaded yet")
	ErrInvalid          = errors.New("rate code not valid")
	ErrSKUNotFound      = errors.New("SKU not found")
	ErrNotFound         = errors.New("rate code not found")
	ErrFormat           = errors.New("wrong rate code format")
)

// Code is a parsed rate code.
type Code struct {
	SKU            string
	OfferTerm      string
	PriceDimension string
}

// OfferTermCode returns the key of the offer term inside terms[type][SKU].
func (c Code) OfferTermCode() string {
	return c.SKU + "." + c.OfferTerm
}

// RateCode returns the key of the price dimension inside the offer term.
func (c Code) RateCode() string {
	return c.SKU + "." + c.OfferTerm + "." + c.PriceDimension
}

func (c Code) String() string {
	return c.RateCode()
}

// Valid reports whether s is a well-formed rate code.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// CheckFormat is the check applied while the code is being typed: it only
// complains once the input is longer than FormatCheckThreshold, so partial
// input is never flagged.
func CheckFormat(s string) error {
	if utf8.RuneCountInString(s) > FormatCheckThreshold && !Valid(s) {
		return ErrFormat
	}
	return nil
}

// Normalize trims surrounding space and upper-cases s. Rate codes in the
// Price List are upper case.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Parse validates s and splits it on its two dots.
func Parse(s string) (Code, error) {
	if !Valid(s) {
		return Code{}, ErrInvalid
	}
	parts := strings.SplitN(s, ".", 3)
	return Code{SKU: parts[0], OfferTerm: parts[1], PriceDimension: parts[2]}, nil
}

// Outcome labels err for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "resolved"
	case errors.Is(err, ErrPricingNotLoaded):
		return "not_loaded"
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrFormat):
		return "invalid"
	case errors.Is(err, ErrSKUNotFound):
		return "sku_not_found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
