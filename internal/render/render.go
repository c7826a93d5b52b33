// Package render turns a resolved rate code into the lines of the results
// panel and into text, JSON or YAML output.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rshade/aws-ratecode-checker/internal/ratecode"
)

// Placeholder is shown when nothing has been resolved.
const Placeholder = "--"

// Format is an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates s. An empty string means FormatText.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// ProductLines lists the product attributes as "name: value", in document
// order.
func ProductLines(res *ratecode.Result) []string {
	if res == nil {
		return []string{Placeholder}
	}
	lines := make([]string, 0, len(res.Attributes))
	for _, a := range res.Attributes {
		lines = append(lines, a.Name+": "+a.Value)
	}
	if len(lines) == 0 {
		return []string{Placeholder}
	}
	return lines
}

// DimensionLines describes the matched price dimension: description, tier,
// unit and one pricePerUnit line per currency.
func DimensionLines(res *ratecode.Result) []string {
	if res == nil {
		return nil
	}
	d := res.Dimension
	lines := []string{
		"description: " + d.Description,
		"Tier: " + d.BeginRange + " - " + d.EndRange,
		"unit: " + d.Unit,
	}
	for _, p := range d.Prices {
		lines = append(lines, "pricePerUnit: "+p.Amount+" "+p.Currency)
	}
	return lines
}

// Price is a unit price with an optional quantity total.
type Price struct {
	Currency string `json:"currency" yaml:"currency"`
	Amount   string `json:"amount" yaml:"amount"`
	Total    string `json:"total,omitempty" yaml:"total,omitempty"`
}

// Dimension is the printable price dimension.
type Dimension struct {
	RateCode    string  `json:"rateCode" yaml:"rateCode"`
	Description string  `json:"description" yaml:"description"`
	BeginRange  string  `json:"beginRange" yaml:"beginRange"`
	EndRange    string  `json:"endRange" yaml:"endRange"`
	Unit        string  `json:"unit" yaml:"unit"`
	Prices      []Price `json:"pricePerUnit" yaml:"pricePerUnit"`
}

// View is the serializable form of a lookup, shared by the CLI, the HTTP
// API and the gRPC service.
type View struct {
	Service        string               `json:"service,omitempty" yaml:"service,omitempty"`
	Region         string               `json:"region,omitempty" yaml:"region,omitempty"`
	RateCode       string               `json:"rateCode" yaml:"rateCode"`
	TermType       string               `json:"termType" yaml:"termType"`
	EffectiveDate  string               `json:"effectiveDate,omitempty" yaml:"effectiveDate,omitempty"`
	TermAttributes map[string]string    `json:"termAttributes,omitempty" yaml:"termAttributes,omitempty"`
	ProductFamily  string               `json:"productFamily,omitempty" yaml:"productFamily,omitempty"`
	Attributes     []ratecode.Attribute `json:"attributes" yaml:"attributes"`
	Dimension      Dimension            `json:"dimension" yaml:"dimension"`
	Quantity       string               `json:"quantity,omitempty" yaml:"quantity,omitempty"`
}

// NewView builds the View of res. When quantity is set, every price gets
// a total of amount * quantity.
func NewView(service, region string, res *ratecode.Result, quantity *decimal.Decimal) (*View, error) {
	if res == nil {
		return nil, fmt.Errorf("nothing to render")
	}
	v := &View{
		Service:        service,
		Region:         region,
		RateCode:       res.Dimension.RateCode,
		TermType:       res.TermType,
		EffectiveDate:  res.EffectiveDate,
		TermAttributes: res.TermAttrs,
		ProductFamily:  res.ProductFamily,
		Attributes:     res.Attributes,
		Dimension: Dimension{
			RateCode:    res.Dimension.RateCode,
			Description: res.Dimension.Description,
			BeginRange:  res.Dimension.BeginRange,
			EndRange:    res.Dimension.EndRange,
			Unit:        res.Dimension.Unit,
			Prices:      make([]Price, 0, len(res.Dimension.Prices)),
		},
	}
	if quantity != nil {
		v.Quantity = quantity.String()
	}
	for _, p := range res.Dimension.Prices {
		price := Price{Currency: p.Currency, Amount: p.Amount}
		if quantity != nil {
			amount, err := decimal.NewFromString(p.Amount)
			if err != nil {
				return nil, fmt.Errorf("invalid %s price %q: %w", p.Currency, p.Amount, err)
			}
			price.Total = amount.Mul(*quantity).String()
		}
		v.Dimension.Prices = append(v.Dimension.Prices, price)
	}
	return v, nil
}

// Write encodes v to w in format. A nil view is the placeholder panel in
// text and null in json and yaml.
func Write(w io.Writer, format Format, v *View) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		_, err := io.WriteString(w, Text(v))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// Text is the plain-text results panel.
func Text(v *View) string {
	var b strings.Builder
	b.WriteString("Product Details\n")
	if v == nil {
		b.WriteString("  " + Placeholder + "\n")
		return b.String()
	}
	if len(v.Attributes) == 0 {
		b.WriteString("  " + Placeholder + "\n")
	}
	for _, a := range v.Attributes {
		fmt.Fprintf(&b, "  %s: %s\n", a.Name, a.Value)
	}

	fmt.Fprintf(&b, "Offer Terms (%s)\n", v.TermType)
	d := v.Dimension
	fmt.Fprintf(&b, "  description: %s\n", d.Description)
	fmt.Fprintf(&b, "  Tier: %s - %s\n", d.BeginRange, d.EndRange)
	fmt.Fprintf(&b, "  unit: %s\n", d.Unit)
	for _, p := range d.Prices {
		fmt.Fprintf(&b, "  pricePerUnit: %s %s\n", p.Amount, p.Currency)
	}
	if v.Quantity != "" {
		for _, p := range d.Prices {
			fmt.Fprintf(&b, "  total: %s %s (quantity %s)\n", p.Total, p.Currency, v.Quantity)
		}
	}
	return b.String()
}
