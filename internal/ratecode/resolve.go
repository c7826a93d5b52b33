package ratecode

import (
	"github.com/rshade/aws-ratecode-checker/internal/pricing"
)

// TermPriority is the order in which term categories are searched. The
// first category holding the rate code wins.
var TermPriority = []string{pricing.TermOnDemand, pricing.TermReserved}

// Attribute is one product attribute, in document order.
type Attribute struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Price is the unit price in one currency.
type Price struct {
	Currency string `json:"currency" yaml:"currency"`
	Amount   string `json:"amount" yaml:"amount"`
}

// Dimension is the matched price dimension.
type Dimension struct {
	RateCode    string  `json:"rateCode" yaml:"rateCode"`
	Description string  `json:"description" yaml:"description"`
	BeginRange  string  `json:"beginRange" yaml:"beginRange"`
	EndRange    string  `json:"endRange" yaml:"endRange"`
	Unit        string  `json:"unit" yaml:"unit"`
	Prices      []Price `json:"pricePerUnit" yaml:"pricePerUnit"`
}

// Result is a resolved rate code.
type Result struct {
	Code          Code              `json:"-" yaml:"-"`
	TermType      string            `json:"termType" yaml:"termType"`
	EffectiveDate string            `json:"effectiveDate,omitempty" yaml:"effectiveDate,omitempty"`
	TermAttrs     map[string]string `json:"termAttributes,omitempty" yaml:"termAttributes,omitempty"`
	ProductFamily string            `json:"productFamily,omitempty" yaml:"productFamily,omitempty"`
	Attributes    []Attribute       `json:"attributes" yaml:"attributes"`
	Dimension     Dimension         `json:"dimension" yaml:"dimension"`
}

// Resolve looks input up in doc. Checks run in this order: doc loaded,
// input well formed, SKU present, price dimension present under one of
// TermPriority.
func Resolve(doc *pricing.Document, input string) (*Result, error) {
	if doc == nil {
		return nil, ErrPricingNotLoaded
	}
	code, err := Parse(input)
	if err != nil {
		return nil, err
	}
	return ResolveCode(doc, code)
}

// ResolveCode is Resolve for an already parsed code.
func ResolveCode(doc *pricing.Document, code Code) (*Result, error) {
	if doc == nil {
		return nil, ErrPricingNotLoaded
	}
	// A product without an attributes object counts as missing.
	product, ok := doc.Product(code.SKU)
	if !ok || product.Attributes == nil {
		return nil, ErrSKUNotFound
	}

	for _, termType := range TermPriority {
		dim, ok := doc.PriceDimension(termType, code.SKU, code.OfferTermCode(), code.RateCode())
		if !ok {
			continue
		}
		res := &Result{
			Code:          code,
			TermType:      termType,
			EffectiveDate: doc.TermEffectiveDate(termType, code.SKU, code.OfferTermCode()),
			TermAttrs:     doc.Terms[termType][code.SKU][code.OfferTermCode()].TermAttributes,
			ProductFamily: product.ProductFamily,
			Attributes:    make([]Attribute, 0, len(product.Attributes)),
			Dimension: Dimension{
				RateCode:    code.RateCode(),
				Description: dim.Description,
				BeginRange:  dim.BeginRange,
				EndRange:    dim.EndRange,
				Unit:        dim.Unit,
				Prices:      make([]Price, 0, len(dim.PricePerUnit)),
			},
		}
		for _, a := range product.Attributes {
			res.Attributes = append(res.Attributes, Attribute{Name: a.Key, Value: a.Value})
		}
		for _, p := range dim.PricePerUnit {
			res.Dimension.Prices = append(res.Dimension.Prices, Price{Currency: p.Key, Amount: p.Value})
		}
		return res, nil
	}
	return nil, ErrNotFound
}
