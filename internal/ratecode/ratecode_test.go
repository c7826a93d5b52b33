package ratecode

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/aws-ratecode-checker/internal/pricing"
	"github.com/rshade/aws-ratecode-checker/internal/pricingtest"
)

func loadDocument(t *testing.T, raw string) *pricing.Document {
	t.Helper()
	var doc pricing.Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return &doc
}

func TestValid(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"ABCDE12345.JRTCKX.6YS6EN", true},
		{"abcde12345.jrtckx.6ys6en", true},
		{strings.Repeat("A", 20) + "." + strings.Repeat("B", 20) + "." + strings.Repeat("C", 20), true},
		{"ABCD.JRTCKX.6YS6EN", false},
		{strings.Repeat("A", 21) + ".JRTCKX.6YS6EN", false},
		{"ABCDE12345.JRTCKX", false},
		{"ABCDE12345.JRTCKX.6YS6EN.EXTRA", false},
		{"ABCDE-2345.JRTCKX.6YS6EN", false},
		{"ABCDE12345..JRTCKX.6YS6EN", false},
		{"bad code", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.input))
		})
	}
}

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "short invalid input is not flagged", input: "ABC.DEF", wantErr: false},
		{name: "exactly thirty invalid characters", input: strings.Repeat("X", 30), wantErr: false},
		{name: "thirty one invalid characters", input: strings.Repeat("X", 31), wantErr: true},
		{name: "long valid code", input: pricingtest.UnknownSKURateCode, wantErr: false},
		{name: "long code with a bad character", input: "ABCDE12345.JRTCKXETXF.6YS6EN2CT7!", wantErr: true},
		{name: "multibyte runes counted once", input: strings.Repeat("é", 30), wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFormat(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrFormat)
				assert.EqualError(t, err, "wrong rate code format")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParse(t *testing.T) {
	code, err := Parse("ABCDE12345.JRTCKX.6YS6EN")
	require.NoError(t, err)

	assert.Equal(t, Code{SKU: "ABCDE12345", OfferTerm: "JRTCKX", PriceDimension: "6YS6EN"}, code)
	assert.Equal(t, "ABCDE12345.JRTCKX", code.OfferTermCode())
	assert.Equal(t, "ABCDE12345.JRTCKX.6YS6EN", code.RateCode())
	assert.Equal(t, "ABCDE12345.JRTCKX.6YS6EN", code.String())

	_, err = Parse("bad code")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ABCDE12345.JRTCKX.6YS6EN", Normalize("  abcde12345.jrtckx.6ys6en "))
}

func TestResolve_OnDemand(t *testing.T) {
	doc := loadDocument(t, pricingtest.EC2USEast1JSON)

	res, err := Resolve(doc, pricingtest.OnDemandRateCode)
	require.NoError(t, err)

	assert.Equal(t, pricing.TermOnDemand, res.TermType)
	assert.Equal(t, "Compute Instance", res.ProductFamily)
	assert.Equal(t, []Attribute{{Name: "instanceType", Value: "m5.large"}}, res.Attributes)
	assert.Equal(t, Dimension{
		RateCode:    "ABCDE12345.JRTCKX.6YS6EN",
		Description: "per hour",
		BeginRange:  "0",
		EndRange:    "Inf",
		Unit:        "Hrs",
		Prices:      []Price{{Currency: "USD", Amount: "0.1"}},
	}, res.Dimension)
	assert.Equal(t, "2024-01-01T00:00:00Z", res.EffectiveDate)
}

func TestResolve_ReservedOnly(t *testing.T) {
	doc := loadDocument(t, pricingtest.EC2USEast1JSON)

	res, err := Resolve(doc, pricingtest.ReservedRateCode)
	require.NoError(t, err)

	assert.Equal(t, pricing.TermReserved, res.TermType)
	assert.Equal(t, "Upfront Fee", res.Dimension.Description)
	assert.Equal(t, "1yr", res.TermAttrs["LeaseContractLength"])

	names := make([]string, 0, len(res.Attributes))
	for _, a := range res.Attributes {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"servicecode", "location", "instanceType", "vcpu", "memory"}, names)
}

func TestResolve_PrefersOnDemand(t *testing.T) {
	doc := loadDocument(t, pricingtest.EC2USEast1JSON)

	res, err := Resolve(doc, pricingtest.AmbiguousRateCode)
	require.NoError(t, err)

	assert.Equal(t, pricing.TermOnDemand, res.TermType)
	assert.Equal(t, "on demand t3.micro", res.Dimension.Description)
	assert.Equal(t, []Price{
		{Currency: "USD", Amount: "0.0104000000"},
		{Currency: "CNY", Amount: "0.0700000000"},
	}, res.Dimension.Prices)
}

func TestResolve_Errors(t *testing.T) {
	doc := loadDocument(t, pricingtest.EC2USEast1JSON)

	tests := []struct {
		name    string
		doc     *pricing.Document
		input   string
		wantErr error
		outcome string
	}{
		{name: "no document", doc: nil, input: "bad code", wantErr: ErrPricingNotLoaded, outcome: "not_loaded"},
		{name: "no document wins over valid code", doc: nil, input: pricingtest.OnDemandRateCode, wantErr: ErrPricingNotLoaded, outcome: "not_loaded"},
		{name: "malformed", doc: doc, input: "bad code", wantErr: ErrInvalid, outcome: "invalid"},
		{name: "unknown sku", doc: doc, input: pricingtest.UnknownSKURateCode, wantErr: ErrSKUNotFound, outcome: "sku_not_found"},
		{name: "unknown dimension", doc: doc, input: pricingtest.MissingDimensionRateCode, wantErr: ErrNotFound, outcome: "not_found"},
		{name: "code from another region", doc: doc, input: pricingtest.WestRateCode, wantErr: ErrSKUNotFound, outcome: "sku_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(tt.doc, tt.input)
			assert.Nil(t, res)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.outcome, Outcome(err))
		})
	}
}

func TestResolve_ProductWithoutAttributes(t *testing.T) {
	doc := &pricing.Document{
		Products: map[string]pricing.Product{"ABCDE12345": {Sku: "ABCDE12345"}},
	}

	_, err := Resolve(doc, pricingtest.OnDemandRateCode)
	assert.ErrorIs(t, err, ErrSKUNotFound)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "resolved", Outcome(nil))
	assert.Equal(t, "invalid", Outcome(ErrFormat))
	assert.Equal(t, "error", Outcome(assert.AnError))
}
