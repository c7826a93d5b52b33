package pricing

// Term categories used by the AWS Price List API under "terms".
const (
	TermOnDemand = "OnDemand"
	TermReserved = "Reserved"
)

// OffersIndex is the global offers index published at OffersPath.
// It maps every service key (e.g. "AmazonEC2") to its offer record.
type OffersIndex struct {
	FormatVersion   string           `json:"formatVersion"`
	Disclaimer      string           `json:"disclaimer"`
	PublicationDate string           `json:"publicationDate"`
	Offers          map[string]Offer `json:"offers"`
}

// Offer points at the per-service documents. Only CurrentRegionIndexURL is
// needed for lookups; the other URLs are kept for display and mirroring.
type Offer struct {
	OfferCode                  string `json:"offerCode"`
	VersionIndexURL            string `json:"versionIndexUrl"`
	CurrentVersionURL          string `json:"currentVersionUrl"`
	CurrentRegionIndexURL      string `json:"currentRegionIndexUrl"`
	SavingsPlanVersionIndexURL string `json:"savingsPlanVersionIndexUrl,omitempty"`
}

// RegionIndex is a service's region index: one entry per region that has a
// pricing document.
type RegionIndex struct {
	FormatVersion   string                 `json:"formatVersion"`
	Disclaimer      string                 `json:"disclaimer"`
	PublicationDate string                 `json:"publicationDate"`
	Regions         map[string]RegionEntry `json:"regions"`
}

// RegionEntry locates the current pricing document of one region.
type RegionEntry struct {
	RegionCode        string `json:"regionCode"`
	CurrentVersionURL string `json:"currentVersionUrl"`
}

// Region is a region index entry joined with its human-readable name.
type Region struct {
	Name string `json:"name"`
	Code string `json:"code"`
	URL  string `json:"currentVersionUrl"`
}

// Regions maps region code to the resolved region of one service.
type Regions map[string]Region

// Document represents the structure of the official AWS Price List API JSON
// response for one service in one region.
type Document struct {
	FormatVersion   string                                `json:"formatVersion"`
	Disclaimer      string                                `json:"disclaimer"`
	OfferCode       string                                `json:"offerCode"`
	Version         string                                `json:"version"`
	PublicationDate string                                `json:"publicationDate"`
	Products        map[string]Product                    `json:"products"`
	Terms           map[string]map[string]map[string]Term `json:"terms"` // Type -> SKU -> OfferTermCode -> Term
}

// Product represents an AWS product entry in the pricing data.
// Attributes keep the order in which they appear in the document.
type Product struct {
	Sku           string         `json:"sku"`
	ProductFamily string         `json:"productFamily"`
	Attributes    OrderedStrings `json:"attributes"`
}

// Term represents a pricing term offer (e.g., OnDemand, Reserved).
type Term struct {
	OfferTermCode   string                    `json:"offerTermCode"`
	Sku             string                    `json:"sku"`
	EffectiveDate   string                    `json:"effectiveDate"`
	PriceDimensions map[string]PriceDimension `json:"priceDimensions"`
	TermAttributes  map[string]string         `json:"termAttributes,omitempty"`
}

// PriceDimension represents a specific pricing dimension within a term.
type PriceDimension struct {
	RateCode     string         `json:"rateCode"`
	Description  string         `json:"description"`
	BeginRange   string         `json:"beginRange"`
	EndRange     string         `json:"endRange"`
	Unit         string         `json:"unit"`
	PricePerUnit OrderedStrings `json:"pricePerUnit"` // Currency -> Amount (string)
	AppliesTo    []string       `json:"appliesTo"`
}

// Product returns the product for sku.
// Returns (product, true) if found, (zero, false) if not found.
func (d *Document) Product(sku string) (Product, bool) {
	if d == nil {
		return Product{}, false
	}
	p, ok := d.Products[sku]
	return p, ok
}

// PriceDimension walks terms[termType][sku][offerTermCode].priceDimensions[rateCode].
// Returns (dimension, true) if every level exists, (zero, false) otherwise.
func (d *Document) PriceDimension(termType, sku, offerTermCode, rateCode string) (PriceDimension, bool) {
	if d == nil {
		return PriceDimension{}, false
	}
	term, ok := d.Terms[termType][sku][offerTermCode]
	if !ok {
		return PriceDimension{}, false
	}
	dim, ok := term.PriceDimensions[rateCode]
	return dim, ok
}

// TermEffectiveDate returns the effective date of an offer term, if present.
func (d *Document) TermEffectiveDate(termType, sku, offerTermCode string) string {
	if d == nil {
		return ""
	}
	return d.Terms[termType][sku][offerTermCode].EffectiveDate
}
