package picker

import (
	"github.com/rshade/aws-ratecode-checker/internal/pricing"
)

// ServicePicker is the searchable list of service keys. It is not safe for
// concurrent use; front-ends drive it from their UI goroutine.
type ServicePicker struct {
	offers   *pricing.OffersIndex
	selected string
	query    string
	onSelect func(string)
}

// NewServicePicker returns a picker in the loading state. onSelect, if not
// nil, receives every selection made through Select.
func NewServicePicker(onSelect func(string)) *ServicePicker {
	return &ServicePicker{onSelect: onSelect}
}

// SetCatalog replaces the offers catalog; nil puts the picker back into
// the loading state.
func (p *ServicePicker) SetCatalog(offers *pricing.OffersIndex) {
	p.offers = offers
}

// Loading reports whether the catalog is still missing.
func (p *ServicePicker) Loading() bool {
	return p.offers == nil
}

// SetQuery sets the search text.
func (p *ServicePicker) SetQuery(q string) {
	p.query = q
}

// Query returns the search text.
func (p *ServicePicker) Query() string {
	return p.query
}

// Options returns the entries matching the search text.
func (p *ServicePicker) Options() []Option {
	return ServiceOptions(p.offers, p.query)
}

// Selected returns the current selection, or "".
func (p *ServicePicker) Selected() string {
	return p.selected
}

// SetSelected mirrors a selection made elsewhere without notifying.
func (p *ServicePicker) SetSelected(key string) {
	p.selected = key
}

// Select picks key if the catalog has it. It reports whether the
// selection was accepted.
func (p *ServicePicker) Select(key string) bool {
	if p.offers == nil {
		return false
	}
	if _, ok := p.offers.Offers[key]; !ok {
		return false
	}
	p.selected = key
	if p.onSelect != nil {
		p.onSelect(key)
	}
	return true
}

// Close clears the search text.
func (p *ServicePicker) Close() {
	p.query = ""
}
