package picker

import (
	"github.com/rshade/aws-ratecode-checker/internal/pricing"
)

// RegionPicker is the searchable list of regions for the selected service.
// It stays disabled until a service is chosen.
type RegionPicker struct {
	regions  pricing.Regions
	disabled bool
	selected string
	query    string
	onSelect func(string)
}

// NewRegionPicker returns a disabled picker.
func NewRegionPicker(onSelect func(string)) *RegionPicker {
	return &RegionPicker{disabled: true, onSelect: onSelect}
}

// SetRegions replaces the resolved regions; nil means not loaded yet.
func (p *RegionPicker) SetRegions(regions pricing.Regions) {
	p.regions = regions
}

// SetDisabled enables or disables the picker.
func (p *RegionPicker) SetDisabled(disabled bool) {
	p.disabled = disabled
}

// Disabled reports whether the picker accepts input.
func (p *RegionPicker) Disabled() bool {
	return p.disabled
}

// Loading reports whether the picker is enabled but has no regions yet.
func (p *RegionPicker) Loading() bool {
	return !p.disabled && p.regions == nil
}

func (p *RegionPicker) SetQuery(q string) {
	p.query = q
}

func (p *RegionPicker) Query() string {
	return p.query
}

// Options returns the regions matching the search text. A disabled picker
// offers nothing.
func (p *RegionPicker) Options() []Option {
	if p.disabled {
		return nil
	}
	return RegionOptions(p.regions, p.query)
}

func (p *RegionPicker) Selected() string {
	return p.selected
}

func (p *RegionPicker) SetSelected(code string) {
	p.selected = code
}

// Select picks code if it is one of the loaded regions.
func (p *RegionPicker) Select(code string) bool {
	if p.disabled || p.regions == nil {
		return false
	}
	if _, ok := p.regions[code]; !ok {
		return false
	}
	p.selected = code
	if p.onSelect != nil {
		p.onSelect(code)
	}
	return true
}

// Close clears the search text.
func (p *RegionPicker) Close() {
	p.query = ""
}
