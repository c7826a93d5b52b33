package lookup

import (
	"errors"

	"github.com/rshade/aws-ratecode-checker/internal/pricing"
	"github.com/rshade/aws-ratecode-checker/internal/ratecode"
)

// Stage is the position of a lookup cycle in
// idle -> service selected -> regions loaded -> region selected ->
// pricing loaded -> resolved | lookup error.
type Stage int

const (
	StageIdle Stage = iota
	StageServiceSelected
	StageRegionsLoaded
	StageRegionSelected
	StagePricingLoaded
	StageResolved
	StageLookupError
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageServiceSelected:
		return "service-selected"
	case StageRegionsLoaded:
		return "regions-loaded"
	case StageRegionSelected:
		return "region-selected"
	case StagePricingLoaded:
		return "pricing-loaded"
	case StageResolved:
		return "resolved"
	case StageLookupError:
		return "lookup-error"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of a Controller. The pointers it holds
// are never mutated after a fetch completes.
type State struct {
	Session string

	Offers      *pricing.OffersIndex
	RegionNames pricing.RegionNames
	Service     string
	Regions     pricing.Regions
	Region      string
	Document    *pricing.Document

	// Input is the upper-cased rate code as typed.
	Input string
	// InputErr is ratecode.ErrFormat while typing, or the failure of the
	// last Confirm.
	InputErr error
	Result   *ratecode.Result

	// FetchErr is the last failed download, if any.
	FetchErr error
}

// Stage derives the lookup stage from the snapshot.
func (s State) Stage() Stage {
	switch {
	case s.Result != nil:
		return StageResolved
	case s.InputErr != nil && !errors.Is(s.InputErr, ratecode.ErrFormat):
		return StageLookupError
	case s.Document != nil:
		return StagePricingLoaded
	case s.Region != "":
		return StageRegionSelected
	case s.Regions != nil:
		return StageRegionsLoaded
	case s.Service != "":
		return StageServiceSelected
	default:
		return StageIdle
	}
}

// CatalogLoading reports whether the service list is still loading.
func (s State) CatalogLoading() bool {
	return s.Offers == nil
}

// RegionPickerDisabled reports whether no service is selected yet.
func (s State) RegionPickerDisabled() bool {
	return s.Service == ""
}

// RegionsLoading reports whether the regions of the selected service are
// still loading.
func (s State) RegionsLoading() bool {
	return s.Service != "" && s.Regions == nil
}

// LoadingPricing reports whether a region is selected but its pricing
// document has not arrived.
func (s State) LoadingPricing() bool {
	return s.Region != "" && s.Document == nil
}

// InputDisabled reports whether the rate-code field should accept input.
func (s State) InputDisabled() bool {
	return s.Region == ""
}
