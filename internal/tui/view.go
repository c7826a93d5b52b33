package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rshade/aws-ratecode-checker/internal/lookup"
	"github.com/rshade/aws-ratecode-checker/internal/picker"
	"github.com/rshade/aws-ratecode-checker/internal/ratecode"
	"github.com/rshade/aws-ratecode-checker/internal/render"
)

// statusLine is the one-line hint under the input fields.
func statusLine(s lookup.State) string {
	switch {
	case s.FetchErr != nil:
		return "error: " + s.FetchErr.Error()
	case s.CatalogLoading():
		return "loading services..."
	case s.RegionsLoading():
		return fmt.Sprintf("loading regions of %s...", s.Service)
	case s.LoadingPricing():
		return fmt.Sprintf("loading pricing data for %s in %s...", s.Service, s.Region)
	case errors.Is(s.InputErr, ratecode.ErrFormat):
		return s.InputErr.Error()
	}

	switch s.Stage() {
	case lookup.StageIdle:
		return "select a service"
	case lookup.StageServiceSelected, lookup.StageRegionsLoaded:
		return "select a region"
	case lookup.StagePricingLoaded:
		return "enter a rate code (SKU.OfferTermCode.RateCode) and press Enter"
	case lookup.StageResolved:
		return fmt.Sprintf("resolved under %s terms", s.Result.TermType)
	case lookup.StageLookupError:
		return s.InputErr.Error()
	default:
		return ""
	}
}

// resultsText is the content of the results panel.
func resultsText(s lookup.State) string {
	if s.Result == nil {
		return render.Text(nil)
	}
	v, err := render.NewView(s.Service, s.Region, s.Result, nil)
	if err != nil {
		return render.Text(nil)
	}
	return render.Text(v)
}

// entries are the autocomplete lines for opts.
func entries(opts []picker.Option) []string {
	if len(opts) == 0 {
		return nil
	}
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Label
	}
	return out
}

// match picks the option a typed text refers to: an exact value or label
// (case-insensitive), or the only remaining option.
func match(opts []picker.Option, text string) (picker.Option, bool) {
	text = strings.TrimSpace(text)
	for _, o := range opts {
		if strings.EqualFold(o.Value, text) || strings.EqualFold(o.Label, text) {
			return o, true
		}
	}
	if len(opts) == 1 {
		return opts[0], true
	}
	return picker.Option{}, false
}

// labelOf returns the label of value among opts, or value itself.
func labelOf(opts []picker.Option, value string) string {
	for _, o := range opts {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}
