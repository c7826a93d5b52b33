// Package picker holds the searchable service and region lists shown
// before a rate code can be looked up.
package picker

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rshade/aws-ratecode-checker/internal/pricing"
)

// Option is one entry of a picker list.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

var servicePrefix = regexp.MustCompile(`((^Amazon)|(^AWS)|(^aws))(.+)`)

// ServiceLabel splits a leading Amazon/AWS/aws from the rest of a service
// key: AmazonEC2 -> "Amazon EC2", awskms -> "aws kms".
func ServiceLabel(key string) string {
	return servicePrefix.ReplaceAllString(key, "${1} ${5}")
}

// RegionLabel is the display form of a region: "code - name".
func RegionLabel(r pricing.Region) string {
	return r.Code + " - " + r.Name
}

// ServiceOptions lists the services of offers whose key contains query,
// sorted case-insensitively. A nil catalog yields nil.
func ServiceOptions(offers *pricing.OffersIndex, query string) []Option {
	if offers == nil {
		return nil
	}
	q := strings.ToLower(query)
	opts := make([]Option, 0, len(offers.Offers))
	for key := range offers.Offers {
		if q != "" && !strings.Contains(strings.ToLower(key), q) {
			continue
		}
		label := ServiceLabel(key)
		opts = append(opts, Option{Value: key, Label: label, Name: label})
	}
	sort.Slice(opts, func(i, j int) bool {
		a, b := strings.ToLower(opts[i].Value), strings.ToLower(opts[j].Value)
		if a != b {
			return a < b
		}
		return opts[i].Value < opts[j].Value
	})
	return opts
}

// RegionOptions lists the regions whose code or name contains query,
// ordered by code. A nil mapping yields nil.
func RegionOptions(regions pricing.Regions, query string) []Option {
	if regions == nil {
		return nil
	}
	q := strings.ToLower(query)
	opts := make([]Option, 0, len(regions))
	for code, r := range regions {
		if r.Code == "" {
			r.Code = code
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(r.Code), q) &&
			!strings.Contains(strings.ToLower(r.Name), q) {
			continue
		}
		opts = append(opts, Option{Value: r.Code, Label: RegionLabel(r), Name: r.Name})
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].Value < opts[j].Value })
	return opts
}
