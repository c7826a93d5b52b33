package pricing

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/goccy/go-json"
)

// defaultRegionNames is the region-name table shipped with the binary.
//
//go:embed data/regions_info.json
var defaultRegionNames []byte

// RegionNames maps a region code to its human-readable name.
type RegionNames map[string]string

// Name returns the human name for code, falling back to the code itself.
func (n RegionNames) Name(code string) string {
	if name, ok := n[code]; ok && name != "" {
		return name
	}
	return code
}

// UnmarshalJSON accepts either the keyed form
//
//	{"us-east-1": {"name": "US East (N. Virginia)"}}
//
// or the list form
//
//	[{"Code": "us-east-1", "Name": "US East (N. Virginia)"}]
func (n *RegionNames) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*n = nil
		return nil
	}

	out := RegionNames{}
	switch trimmed[0] {
	case '{':
		var keyed map[string]struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return fmt.Errorf("failed to parse region names: %w", err)
		}
		for code, entry := range keyed {
			out[code] = entry.Name
		}
	case '[':
		var list []struct {
			Code string `json:"Code"`
			Name string `json:"Name"`
		}
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("failed to parse region names: %w", err)
		}
		for _, entry := range list {
			if entry.Code == "" {
				continue
			}
			out[entry.Code] = entry.Name
		}
	default:
		return fmt.Errorf("failed to parse region names: unexpected %q", trimmed[0])
	}
	*n = out
	return nil
}

// ParseRegionNames decodes a region-name table.
func ParseRegionNames(raw []byte) (RegionNames, error) {
	var names RegionNames
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, err
	}
	if names == nil {
		return nil, fmt.Errorf("region names: empty table")
	}
	return names, nil
}

// DefaultRegionNames returns the embedded region-name table.
func DefaultRegionNames() []byte {
	return defaultRegionNames
}

// JoinRegions resolves a service's region index against the name table.
// A region without a name keeps its code as name.
func JoinRegions(idx *RegionIndex, names RegionNames) Regions {
	if idx == nil {
		return nil
	}
	out := make(Regions, len(idx.Regions))
	for code, entry := range idx.Regions {
		out[code] = Region{
			Name: names.Name(code),
			Code: code,
			URL:  entry.CurrentVersionURL,
		}
	}
	return out
}
