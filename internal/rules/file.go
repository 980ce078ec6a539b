package rules

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// File is the YAML shape of a rule catalog:
//
//	rules:
//	  replace: false
//	  default: {max_occupancy_rate: 50, base_floor_area_ratio: 1.0, ...}
//	  exact:
//	    - {zone: ZC, name: Zona Central, max_floors: 14}
//	  prefixes:
//	    - {zone: ZR-OC, max_floors: 3}
type File struct {
	Replace  bool        `yaml:"replace"`
	Default  FileLimits  `yaml:"default"`
	Exact    []FileEntry `yaml:"exact"`
	Prefixes []FileEntry `yaml:"prefixes"`
}

// FileLimits holds optional limits. Absent fields inherit from the fallback set.
type FileLimits struct {
	MaxOccupancyRate    *float64 `yaml:"max_occupancy_rate"`
	BaseFloorAreaRatio  *float64 `yaml:"base_floor_area_ratio"`
	MinPermeabilityRate *float64 `yaml:"min_permeability_rate"`
	MaxFloors           *int     `yaml:"max_floors"`
	MinFrontSetback     *float64 `yaml:"min_front_setback"`
}

// FileEntry is one zone or prefix row.
type FileEntry struct {
	Zone       string `yaml:"zone"`
	Name       string `yaml:"name"`
	FileLimits `yaml:",inline"`
}

// LoadFile reads a catalog from a YAML file and applies it on top of base.
// With replace set, base contributes only the fallback values for missing
// fields; otherwise exact entries override base by code and file prefixes
// take priority over base prefixes.
func LoadFile(path string, base *Catalog) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: read catalog %s", path)
	}
	return Parse(data, base)
}

// Parse decodes a YAML catalog document. See LoadFile.
func Parse(data []byte, base *Catalog) (*Catalog, error) {
	if base == nil {
		base = Default()
	}

	var wrapper struct {
		Rules File `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "rules: parse catalog")
	}
	f := wrapper.Rules

	fallback := f.Default.apply(base.fallback)

	exactParent := func(code string) Entry {
		if e, ok := base.exact[code]; ok && !f.Replace {
			return e
		}
		return Entry{Limits: fallback}
	}
	prefixParent := func(code string) Entry {
		if !f.Replace {
			for _, e := range base.prefixes {
				if e.Code == code {
					return e
				}
			}
		}
		return Entry{Limits: fallback}
	}

	exact, err := decodeEntries("exact", f.Exact, exactParent)
	if err != nil {
		return nil, err
	}
	prefixes, err := decodeEntries("prefix", f.Prefixes, prefixParent)
	if err != nil {
		return nil, err
	}

	if f.Replace {
		return New(fallback, exact, prefixes), nil
	}

	merged := make([]Entry, 0, len(base.exact)+len(exact))
	for _, e := range base.exact {
		merged = append(merged, e)
	}
	merged = append(merged, exact...)

	overridden := make(map[string]bool, len(prefixes))
	for _, e := range prefixes {
		overridden[e.Code] = true
	}
	for _, e := range base.prefixes {
		if !overridden[e.Code] {
			prefixes = append(prefixes, e)
		}
	}

	return New(fallback, merged, prefixes), nil
}

func decodeEntries(kind string, in []FileEntry, parent func(code string) Entry) ([]Entry, error) {
	out := make([]Entry, 0, len(in))
	for i, fe := range in {
		code := canonical(fe.Zone)
		if code == "" {
			return nil, eris.Errorf("rules: %s entry %d has no zone", kind, i)
		}
		p := parent(code)
		name := fe.Name
		if name == "" {
			name = p.Name
		}
		out = append(out, Entry{Code: code, Name: name, Limits: fe.apply(p.Limits)})
	}
	return out, nil
}

func (fl FileLimits) apply(l Limits) Limits {
	if fl.MaxOccupancyRate != nil {
		l.MaxOccupancyRate = *fl.MaxOccupancyRate
	}
	if fl.BaseFloorAreaRatio != nil {
		l.BaseFloorAreaRatio = *fl.BaseFloorAreaRatio
	}
	if fl.MinPermeabilityRate != nil {
		l.MinPermeabilityRate = *fl.MinPermeabilityRate
	}
	if fl.MaxFloors != nil {
		l.MaxFloors = *fl.MaxFloors
	}
	if fl.MinFrontSetback != nil {
		l.MinFrontSetback = *fl.MinFrontSetback
	}
	return l
}
