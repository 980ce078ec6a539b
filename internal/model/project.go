package model

import "sort"

// ProjectMeasurements are the declared figures of a building project.
// Areas are in square meters, distances in meters.
type ProjectMeasurements struct {
	LotArea            float64 `json:"lot_area" yaml:"lot_area"`
	FootprintArea      float64 `json:"footprint_area" yaml:"footprint_area"`
	CountableBuiltArea float64 `json:"countable_built_area" yaml:"countable_built_area"`
	PermeableArea      float64 `json:"permeable_area" yaml:"permeable_area"`
	Floors             int     `json:"floors" yaml:"floors"`
	FrontSetback       float64 `json:"front_setback" yaml:"front_setback"`

	ParkingTotal        int `json:"parking_total" yaml:"parking_total"`
	ParkingSpecialNeeds int `json:"parking_special_needs" yaml:"parking_special_needs"`
	ParkingElderly      int `json:"parking_elderly" yaml:"parking_elderly"`

	HousingUnits int `json:"housing_units" yaml:"housing_units"`

	// Categories carries project flags such as "social_housing". No limit
	// depends on them; the flags that are set are echoed on the report.
	Categories map[string]bool `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// CategoryList returns the set flags in Categories, sorted.
func (m ProjectMeasurements) CategoryList() []string {
	var out []string
	for name, set := range m.Categories {
		if set {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
