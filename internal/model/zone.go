package model

// ZoneMatch is the zoning feature that intersects a query point.
type ZoneMatch struct {
	ZoneCode      string         `json:"zone_code"`
	ZoneName      string         `json:"zone_name"`
	RawAttributes map[string]any `json:"raw_attributes,omitempty"`
	// AllIntersectingZones lists every intersecting zone code in service order.
	// The first element is always ZoneCode.
	AllIntersectingZones []string `json:"all_intersecting_zones"`
}

// Overlapping reports whether the point fell on more than one zone polygon.
func (z ZoneMatch) Overlapping() bool {
	return len(z.AllIntersectingZones) > 1
}

// MatchKind records how a zone code was resolved against the rule catalog.
type MatchKind string

// Catalog match kinds.
const (
	MatchExact   MatchKind = "exact"
	MatchPrefix  MatchKind = "prefix"
	MatchDefault MatchKind = "default"
)

// RegulatoryParameters are the limits that apply to a zone. All five limits
// are always populated.
type RegulatoryParameters struct {
	Zone    string    `json:"zone" yaml:"zone"`
	Name    string    `json:"name" yaml:"name"`
	Matched MatchKind `json:"matched" yaml:"-"`

	MaxOccupancyRate    float64 `json:"max_occupancy_rate" yaml:"max_occupancy_rate"`       // percent
	BaseFloorAreaRatio  float64 `json:"base_floor_area_ratio" yaml:"base_floor_area_ratio"` // ratio
	MinPermeabilityRate float64 `json:"min_permeability_rate" yaml:"min_permeability_rate"` // percent
	MaxFloors           int     `json:"max_floors" yaml:"max_floors"`
	MinFrontSetback     float64 `json:"min_front_setback" yaml:"min_front_setback"` // meters
}
