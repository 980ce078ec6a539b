package model

import (
	"fmt"
	"math"
)

// DefaultSRID is the spatial reference of the zoning service: SIRGAS 2000 / UTM zone 22S.
const DefaultSRID = 31982

// GeoPoint is a WGS84 geodetic coordinate in degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate rejects non-finite and out-of-range coordinates.
func (p GeoPoint) Validate() error {
	switch {
	case math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0):
		return &InvalidCoordinateError{Point: p, Reason: "latitude is not a finite number"}
	case math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0):
		return &InvalidCoordinateError{Point: p, Reason: "longitude is not a finite number"}
	case p.Latitude < -90 || p.Latitude > 90:
		return &InvalidCoordinateError{Point: p, Reason: "latitude out of range [-90, 90]"}
	case p.Longitude < -180 || p.Longitude > 180:
		return &InvalidCoordinateError{Point: p, Reason: "longitude out of range [-180, 180]"}
	}
	return nil
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Latitude, p.Longitude)
}

// ProjectedPoint is a planar coordinate in the zoning service's reference system.
type ProjectedPoint struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	SRID int     `json:"srid"`
}

func (p ProjectedPoint) String() string {
	return fmt.Sprintf("(%.2f, %.2f) srid=%d", p.X, p.Y, p.SRID)
}
