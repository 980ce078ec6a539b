package model

import (
	"errors"
	"fmt"
)

// Error kinds reported to callers.
const (
	KindGeocoding         = "geocoding"
	KindInvalidCoordinate = "invalid_coordinate"
	KindZoneService       = "zone_service"
	KindNoZoneFound       = "no_zone_found"
	KindInternal          = "internal"
)

// GeocodingError means the address could not be resolved to a coordinate.
type GeocodingError struct {
	Address    string
	StatusCode int
	Err        error
}

func (e *GeocodingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("geocoding %q failed", e.Address)
	}
	return fmt.Sprintf("geocoding %q failed: %v", e.Address, e.Err)
}

func (e *GeocodingError) Unwrap() error { return e.Err }

// InvalidCoordinateError means a geodetic coordinate is malformed or cannot be
// represented in the target reference system.
type InvalidCoordinateError struct {
	Point  GeoPoint
	Reason string
	Err    error
}

func (e *InvalidCoordinateError) Error() string {
	msg := fmt.Sprintf("invalid coordinate %s: %s", e.Point, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidCoordinateError) Unwrap() error { return e.Err }

// ZoneServiceError is a transport, parse, or timeout failure against the
// zoning feature service.
type ZoneServiceError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ZoneServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("zone service %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("zone service %s: %v", e.Op, e.Err)
}

func (e *ZoneServiceError) Unwrap() error { return e.Err }

// NoZoneFoundError means the query point intersects no zone polygon.
type NoZoneFoundError struct {
	Point ProjectedPoint
}

func (e *NoZoneFoundError) Error() string {
	return fmt.Sprintf("no zone intersects point %s", e.Point)
}

// Kind classifies err into one of the error kinds. Errors outside the
// taxonomy report KindInternal.
func Kind(err error) string {
	var (
		geo  *GeocodingError
		crd  *InvalidCoordinateError
		svc  *ZoneServiceError
		none *NoZoneFoundError
	)
	switch {
	case errors.As(err, &geo):
		return KindGeocoding
	case errors.As(err, &crd):
		return KindInvalidCoordinate
	case errors.As(err, &none):
		return KindNoZoneFound
	case errors.As(err, &svc):
		return KindZoneService
	default:
		return KindInternal
	}
}
