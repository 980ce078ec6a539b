// Package geodesy converts between WGS84 geodetic coordinates and the
// projected reference system used by the zoning service. The math is
// delegated to PROJ.
package geodesy

import (
	"math"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-proj/v10"

	"github.com/sells-group/zoning-cli/internal/model"
)

// Default reference systems: WGS84 geographic in, SIRGAS 2000 / UTM 22S out.
const (
	SourceCRS = "EPSG:4326"
	TargetCRS = "EPSG:31982"
)

// Transformer converts geodetic points to projected points and back.
type Transformer interface {
	ToProjected(p model.GeoPoint) (model.ProjectedPoint, error)
	ToGeodetic(p model.ProjectedPoint) (model.GeoPoint, error)
}

// Projector is a PROJ-backed Transformer. It is safe for concurrent use.
type Projector struct {
	mu   sync.Mutex // PROJ handles share a non-reentrant context
	pj   *proj.PJ
	srid int
}

// New creates a Projector from sourceCRS (geographic, lat/lon axis order) to
// targetCRS. srid is stamped on every projected point.
func New(sourceCRS, targetCRS string, srid int) (*Projector, error) {
	pj, err := proj.NewCRSToCRS(sourceCRS, targetCRS, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "geodesy: create %s -> %s", sourceCRS, targetCRS)
	}
	return &Projector{pj: pj, srid: srid}, nil
}

// NewDefault creates the EPSG:4326 -> EPSG:31982 Projector.
func NewDefault() (*Projector, error) {
	return New(SourceCRS, TargetCRS, model.DefaultSRID)
}

// SRID returns the spatial reference identifier of projected output.
func (p *Projector) SRID() int { return p.srid }

// ToProjected implements Transformer.
func (p *Projector) ToProjected(pt model.GeoPoint) (model.ProjectedPoint, error) {
	if err := pt.Validate(); err != nil {
		return model.ProjectedPoint{}, err
	}

	p.mu.Lock()
	out, err := p.pj.Forward(proj.NewCoord(pt.Latitude, pt.Longitude, 0, 0))
	p.mu.Unlock()
	if err != nil {
		return model.ProjectedPoint{}, &model.InvalidCoordinateError{
			Point:  pt,
			Reason: "cannot project to " + TargetCRS,
			Err:    eris.Wrap(err, "geodesy: forward"),
		}
	}
	if !finite(out.X()) || !finite(out.Y()) {
		return model.ProjectedPoint{}, &model.InvalidCoordinateError{Point: pt, Reason: "projection produced a non-finite result"}
	}

	return model.ProjectedPoint{X: out.X(), Y: out.Y(), SRID: p.srid}, nil
}

// ToGeodetic implements Transformer.
func (p *Projector) ToGeodetic(pt model.ProjectedPoint) (model.GeoPoint, error) {
	if !finite(pt.X) || !finite(pt.Y) {
		return model.GeoPoint{}, &model.InvalidCoordinateError{
			Point:  model.GeoPoint{Latitude: math.NaN(), Longitude: math.NaN()},
			Reason: "projected coordinate is not finite",
		}
	}

	p.mu.Lock()
	out, err := p.pj.Inverse(proj.NewCoord(pt.X, pt.Y, 0, 0))
	p.mu.Unlock()
	if err != nil {
		return model.GeoPoint{}, &model.InvalidCoordinateError{
			Point:  model.GeoPoint{Latitude: math.NaN(), Longitude: math.NaN()},
			Reason: "cannot unproject from " + TargetCRS,
			Err:    eris.Wrap(err, "geodesy: inverse"),
		}
	}

	gp := model.GeoPoint{Latitude: out.X(), Longitude: out.Y()}
	if err := gp.Validate(); err != nil {
		return model.GeoPoint{}, err
	}
	return gp, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
