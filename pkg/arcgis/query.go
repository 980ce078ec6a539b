// Package arcgis builds ArcGIS REST feature-layer queries and decodes their
// responses, including responses that arrive wrapped in a rendered HTML page.
package arcgis

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Spatial relations and geometry types understood by the query endpoint.
const (
	GeometryPoint        = "esriGeometryPoint"
	SpatialRelIntersects = "esriSpatialRelIntersects"
)

// PointQuery describes a point-in-polygon query against one layer.
type PointQuery struct {
	Point          *geom.Point // must carry an SRID
	OutFields      []string    // nil or empty selects every field
	ReturnGeometry bool
}

// NewPoint returns a 2D point tagged with srid.
func NewPoint(x, y float64, srid int) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(srid)
}

type spatialReference struct {
	WKID int `json:"wkid"`
}

type pointGeometry struct {
	X                float64          `json:"x"`
	Y                float64          `json:"y"`
	SpatialReference spatialReference `json:"spatialReference"`
}

// PointGeometryJSON encodes pt in the Esri JSON point format.
func PointGeometryJSON(pt *geom.Point) (string, error) {
	if pt == nil || pt.Empty() {
		return "", eris.New("arcgis: empty point")
	}
	if pt.SRID() == 0 {
		return "", eris.New("arcgis: point has no spatial reference")
	}
	b, err := json.Marshal(pointGeometry{
		X:                pt.X(),
		Y:                pt.Y(),
		SpatialReference: spatialReference{WKID: pt.SRID()},
	})
	if err != nil {
		return "", eris.Wrap(err, "arcgis: encode point geometry")
	}
	return string(b), nil
}

// LayerQueryURL builds the GET URL for an intersects query on layer of the
// map/feature service at serviceURL.
func LayerQueryURL(serviceURL string, layer int, q PointQuery) (string, error) {
	geometry, err := PointGeometryJSON(q.Point)
	if err != nil {
		return "", err
	}
	base := strings.TrimRight(serviceURL, "/")
	if base == "" {
		return "", eris.New("arcgis: empty service url")
	}
	if _, err := url.Parse(base); err != nil {
		return "", eris.Wrap(err, "arcgis: parse service url")
	}

	outFields := "*"
	if len(q.OutFields) > 0 {
		outFields = strings.Join(q.OutFields, ",")
	}

	params := url.Values{
		"f":              {"json"},
		"geometry":       {geometry},
		"geometryType":   {GeometryPoint},
		"inSR":           {strconv.Itoa(q.Point.SRID())},
		"spatialRel":     {SpatialRelIntersects},
		"outFields":      {outFields},
		"returnGeometry": {strconv.FormatBool(q.ReturnGeometry)},
	}
	return base + "/" + strconv.Itoa(layer) + "/query?" + params.Encode(), nil
}
