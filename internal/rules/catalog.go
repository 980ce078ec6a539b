// Package rules maps zone codes to the regulatory limits of the Curitiba
// zoning law (Lei 15.511/2019).
package rules

import (
	"sort"
	"strings"

	"github.com/sells-group/zoning-cli/internal/model"
)

// Limits is a parameter set without zone identity.
type Limits struct {
	MaxOccupancyRate    float64
	BaseFloorAreaRatio  float64
	MinPermeabilityRate float64
	MaxFloors           int
	MinFrontSetback     float64
}

// Entry binds a zone code or family prefix to its limits.
type Entry struct {
	Code   string
	Name   string
	Limits Limits
}

// Catalog resolves zone codes to parameter sets. A Catalog is immutable once
// built and safe for concurrent use.
type Catalog struct {
	exact    map[string]Entry
	prefixes []Entry
	fallback Limits
}

// DefaultLimits is the conservative parameter set for unrecognized zones.
var DefaultLimits = Limits{
	MaxOccupancyRate:    50,
	BaseFloorAreaRatio:  1.0,
	MinPermeabilityRate: 25,
	MaxFloors:           4,
	MinFrontSetback:     5,
}

var (
	zc  = Limits{MaxOccupancyRate: 100, BaseFloorAreaRatio: 6.0, MinPermeabilityRate: 15, MaxFloors: 12, MinFrontSetback: 0}
	zr1 = Limits{MaxOccupancyRate: 50, BaseFloorAreaRatio: 1.0, MinPermeabilityRate: 30, MaxFloors: 2, MinFrontSetback: 5}
	zr2 = Limits{MaxOccupancyRate: 60, BaseFloorAreaRatio: 1.4, MinPermeabilityRate: 25, MaxFloors: 4, MinFrontSetback: 4}
	zr3 = Limits{MaxOccupancyRate: 70, BaseFloorAreaRatio: 2.0, MinPermeabilityRate: 20, MaxFloors: 6, MinFrontSetback: 4}
	zr4 = Limits{MaxOccupancyRate: 70, BaseFloorAreaRatio: 2.5, MinPermeabilityRate: 20, MaxFloors: 8, MinFrontSetback: 3}
)

// Default returns the built-in catalog. Prefixes are ordered most specific
// first; the first matching prefix wins.
func Default() *Catalog {
	return New(DefaultLimits,
		[]Entry{
			{Code: "ZC", Name: "Zona Central", Limits: zc},
			{Code: "ZR-1", Name: "Zona Residencial 1", Limits: zr1},
			{Code: "ZR-2", Name: "Zona Residencial 2", Limits: zr2},
			{Code: "ZR-3", Name: "Zona Residencial 3", Limits: zr3},
			{Code: "ZR-4", Name: "Zona Residencial 4", Limits: zr4},
		},
		[]Entry{
			{Code: "ZR-1", Name: "Zona Residencial 1", Limits: zr1},
			{Code: "ZR-2", Name: "Zona Residencial 2", Limits: zr2},
			{Code: "ZR-3", Name: "Zona Residencial 3", Limits: zr3},
			{Code: "ZR-4", Name: "Zona Residencial 4", Limits: zr4},
			{Code: "ZR-OC", Name: "Zona Residencial de Ocupação Controlada", Limits: zr1},
			{Code: "ZC-", Name: "Zona Central (setorial)", Limits: Limits{MaxOccupancyRate: 100, BaseFloorAreaRatio: 6.0, MinPermeabilityRate: 15, MaxFloors: 15, MinFrontSetback: 0}},
			{Code: "ZUM", Name: "Zona de Uso Misto", Limits: Limits{MaxOccupancyRate: 60, BaseFloorAreaRatio: 1.5, MinPermeabilityRate: 25, MaxFloors: 4, MinFrontSetback: 4}},
			{Code: "ZS", Name: "Zona de Serviço", Limits: Limits{MaxOccupancyRate: 70, BaseFloorAreaRatio: 2.0, MinPermeabilityRate: 20, MaxFloors: 6, MinFrontSetback: 5}},
			{Code: "ZH", Name: "Zona Histórica", Limits: Limits{MaxOccupancyRate: 60, BaseFloorAreaRatio: 1.5, MinPermeabilityRate: 20, MaxFloors: 4, MinFrontSetback: 0}},
			{Code: "ZI", Name: "Zona Industrial", Limits: Limits{MaxOccupancyRate: 70, BaseFloorAreaRatio: 1.5, MinPermeabilityRate: 20, MaxFloors: 6, MinFrontSetback: 5}},
			{Code: "SEHIS", Name: "Setor Especial de Habitação de Interesse Social", Limits: Limits{MaxOccupancyRate: 70, BaseFloorAreaRatio: 2.0, MinPermeabilityRate: 25, MaxFloors: 5, MinFrontSetback: 3}},
		},
	)
}

// New builds a catalog from an exact table, an ordered prefix table, and the
// fallback limits. Codes are canonicalized.
func New(fallback Limits, exact, prefixes []Entry) *Catalog {
	c := &Catalog{
		exact:    make(map[string]Entry, len(exact)),
		prefixes: make([]Entry, 0, len(prefixes)),
		fallback: fallback,
	}
	for _, e := range exact {
		e.Code = canonical(e.Code)
		if e.Code == "" {
			continue
		}
		c.exact[e.Code] = e
	}
	for _, e := range prefixes {
		e.Code = canonical(e.Code)
		if e.Code == "" {
			continue
		}
		c.prefixes = append(c.prefixes, e)
	}
	return c
}

// Lookup returns the parameters for zoneCode: exact match, then the first
// matching prefix, then the fallback set. It never fails.
func (c *Catalog) Lookup(zoneCode string) model.RegulatoryParameters {
	code := canonical(zoneCode)

	if code != "" {
		if e, ok := c.exact[code]; ok {
			return params(code, e.Name, model.MatchExact, e.Limits)
		}
		for _, e := range c.prefixes {
			if strings.HasPrefix(code, e.Code) {
				return params(code, e.Name, model.MatchPrefix, e.Limits)
			}
		}
	}
	return params(code, "", model.MatchDefault, c.fallback)
}

// Zones lists the exact entries sorted by code, followed by the prefix
// entries in priority order, each suffixed with "*".
func (c *Catalog) Zones() []model.RegulatoryParameters {
	codes := make([]string, 0, len(c.exact))
	for code := range c.exact {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]model.RegulatoryParameters, 0, len(codes)+len(c.prefixes))
	for _, code := range codes {
		e := c.exact[code]
		out = append(out, params(code, e.Name, model.MatchExact, e.Limits))
	}
	for _, e := range c.prefixes {
		out = append(out, params(e.Code+"*", e.Name, model.MatchPrefix, e.Limits))
	}
	return out
}

// Fallback returns the limits used for unrecognized codes.
func (c *Catalog) Fallback() Limits { return c.fallback }

func params(code, name string, kind model.MatchKind, l Limits) model.RegulatoryParameters {
	return model.RegulatoryParameters{
		Zone:                code,
		Name:                name,
		Matched:             kind,
		MaxOccupancyRate:    l.MaxOccupancyRate,
		BaseFloorAreaRatio:  l.BaseFloorAreaRatio,
		MinPermeabilityRate: l.MinPermeabilityRate,
		MaxFloors:           l.MaxFloors,
		MinFrontSetback:     l.MinFrontSetback,
	}
}

func canonical(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
