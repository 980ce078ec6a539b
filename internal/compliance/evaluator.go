// Package compliance compares project measurements against zone limits.
package compliance

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/zoning-cli/internal/model"
)

// Parking quota percentages and the low-density unit cap.
const (
	DefaultSpecialNeedsPct = 2
	DefaultElderlyPct      = 5
	DefaultUnitCap         = 2
)

// DefaultLowDensity lists the zone families subject to the housing-unit cap.
var DefaultLowDensity = []string{"ZR-1", "ZR-OC"}

// Evaluator produces compliance reports. It holds no mutable state.
type Evaluator struct {
	specialNeedsPct int
	elderlyPct      int
	unitCap         int
	lowDensity      []string
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithParkingQuotas sets the special-needs and elderly quota percentages.
func WithParkingQuotas(specialNeedsPct, elderlyPct int) Option {
	return func(e *Evaluator) {
		if specialNeedsPct > 0 {
			e.specialNeedsPct = specialNeedsPct
		}
		if elderlyPct > 0 {
			e.elderlyPct = elderlyPct
		}
	}
}

// WithUnitCap sets the housing-unit cap and the zone families it applies to.
func WithUnitCap(limit int, families ...string) Option {
	return func(e *Evaluator) {
		if limit > 0 {
			e.unitCap = limit
		}
		if len(families) > 0 {
			e.lowDensity = make([]string, 0, len(families))
			for _, f := range families {
				if f = strings.ToUpper(strings.TrimSpace(f)); f != "" {
					e.lowDensity = append(e.lowDensity, f)
				}
			}
		}
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		specialNeedsPct: DefaultSpecialNeedsPct,
		elderlyPct:      DefaultElderlyPct,
		unitCap:         DefaultUnitCap,
		lowDensity:      DefaultLowDensity,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate builds the report for one project. Findings are emitted in a fixed
// order and Approved is true iff every finding is compliant.
func (e *Evaluator) Evaluate(m model.ProjectMeasurements, p model.RegulatoryParameters, zone model.ZoneMatch) model.ComplianceReport {
	occupancy := round2(ratio(m.FootprintArea, m.LotArea) * 100)
	far := round2(ratio(m.CountableBuiltArea, m.LotArea))
	permeability := round2(ratio(m.PermeableArea, m.LotArea) * 100)
	setback := round2(m.FrontSetback)

	findings := []model.ComplianceFinding{
		{
			Parameter:       model.ParamOccupancy,
			ProjectValue:    percent(occupancy),
			RegulatoryLimit: "max " + percent(p.MaxOccupancyRate),
			Compliant:       occupancy <= p.MaxOccupancyRate,
		},
		{
			Parameter:       model.ParamFloorAreaRatio,
			ProjectValue:    fmt.Sprintf("%.2f", far),
			RegulatoryLimit: fmt.Sprintf("max %.2f", p.BaseFloorAreaRatio),
			Compliant:       far <= p.BaseFloorAreaRatio,
		},
		{
			Parameter:       model.ParamPermeability,
			ProjectValue:    percent(permeability),
			RegulatoryLimit: "min " + percent(p.MinPermeabilityRate),
			Compliant:       permeability >= p.MinPermeabilityRate,
		},
		{
			Parameter:       model.ParamHeight,
			ProjectValue:    plural(m.Floors, "floor"),
			RegulatoryLimit: "max " + plural(p.MaxFloors, "floor"),
			Compliant:       m.Floors <= p.MaxFloors,
		},
		{
			Parameter:       model.ParamFrontSetback,
			ProjectValue:    fmt.Sprintf("%.2f m", setback),
			RegulatoryLimit: fmt.Sprintf("min %.2f m", p.MinFrontSetback),
			Compliant:       setback >= p.MinFrontSetback,
		},
	}

	if m.ParkingTotal > 0 {
		pcd := Quota(m.ParkingTotal, e.specialNeedsPct)
		elderly := Quota(m.ParkingTotal, e.elderlyPct)
		findings = append(findings,
			model.ComplianceFinding{
				Parameter:       model.ParamPCDParking,
				ProjectValue:    plural(m.ParkingSpecialNeeds, "space"),
				RegulatoryLimit: fmt.Sprintf("min %s (%d%% of %d)", plural(pcd, "space"), e.specialNeedsPct, m.ParkingTotal),
				Compliant:       m.ParkingSpecialNeeds >= pcd,
			},
			model.ComplianceFinding{
				Parameter:       model.ParamElderlyParking,
				ProjectValue:    plural(m.ParkingElderly, "space"),
				RegulatoryLimit: fmt.Sprintf("min %s (%d%% of %d)", plural(elderly, "space"), e.elderlyPct, m.ParkingTotal),
				Compliant:       m.ParkingElderly >= elderly,
			},
		)
	}

	code := zone.ZoneCode
	if code == "" {
		code = p.Zone
	}
	if e.isLowDensity(code) && m.HousingUnits > e.unitCap {
		findings = append(findings, model.ComplianceFinding{
			Parameter:       model.ParamUnitCap,
			ProjectValue:    plural(m.HousingUnits, "unit"),
			RegulatoryLimit: "max " + plural(e.unitCap, "unit"),
			Compliant:       false,
		})
	}

	if problems := Inconsistencies(m); len(problems) > 0 {
		findings = append(findings, model.ComplianceFinding{
			Parameter:       model.ParamConsistency,
			ProjectValue:    strings.Join(problems, "; "),
			RegulatoryLimit: "footprint <= lot; built >= footprint; permeable <= lot",
			Compliant:       false,
		})
	}

	return model.ComplianceReport{
		Zone:       zone,
		Parameters: p,
		Findings:   findings,
		Approved:   Approved(findings),
		Categories: m.CategoryList(),
	}
}

// Inconsistencies lists the declared areas that contradict each other. A
// report carrying any of them cannot be approved.
func Inconsistencies(m model.ProjectMeasurements) []string {
	var out []string
	if m.FootprintArea > m.LotArea {
		out = append(out, fmt.Sprintf("footprint %.2f m² exceeds lot %.2f m²", m.FootprintArea, m.LotArea))
	}
	if m.CountableBuiltArea < m.FootprintArea {
		out = append(out, fmt.Sprintf("countable built area %.2f m² is below footprint %.2f m²", m.CountableBuiltArea, m.FootprintArea))
	}
	if m.PermeableArea > m.LotArea {
		out = append(out, fmt.Sprintf("permeable area %.2f m² exceeds lot %.2f m²", m.PermeableArea, m.LotArea))
	}
	return out
}

// Approved is the logical AND of the findings' flags; no findings is approval.
func Approved(findings []model.ComplianceFinding) bool {
	for _, f := range findings {
		if !f.Compliant {
			return false
		}
	}
	return true
}

func (e *Evaluator) isLowDensity(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return false
	}
	for _, family := range e.lowDensity {
		if strings.HasPrefix(code, family) {
			return true
		}
	}
	return false
}

// Quota returns ceil(total * pct / 100) in integer arithmetic.
func Quota(total, pct int) int {
	if total <= 0 || pct <= 0 {
		return 0
	}
	return (total*pct + 99) / 100
}

func ratio(num, lot float64) float64 {
	if lot <= 0 || math.IsNaN(lot) || math.IsNaN(num) {
		return 0
	}
	return num / lot
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
