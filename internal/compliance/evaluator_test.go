package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/rules"
)

func finding(t *testing.T, r model.ComplianceReport, name string) model.ComplianceFinding {
	t.Helper()
	for _, f := range r.Findings {
		if f.Parameter == name {
			return f
		}
	}
	require.Failf(t, "finding not emitted", "%s", name)
	return model.ComplianceFinding{}
}

func names(r model.ComplianceReport) []string {
	out := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, f.Parameter)
	}
	return out
}

func TestEvaluate_ScenarioA_ResidentialBoundary(t *testing.T) {
	params := rules.Default().Lookup("ZR-1")
	m := model.ProjectMeasurements{
		LotArea:            300,
		FootprintArea:      100,
		CountableBuiltArea: 300,
		PermeableArea:      90,
		Floors:             2,
		FrontSetback:       5,
	}

	r := New().Evaluate(m, params, model.ZoneMatch{ZoneCode: "ZR-1"})

	occ := finding(t, r, model.ParamOccupancy)
	assert.True(t, occ.Compliant)
	assert.Equal(t, "33.33%", occ.ProjectValue)
	assert.Equal(t, "max 50.00%", occ.RegulatoryLimit)

	far := finding(t, r, model.ParamFloorAreaRatio)
	assert.True(t, far.Compliant, "equal to limit is compliant")
	assert.Equal(t, "1.00", far.ProjectValue)

	assert.True(t, finding(t, r, model.ParamPermeability).Compliant)
	assert.True(t, r.Approved)
}

func TestEvaluate_ScenarioB_ZeroSetbackLowerBound(t *testing.T) {
	params := rules.Default().Lookup("ZC")
	m := model.ProjectMeasurements{
		LotArea:            500,
		FootprintArea:      500,
		CountableBuiltArea: 2500,
		PermeableArea:      75,
		Floors:             10,
		FrontSetback:       0,
	}

	r := New().Evaluate(m, params, model.ZoneMatch{ZoneCode: "ZC"})

	sb := finding(t, r, model.ParamFrontSetback)
	assert.True(t, sb.Compliant)
	assert.Equal(t, "0.00 m", sb.ProjectValue)
	assert.Equal(t, "min 0.00 m", sb.RegulatoryLimit)
	assert.True(t, r.Approved)
}

func TestEvaluate_ScenarioC_UnknownZoneDefaults(t *testing.T) {
	params := rules.Default().Lookup("XYZ-9")
	require.Equal(t, model.MatchDefault, params.Matched)

	m := model.ProjectMeasurements{
		LotArea:            400,
		FootprintArea:      240,
		CountableBuiltArea: 400,
		PermeableArea:      100,
		Floors:             3,
		FrontSetback:       5,
	}
	r := New().Evaluate(m, params, model.ZoneMatch{ZoneCode: "XYZ-9"})

	assert.Len(t, r.Findings, 5)
	assert.False(t, finding(t, r, model.ParamOccupancy).Compliant, "60% over the 50% default")
	assert.False(t, r.Approved)
	assert.Equal(t, params, r.Parameters)
}

func TestEvaluate_ZeroLot(t *testing.T) {
	m := model.ProjectMeasurements{
		LotArea:            0,
		FootprintArea:      100,
		CountableBuiltArea: 100,
		PermeableArea:      50,
	}
	r := New().Evaluate(m, rules.Default().Lookup("ZR-2"), model.ZoneMatch{ZoneCode: "ZR-2"})

	assert.Equal(t, "0.00%", finding(t, r, model.ParamOccupancy).ProjectValue)
	assert.Equal(t, "0.00", finding(t, r, model.ParamFloorAreaRatio).ProjectValue)
	assert.Equal(t, "0.00%", finding(t, r, model.ParamPermeability).ProjectValue)
	assert.False(t, finding(t, r, model.ParamPermeability).Compliant)
}

func TestQuota(t *testing.T) {
	assert.Equal(t, 1, Quota(47, 2))
	assert.Equal(t, 3, Quota(47, 5))
	assert.Equal(t, 1, Quota(50, 2))
	assert.Equal(t, 2, Quota(100, 2))
	assert.Equal(t, 5, Quota(100, 5))
	assert.Equal(t, 1, Quota(1, 2))
	assert.Equal(t, 0, Quota(0, 5))
	assert.Equal(t, 0, Quota(-3, 5))
}

func TestEvaluate_Parking(t *testing.T) {
	m := model.ProjectMeasurements{
		LotArea:             1000,
		FootprintArea:       500,
		CountableBuiltArea:  1000,
		PermeableArea:       250,
		Floors:              4,
		FrontSetback:        5,
		ParkingTotal:        47,
		ParkingSpecialNeeds: 1,
		ParkingElderly:      2,
	}
	r := New().Evaluate(m, rules.Default().Lookup("ZR-2"), model.ZoneMatch{ZoneCode: "ZR-2"})

	pcd := finding(t, r, model.ParamPCDParking)
	assert.True(t, pcd.Compliant)
	assert.Equal(t, "min 1 space (2% of 47)", pcd.RegulatoryLimit)

	elderly := finding(t, r, model.ParamElderlyParking)
	assert.False(t, elderly.Compliant)
	assert.Equal(t, "2 spaces", elderly.ProjectValue)
	assert.Equal(t, "min 3 spaces (5% of 47)", elderly.RegulatoryLimit)
	assert.False(t, r.Approved)

	m.ParkingTotal = 0
	r = New().Evaluate(m, rules.Default().Lookup("ZR-2"), model.ZoneMatch{ZoneCode: "ZR-2"})
	assert.NotContains(t, names(r), model.ParamPCDParking)
	assert.NotContains(t, names(r), model.ParamElderlyParking)
}

func TestEvaluate_UnitCap(t *testing.T) {
	base := model.ProjectMeasurements{
		LotArea:            360,
		FootprintArea:      150,
		CountableBuiltArea: 300,
		PermeableArea:      120,
		Floors:             2,
		FrontSetback:       5,
	}

	tests := []struct {
		name    string
		zone    string
		units   int
		emitted bool
	}{
		{name: "low density over cap", zone: "ZR-1", units: 3, emitted: true},
		{name: "low density at cap", zone: "ZR-1", units: 2},
		{name: "controlled occupancy over cap", zone: "ZR-OC", units: 4, emitted: true},
		{name: "other zone over cap", zone: "ZR-3", units: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base
			m.HousingUnits = tt.units
			r := New().Evaluate(m, rules.Default().Lookup(tt.zone), model.ZoneMatch{ZoneCode: tt.zone})
			if !tt.emitted {
				assert.NotContains(t, names(r), model.ParamUnitCap)
				return
			}
			f := finding(t, r, model.ParamUnitCap)
			assert.False(t, f.Compliant)
			assert.Equal(t, "max 2 units", f.RegulatoryLimit)
			assert.False(t, r.Approved)
		})
	}
}

func TestEvaluate_FindingOrder(t *testing.T) {
	m := model.ProjectMeasurements{
		LotArea:      300,
		ParkingTotal: 10,
		HousingUnits: 5,
	}
	r := New().Evaluate(m, rules.Default().Lookup("ZR-1"), model.ZoneMatch{ZoneCode: "ZR-1"})
	assert.Equal(t, []string{
		model.ParamOccupancy,
		model.ParamFloorAreaRatio,
		model.ParamPermeability,
		model.ParamHeight,
		model.ParamFrontSetback,
		model.ParamPCDParking,
		model.ParamElderlyParking,
		model.ParamUnitCap,
	}, names(r))
}

func TestEvaluate_Deterministic(t *testing.T) {
	m := model.ProjectMeasurements{
		LotArea:             333.33,
		FootprintArea:       111.11,
		CountableBuiltArea:  777.77,
		PermeableArea:       66.66,
		Floors:              5,
		FrontSetback:        3.995,
		ParkingTotal:        23,
		ParkingSpecialNeeds: 1,
		ParkingElderly:      2,
		HousingUnits:        8,
	}
	p := rules.Default().Lookup("ZR-4")
	z := model.ZoneMatch{ZoneCode: "ZR-4", AllIntersectingZones: []string{"ZR-4"}}

	e := New()
	first := e.Evaluate(m, p, z)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, e.Evaluate(m, p, z))
	}
}

func TestEvaluate_VacuousApproval(t *testing.T) {
	assert.True(t, Approved(nil))
	assert.True(t, Approved([]model.ComplianceFinding{}))
	assert.False(t, Approved([]model.ComplianceFinding{{Compliant: true}, {Compliant: false}}))

	m := model.ProjectMeasurements{LotArea: 100, PermeableArea: 100, FrontSetback: 10}
	got := New().Evaluate(m, rules.Default().Lookup("ZC"), model.ZoneMatch{ZoneCode: "ZC"})
	assert.True(t, got.Approved)
	assert.Empty(t, got.Failed())
}

func TestEvaluate_RoundingAtBoundary(t *testing.T) {
	// 50.004% rounds to 50.00% and is compliant against a 50% limit.
	m := model.ProjectMeasurements{LotArea: 100000, FootprintArea: 50004, PermeableArea: 30000, FrontSetback: 5}
	r := New().Evaluate(m, rules.Default().Lookup("ZR-1"), model.ZoneMatch{ZoneCode: "ZR-1"})
	occ := finding(t, r, model.ParamOccupancy)
	assert.Equal(t, "50.00%", occ.ProjectValue)
	assert.True(t, occ.Compliant)

	m.FootprintArea = 50006
	r = New().Evaluate(m, rules.Default().Lookup("ZR-1"), model.ZoneMatch{ZoneCode: "ZR-1"})
	occ = finding(t, r, model.ParamOccupancy)
	assert.Equal(t, "50.01%", occ.ProjectValue)
	assert.False(t, occ.Compliant)
}

func TestEvaluate_InconsistentAreas(t *testing.T) {
	base := model.ProjectMeasurements{
		LotArea:            300,
		FootprintArea:      100,
		CountableBuiltArea: 300,
		PermeableArea:      90,
		Floors:             2,
		FrontSetback:       5,
	}

	tests := []struct {
		name   string
		mutate func(m *model.ProjectMeasurements)
		want   string
	}{
		{"footprint over lot", func(m *model.ProjectMeasurements) { m.FootprintArea = 301 }, "footprint 301.00 m² exceeds lot 300.00 m²"},
		{"built below footprint", func(m *model.ProjectMeasurements) { m.CountableBuiltArea = 99 }, "countable built area 99.00 m² is below footprint 100.00 m²"},
		{"permeable over lot", func(m *model.ProjectMeasurements) { m.PermeableArea = 450 }, "permeable area 450.00 m² exceeds lot 300.00 m²"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base
			tt.mutate(&m)
			r := New().Evaluate(m, rules.Default().Lookup("ZR-1"), model.ZoneMatch{ZoneCode: "ZR-1"})

			f := finding(t, r, model.ParamConsistency)
			assert.False(t, f.Compliant)
			assert.Contains(t, f.ProjectValue, tt.want)
			assert.Equal(t, model.ParamConsistency, r.Findings[len(r.Findings)-1].Parameter)
			assert.False(t, r.Approved)
		})
	}
}

func TestEvaluate_PermeableOverLotNotApproved(t *testing.T) {
	m := model.ProjectMeasurements{LotArea: 100, PermeableArea: 150, FrontSetback: 10}
	r := New().Evaluate(m, rules.Default().Lookup("ZC"), model.ZoneMatch{ZoneCode: "ZC"})

	assert.Equal(t, "150.00%", finding(t, r, model.ParamPermeability).ProjectValue)
	assert.False(t, r.Approved)
}

func TestEvaluate_CategoriesEchoed(t *testing.T) {
	m := model.ProjectMeasurements{
		LotArea:            300,
		FootprintArea:      100,
		CountableBuiltArea: 300,
		PermeableArea:      90,
		Floors:             2,
		FrontSetback:       5,
	}
	plain := New().Evaluate(m, rules.Default().Lookup("ZR-1"), model.ZoneMatch{ZoneCode: "ZR-1"})

	m.Categories = map[string]bool{"social_housing": true, "retrofit": false}
	tagged := New().Evaluate(m, rules.Default().Lookup("ZR-1"), model.ZoneMatch{ZoneCode: "ZR-1"})

	assert.Equal(t, []string{"social_housing"}, tagged.Categories)
	assert.Nil(t, plain.Categories)
	assert.Equal(t, plain.Findings, tagged.Findings)
	assert.Equal(t, plain.Approved, tagged.Approved)
}

func TestInconsistencies(t *testing.T) {
	assert.Empty(t, Inconsistencies(model.ProjectMeasurements{LotArea: 300, FootprintArea: 100, CountableBuiltArea: 300, PermeableArea: 300}))
	assert.Len(t, Inconsistencies(model.ProjectMeasurements{LotArea: 100, FootprintArea: 200, CountableBuiltArea: 150, PermeableArea: 120}), 3)
}

func TestWithOptions(t *testing.T) {
	e := New(WithParkingQuotas(10, 20), WithUnitCap(4, " zr-2 "))
	m := model.ProjectMeasurements{LotArea: 100, ParkingTotal: 10, HousingUnits: 5}
	r := e.Evaluate(m, rules.Default().Lookup("ZR-2"), model.ZoneMatch{ZoneCode: "ZR-2"})

	assert.Equal(t, "min 1 space (10% of 10)", finding(t, r, model.ParamPCDParking).RegulatoryLimit)
	assert.Equal(t, "min 2 spaces (20% of 10)", finding(t, r, model.ParamElderlyParking).RegulatoryLimit)
	assert.Equal(t, "max 4 units", finding(t, r, model.ParamUnitCap).RegulatoryLimit)
}
