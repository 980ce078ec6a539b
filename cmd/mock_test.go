package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/zoning-cli/internal/config"
	"github.com/sells-group/zoning-cli/internal/model"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) RunAnalysis(ctx context.Context, address string, pm model.ProjectMeasurements) (*model.ComplianceReport, error) {
	args := m.Called(ctx, address, pm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ComplianceReport), args.Error(1)
}

// analyzerFunc adapts a function to analyzer.
type analyzerFunc func(ctx context.Context, address string, m model.ProjectMeasurements) (*model.ComplianceReport, error)

func (f analyzerFunc) RunAnalysis(ctx context.Context, address string, m model.ProjectMeasurements) (*model.ComplianceReport, error) {
	return f(ctx, address, m)
}

// withTestConfig installs a zero config for the duration of the test.
func withTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{}
	t.Cleanup(func() { cfg = prev })
}

func approvedReport(address string) *model.ComplianceReport {
	return &model.ComplianceReport{
		ID:      "a-1",
		Address: address,
		Zone: model.ZoneMatch{
			ZoneCode:             "ZR-2",
			ZoneName:             "Zona Residencial 2",
			AllIntersectingZones: []string{"ZR-2"},
		},
		Parameters: model.RegulatoryParameters{Zone: "ZR-2", Matched: model.MatchExact},
		Findings: []model.ComplianceFinding{
			{Parameter: model.ParamOccupancy, ProjectValue: "40.00%", RegulatoryLimit: "max 50.00%", Compliant: true},
		},
		Approved: true,
	}
}
