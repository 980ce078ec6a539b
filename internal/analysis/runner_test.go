package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/pkg/geocode"
)

const testAddress = "Rua XV de Novembro, 700"

var (
	testGeo       = model.GeoPoint{Latitude: -25.4284, Longitude: -49.2733}
	testProjected = model.ProjectedPoint{X: 673648.49, Y: 7186491.01, SRID: 31982}
	scenarioA     = model.ProjectMeasurements{
		LotArea:            300,
		FootprintArea:      100,
		CountableBuiltArea: 300,
		PermeableArea:      90,
		Floors:             2,
		FrontSetback:       5,
	}
)

type fixture struct {
	geo *mockGeocoder
	tr  *mockTransformer
	res *mockResolver
	obs *recordingObserver
}

func newFixture() *fixture {
	return &fixture{
		geo: &mockGeocoder{},
		tr:  &mockTransformer{},
		res: &mockResolver{},
		obs: &recordingObserver{},
	}
}

func (f *fixture) runner(opts ...Option) *Runner {
	opts = append([]Option{
		WithObserver(f.obs),
		WithIDFunc(func() string { return "test-id" }),
	}, opts...)
	return NewRunner(f.geo, f.tr, f.res, opts...)
}

func (f *fixture) expectGeocode() {
	f.geo.On("Geocode", mock.Anything, testAddress).
		Return(&geocode.Result{Latitude: testGeo.Latitude, Longitude: testGeo.Longitude, Source: "nominatim"}, nil)
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.geo.AssertExpectations(t)
	f.tr.AssertExpectations(t)
	f.res.AssertExpectations(t)
}

func TestRunAnalysis_Success(t *testing.T) {
	f := newFixture()
	f.expectGeocode()
	f.tr.On("ToProjected", testGeo).Return(testProjected, nil)
	f.res.On("ResolveZone", mock.Anything, testProjected).
		Return(&model.ZoneMatch{ZoneCode: "ZR-1", ZoneName: "Zona Residencial 1", AllIntersectingZones: []string{"ZR-1"}}, nil)

	report, err := f.runner().RunAnalysis(context.Background(), testAddress, scenarioA)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, "test-id", report.ID)
	assert.Equal(t, testAddress, report.Address)
	assert.Equal(t, testGeo, report.Point)
	assert.Equal(t, testProjected, report.Projected)
	assert.Equal(t, "ZR-1", report.Zone.ZoneCode)
	assert.Equal(t, model.MatchExact, report.Parameters.Matched)
	assert.Len(t, report.Findings, 5)
	assert.True(t, report.Approved)

	assert.Equal(t, []string{StageGeocode, StageTransform, StageResolve, StageLookup, StageEvaluate}, f.obs.stages)
	assert.Empty(t, f.obs.failed)
	assert.Equal(t, 1, f.obs.analyses)
	assert.NoError(t, f.obs.lastErr)
	f.assertExpectations(t)
}

func TestRunAnalysis_UnknownZoneFallsBack(t *testing.T) {
	f := newFixture()
	f.expectGeocode()
	f.tr.On("ToProjected", testGeo).Return(testProjected, nil)
	f.res.On("ResolveZone", mock.Anything, testProjected).
		Return(&model.ZoneMatch{ZoneCode: "XYZ-9", AllIntersectingZones: []string{"XYZ-9"}}, nil)

	report, err := f.runner().RunAnalysis(context.Background(), testAddress, scenarioA)
	require.NoError(t, err)
	assert.Equal(t, model.MatchDefault, report.Parameters.Matched)
	assert.Equal(t, 4, report.Parameters.MaxFloors)
	assert.NotEmpty(t, report.Findings)
}

func TestRunAnalysis_EmptyAddress(t *testing.T) {
	f := newFixture()

	report, err := f.runner().RunAnalysis(context.Background(), "   ", scenarioA)
	assert.Nil(t, report)

	var ge *model.GeocodingError
	require.True(t, errors.As(err, &ge))
	f.geo.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.obs.analyses)
}

func TestRunAnalysis_ShortCircuit(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		kind     string
		failedAt string
	}{
		{
			name: "geocoding error passes through",
			setup: func(f *fixture) {
				f.geo.On("Geocode", mock.Anything, testAddress).
					Return(nil, &model.GeocodingError{Address: testAddress, Err: errors.New("no results")})
			},
			kind:     model.KindGeocoding,
			failedAt: StageGeocode,
		},
		{
			name: "untyped geocoder error is wrapped",
			setup: func(f *fixture) {
				f.geo.On("Geocode", mock.Anything, testAddress).Return(nil, errors.New("socket closed"))
			},
			kind:     model.KindGeocoding,
			failedAt: StageGeocode,
		},
		{
			name: "nil geocode result",
			setup: func(f *fixture) {
				f.geo.On("Geocode", mock.Anything, testAddress).Return(nil, nil)
			},
			kind:     model.KindGeocoding,
			failedAt: StageGeocode,
		},
		{
			name: "invalid coordinate",
			setup: func(f *fixture) {
				f.expectGeocode()
				f.tr.On("ToProjected", testGeo).
					Return(model.ProjectedPoint{}, &model.InvalidCoordinateError{Point: testGeo, Reason: "out of range"})
			},
			kind:     model.KindInvalidCoordinate,
			failedAt: StageTransform,
		},
		{
			name: "untyped projection error is wrapped",
			setup: func(f *fixture) {
				f.expectGeocode()
				f.tr.On("ToProjected", testGeo).Return(model.ProjectedPoint{}, errors.New("proj: failed"))
			},
			kind:     model.KindInvalidCoordinate,
			failedAt: StageTransform,
		},
		{
			name: "no zone found",
			setup: func(f *fixture) {
				f.expectGeocode()
				f.tr.On("ToProjected", testGeo).Return(testProjected, nil)
				f.res.On("ResolveZone", mock.Anything, testProjected).
					Return(nil, &model.NoZoneFoundError{Point: testProjected})
			},
			kind:     model.KindNoZoneFound,
			failedAt: StageResolve,
		},
		{
			name: "zone service error",
			setup: func(f *fixture) {
				f.expectGeocode()
				f.tr.On("ToProjected", testGeo).Return(testProjected, nil)
				f.res.On("ResolveZone", mock.Anything, testProjected).
					Return(nil, &model.ZoneServiceError{Op: "fetch", Err: context.DeadlineExceeded})
			},
			kind:     model.KindZoneService,
			failedAt: StageResolve,
		},
		{
			name: "untyped resolver error is wrapped",
			setup: func(f *fixture) {
				f.expectGeocode()
				f.tr.On("ToProjected", testGeo).Return(testProjected, nil)
				f.res.On("ResolveZone", mock.Anything, testProjected).Return(nil, errors.New("chrome crashed"))
			},
			kind:     model.KindZoneService,
			failedAt: StageResolve,
		},
		{
			name: "empty zone code",
			setup: func(f *fixture) {
				f.expectGeocode()
				f.tr.On("ToProjected", testGeo).Return(testProjected, nil)
				f.res.On("ResolveZone", mock.Anything, testProjected).Return(&model.ZoneMatch{}, nil)
			},
			kind:     model.KindZoneService,
			failedAt: StageResolve,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			report, err := f.runner().RunAnalysis(context.Background(), testAddress, scenarioA)
			assert.Nil(t, report, "no partial report on failure")
			require.Error(t, err)
			assert.Equal(t, tt.kind, model.Kind(err))

			assert.Equal(t, []string{tt.failedAt}, f.obs.failed)
			assert.Equal(t, tt.failedAt, f.obs.stages[len(f.obs.stages)-1], "later stages must not run")
			assert.Equal(t, err, f.obs.lastErr)
			f.assertExpectations(t)
		})
	}
}

func TestRunAnalysis_RequestScopedLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	f := newFixture()
	f.expectGeocode()
	f.tr.On("ToProjected", testGeo).Return(testProjected, nil)
	f.res.On("ResolveZone", mock.Anything, testProjected).
		Return(&model.ZoneMatch{ZoneCode: "ZC", AllIntersectingZones: []string{"ZC"}}, nil)

	_, err := f.runner(WithLogger(zap.New(core))).RunAnalysis(context.Background(), testAddress, scenarioA)
	require.NoError(t, err)

	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		fields := entry.ContextMap()
		assert.Equal(t, "test-id", fields["analysis_id"], entry.Message)
		assert.Equal(t, testAddress, fields["address"], entry.Message)
	}
	assert.Equal(t, 1, logs.FilterMessage("analysis: complete").Len())
	assert.Equal(t, 5, logs.FilterMessage("analysis: stage complete").Len())
}

func TestRunAnalysis_DefaultIDIsUUID(t *testing.T) {
	f := newFixture()
	f.expectGeocode()
	f.tr.On("ToProjected", testGeo).Return(testProjected, nil)
	f.res.On("ResolveZone", mock.Anything, testProjected).
		Return(&model.ZoneMatch{ZoneCode: "ZC", AllIntersectingZones: []string{"ZC"}}, nil)

	report, err := NewRunner(f.geo, f.tr, f.res).RunAnalysis(context.Background(), testAddress, scenarioA)
	require.NoError(t, err)
	assert.Len(t, report.ID, 36)
}
