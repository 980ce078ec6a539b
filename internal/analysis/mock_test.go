package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/pkg/geocode"
)

// --- Geocoder Mock ---

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Geocode(ctx context.Context, address string) (*geocode.Result, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Result), args.Error(1)
}

// --- Transformer Mock ---

type mockTransformer struct {
	mock.Mock
}

func (m *mockTransformer) ToProjected(p model.GeoPoint) (model.ProjectedPoint, error) {
	args := m.Called(p)
	return args.Get(0).(model.ProjectedPoint), args.Error(1)
}

func (m *mockTransformer) ToGeodetic(p model.ProjectedPoint) (model.GeoPoint, error) {
	args := m.Called(p)
	return args.Get(0).(model.GeoPoint), args.Error(1)
}

// --- Resolver Mock ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) ResolveZone(ctx context.Context, pt model.ProjectedPoint) (*model.ZoneMatch, error) {
	args := m.Called(ctx, pt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ZoneMatch), args.Error(1)
}

// --- Observer ---

type recordingObserver struct {
	mu       sync.Mutex
	stages   []string
	failed   []string
	analyses int
	lastErr  error
}

func (o *recordingObserver) StageDone(stage string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage)
	if err != nil {
		o.failed = append(o.failed, stage)
	}
}

func (o *recordingObserver) AnalysisDone(_ *model.ComplianceReport, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.analyses++
	o.lastErr = err
}
