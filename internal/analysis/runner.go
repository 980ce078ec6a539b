// Package analysis runs the zoning-compliance pipeline for one address:
// geocode, project, resolve zone, look up limits, evaluate.
package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/compliance"
	"github.com/sells-group/zoning-cli/internal/geodesy"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/rules"
	"github.com/sells-group/zoning-cli/internal/zoning"
	"github.com/sells-group/zoning-cli/pkg/geocode"
)

// Stage names reported to observers and logs.
const (
	StageGeocode   = "geocode"
	StageTransform = "transform"
	StageResolve   = "resolve"
	StageLookup    = "lookup"
	StageEvaluate  = "evaluate"
)

// Catalog maps a zone code to its regulatory limits.
type Catalog interface {
	Lookup(zoneCode string) model.RegulatoryParameters
}

// Evaluator compares measurements with limits.
type Evaluator interface {
	Evaluate(m model.ProjectMeasurements, p model.RegulatoryParameters, zone model.ZoneMatch) model.ComplianceReport
}

// Observer receives stage and analysis outcomes.
type Observer interface {
	StageDone(stage string, d time.Duration, err error)
	AnalysisDone(report *model.ComplianceReport, d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) StageDone(string, time.Duration, error)                     {}
func (nopObserver) AnalysisDone(*model.ComplianceReport, time.Duration, error) {}

// Runner executes analyses. It is immutable after construction and safe for
// concurrent use; each call owns its own zone-service session.
type Runner struct {
	geocoder    geocode.Client
	transformer geodesy.Transformer
	resolver    zoning.Resolver
	catalog     Catalog
	evaluator   Evaluator
	observer    Observer
	log         *zap.Logger
	newID       func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithCatalog overrides the built-in rule catalog.
func WithCatalog(c Catalog) Option {
	return func(r *Runner) {
		if c != nil {
			r.catalog = c
		}
	}
}

// WithEvaluator overrides the default evaluator.
func WithEvaluator(e Evaluator) Option {
	return func(r *Runner) {
		if e != nil {
			r.evaluator = e
		}
	}
}

// WithObserver registers an observer for stage timings and outcomes.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithLogger sets the parent logger; each analysis logs through a child.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithIDFunc sets the analysis ID generator.
func WithIDFunc(fn func() string) Option {
	return func(r *Runner) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// NewRunner wires the pipeline stages.
func NewRunner(g geocode.Client, t geodesy.Transformer, res zoning.Resolver, opts ...Option) *Runner {
	r := &Runner{
		geocoder:    g,
		transformer: t,
		resolver:    res,
		catalog:     rules.Default(),
		evaluator:   compliance.New(),
		observer:    nopObserver{},
		log:         zap.NewNop(),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAnalysis produces a complete report for address, or a single typed error
// from the model taxonomy. It never returns both.
func (r *Runner) RunAnalysis(ctx context.Context, address string, m model.ProjectMeasurements) (*model.ComplianceReport, error) {
	id := r.newID()
	log := r.log.With(zap.String("analysis_id", id), zap.String("address", address))
	log.Info("analysis: starting")

	start := time.Now()
	report, err := r.run(ctx, log, address, m)
	elapsed := time.Since(start)

	if err != nil {
		log.Warn("analysis: failed",
			zap.String("kind", model.Kind(err)),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
			zap.Error(err),
		)
		r.observer.AnalysisDone(nil, elapsed, err)
		return nil, err
	}

	report.ID = id
	log.Info("analysis: complete",
		zap.String("zone", report.Zone.ZoneCode),
		zap.Bool("approved", report.Approved),
		zap.Int("failed", len(report.Failed())),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)
	r.observer.AnalysisDone(report, elapsed, nil)
	return report, nil
}

func (r *Runner) run(ctx context.Context, log *zap.Logger, address string, m model.ProjectMeasurements) (*model.ComplianceReport, error) {
	if strings.TrimSpace(address) == "" {
		return nil, &model.GeocodingError{Address: address, Err: geocode.ErrEmptyAddress}
	}

	var geo *geocode.Result
	err := r.stage(log, StageGeocode, func() error {
		var err error
		geo, err = r.geocoder.Geocode(ctx, address)
		if err == nil && geo == nil {
			err = eris.New("analysis: geocoder returned no result")
		}
		if err != nil && model.Kind(err) == model.KindInternal {
			err = &model.GeocodingError{Address: address, Err: err}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	point := model.GeoPoint{Latitude: geo.Latitude, Longitude: geo.Longitude}

	var projected model.ProjectedPoint
	err = r.stage(log, StageTransform, func() error {
		var err error
		projected, err = r.transformer.ToProjected(point)
		if err != nil && model.Kind(err) == model.KindInternal {
			err = &model.InvalidCoordinateError{Point: point, Reason: "projection failed", Err: err}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var zone *model.ZoneMatch
	err = r.stage(log, StageResolve, func() error {
		var err error
		zone, err = r.resolver.ResolveZone(ctx, projected)
		if err == nil && (zone == nil || zone.ZoneCode == "") {
			err = eris.New("analysis: resolver returned an empty zone")
		}
		if err != nil && model.Kind(err) == model.KindInternal {
			err = &model.ZoneServiceError{Op: "resolve", Err: err}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var params model.RegulatoryParameters
	_ = r.stage(log, StageLookup, func() error {
		params = r.catalog.Lookup(zone.ZoneCode)
		return nil
	})
	if params.Matched == model.MatchDefault {
		log.Warn("analysis: zone not in catalog, using default limits", zap.String("zone", zone.ZoneCode))
	}

	var report model.ComplianceReport
	_ = r.stage(log, StageEvaluate, func() error {
		report = r.evaluator.Evaluate(m, params, *zone)
		return nil
	})

	report.Address = address
	report.Point = point
	report.Projected = projected
	return &report, nil
}

// stage times fn, logs its outcome, and notifies the observer.
func (r *Runner) stage(log *zap.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)

	if err != nil {
		log.Debug("analysis: stage failed",
			zap.String("stage", name),
			zap.Int64("duration_ms", d.Milliseconds()),
			zap.Error(err),
		)
	} else {
		log.Debug("analysis: stage complete",
			zap.String("stage", name),
			zap.Int64("duration_ms", d.Milliseconds()),
		)
	}
	r.observer.StageDone(name, d, err)
	return err
}
