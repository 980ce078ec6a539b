// Package zoning resolves a projected point to the municipal zone that
// contains it by querying the city's parcel/zoning feature service.
package zoning

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/pkg/arcgis"
)

// Default feature service settings for Curitiba (Lei 15.511/2019 zoning layer).
const (
	DefaultServiceURL = "https://geocuritiba.ippuc.org.br/server/rest/services/GeoCuritiba/Publico_GeoCuritiba_MapaCadastral/MapServer"
	DefaultLayer      = 36
	DefaultCodeField  = "sg_zona"
	DefaultNameField  = "nm_zona"
	DefaultTimeout    = 60 * time.Second
)

// Resolver finds the zone intersecting a point.
type Resolver interface {
	ResolveZone(ctx context.Context, pt model.ProjectedPoint) (*model.ZoneMatch, error)
}

// Fetcher retrieves the raw response body for a query URL. Implementations
// may return the JSON document directly or a rendered HTML page containing it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// Config describes the feature layer to query.
type Config struct {
	ServiceURL string
	// Layer is the zoning layer id; 0 selects DefaultLayer.
	Layer     int
	CodeField string
	NameField string
	// Timeout bounds one resolution end to end, including fetcher startup.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	if c.Layer <= 0 {
		c.Layer = DefaultLayer
	}
	if c.CodeField == "" {
		c.CodeField = DefaultCodeField
	}
	if c.NameField == "" {
		c.NameField = DefaultNameField
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// FeatureResolver is a Resolver backed by an ArcGIS layer query.
type FeatureResolver struct {
	cfg     Config
	fetcher Fetcher
	log     *zap.Logger
}

// Option configures a FeatureResolver.
type Option func(*FeatureResolver)

// WithLogger sets the resolver logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *FeatureResolver) {
		if l != nil {
			r.log = l
		}
	}
}

// NewResolver creates a FeatureResolver that fetches through f.
func NewResolver(cfg Config, f Fetcher, opts ...Option) *FeatureResolver {
	r := &FeatureResolver{
		cfg:     cfg.withDefaults(),
		fetcher: f,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveZone implements Resolver. The first returned feature is taken as the
// zone; every intersecting code is kept in AllIntersectingZones.
func (r *FeatureResolver) ResolveZone(ctx context.Context, pt model.ProjectedPoint) (*model.ZoneMatch, error) {
	srid := pt.SRID
	if srid == 0 {
		srid = model.DefaultSRID
	}

	queryURL, err := arcgis.LayerQueryURL(r.cfg.ServiceURL, r.cfg.Layer, arcgis.PointQuery{
		Point: arcgis.NewPoint(pt.X, pt.Y, srid),
	})
	if err != nil {
		return nil, &model.ZoneServiceError{Op: "build query", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	body, err := r.fetcher.Fetch(ctx, queryURL)
	if err != nil {
		svcErr := &model.ZoneServiceError{Op: "fetch", Err: eris.Wrap(err, "zoning: fetch layer query")}
		var se *StatusError
		if errors.As(err, &se) {
			svcErr.StatusCode = se.Code
		}
		return nil, svcErr
	}

	resp, err := arcgis.ParseQueryResponse(body)
	if err != nil {
		r.log.Debug("zoning: unparsable response", zap.Int("bytes", len(body)), zap.Error(err))
		return nil, &model.ZoneServiceError{Op: "parse", Err: err}
	}

	r.log.Debug("zoning: layer query complete",
		zap.Int("features", len(resp.Features)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if len(resp.Features) == 0 {
		return nil, &model.NoZoneFoundError{Point: pt}
	}
	return r.matchFromFeatures(resp.Features)
}

func (r *FeatureResolver) matchFromFeatures(features []arcgis.Feature) (*model.ZoneMatch, error) {
	first := features[0]
	code := NormalizeCode(arcgis.StringAttr(first.Attributes, r.cfg.CodeField))
	if code == "" {
		return nil, &model.ZoneServiceError{
			Op:  "parse",
			Err: eris.Errorf("zoning: first feature has no %q attribute", r.cfg.CodeField),
		}
	}

	all := []string{code}
	seen := map[string]bool{code: true}
	for _, f := range features[1:] {
		c := NormalizeCode(arcgis.StringAttr(f.Attributes, r.cfg.CodeField))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		all = append(all, c)
	}
	if len(all) > 1 {
		r.log.Info("zoning: point intersects several zones, using the first",
			zap.String("zone", code),
			zap.Strings("zones", all),
		)
	}

	name := arcgis.StringAttr(first.Attributes, r.cfg.NameField)
	if name == "" {
		name = "Zona " + code
	}

	return &model.ZoneMatch{
		ZoneCode:             code,
		ZoneName:             name,
		RawAttributes:        first.Attributes,
		AllIntersectingZones: all,
	}, nil
}
