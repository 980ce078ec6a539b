package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/analysis"
	"github.com/sells-group/zoning-cli/internal/browser"
	"github.com/sells-group/zoning-cli/internal/compliance"
	"github.com/sells-group/zoning-cli/internal/config"
	"github.com/sells-group/zoning-cli/internal/geodesy"
	"github.com/sells-group/zoning-cli/internal/metrics"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/resilience"
	"github.com/sells-group/zoning-cli/internal/rules"
	"github.com/sells-group/zoning-cli/internal/zoning"
	"github.com/sells-group/zoning-cli/pkg/geocode"
)

// analyzer runs one analysis. *analysis.Runner satisfies it.
type analyzer interface {
	RunAnalysis(ctx context.Context, address string, m model.ProjectMeasurements) (*model.ComplianceReport, error)
}

// analysisEnv holds the wired pipeline and its collaborators for the
// analyze/batch/serve commands.
type analysisEnv struct {
	Runner  *analysis.Runner
	Catalog *rules.Catalog
	Metrics *metrics.Metrics
	Breaker *resilience.Breaker // nil when disabled
}

// initAnalysis validates cfg for mode and builds the pipeline.
func initAnalysis(mode string, reg *prometheus.Registry) (*analysisEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	log := zap.L()

	geocoder := geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithQualifier(cfg.Geocode.Qualifier),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithTimeout(config.Secs(cfg.Geocode.TimeoutSecs)),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
		geocode.WithLogger(log),
	)

	projector, err := geodesy.NewDefault()
	if err != nil {
		return nil, eris.Wrap(err, "init transformer")
	}

	catalog, err := initCatalog()
	if err != nil {
		return nil, err
	}

	m := metrics.New(reg)

	var breaker *resilience.Breaker
	if cfg.Zoning.BreakerThreshold > 0 {
		breaker = resilience.NewBreaker(resilience.BreakerConfig{
			Threshold: cfg.Zoning.BreakerThreshold,
			Cooldown:  config.Secs(cfg.Zoning.BreakerCooldownSecs),
			OnChange: func(from, to resilience.State) {
				m.BreakerChanged(from, to)
				log.Warn("zone service breaker changed state",
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		})
	}

	resolver := zoning.Guarded(zoning.NewResolver(zoning.Config{
		ServiceURL: cfg.Zoning.ServiceURL,
		Layer:      cfg.Zoning.Layer,
		CodeField:  cfg.Zoning.CodeField,
		NameField:  cfg.Zoning.NameField,
		Timeout:    config.Secs(cfg.Zoning.TimeoutSecs),
	}, newFetcher(cfg, log), zoning.WithLogger(log)), breaker)

	evaluator := compliance.New(
		compliance.WithParkingQuotas(cfg.Rules.SpecialNeedsPct, cfg.Rules.ElderlyPct),
		compliance.WithUnitCap(cfg.Rules.UnitCap, cfg.Rules.LowDensity...),
	)

	runner := analysis.NewRunner(geocoder, projector, resolver,
		analysis.WithCatalog(catalog),
		analysis.WithEvaluator(evaluator),
		analysis.WithObserver(m),
		analysis.WithLogger(log),
	)

	log.Debug("analysis pipeline ready",
		zap.String("mode", mode),
		zap.String("zoning_mode", cfg.Zoning.Mode),
		zap.Bool("breaker", breaker != nil),
	)

	return &analysisEnv{
		Runner:  runner,
		Catalog: catalog,
		Metrics: m,
		Breaker: breaker,
	}, nil
}

// initCatalog returns the built-in catalog, merged with rules.catalog_file when set.
func initCatalog() (*rules.Catalog, error) {
	if cfg.Rules.CatalogFile == "" {
		return rules.Default(), nil
	}
	c, err := rules.LoadFile(cfg.Rules.CatalogFile, nil)
	if err != nil {
		return nil, eris.Wrap(err, "load rule catalog")
	}
	return c, nil
}

// newFetcher picks the zone service transport for c.Zoning.Mode.
func newFetcher(c *config.Config, log *zap.Logger) zoning.Fetcher {
	if c.Zoning.Mode == config.ZoningModeHTTP {
		return zoning.NewHTTPFetcher(nil, c.Geocode.UserAgent, c.Zoning.Referer)
	}
	return browser.New(browser.Options{
		ExecPath:     c.Browser.ExecPath,
		WaitSelector: c.Browser.WaitSelector,
		WaitTimeout:  config.Secs(c.Browser.WaitTimeoutSecs),
		SettleDelay:  config.Secs(c.Browser.SettleDelaySecs),
		Timeout:      config.Secs(c.Browser.TimeoutSecs),
		TempDir:      c.Browser.TempDir,
		UserAgent:    c.Browser.UserAgent,
	}, log)
}
