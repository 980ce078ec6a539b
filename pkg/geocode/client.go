// Package geocode resolves free-text street addresses to WGS84 coordinates
// using the OpenStreetMap Nominatim search API.
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org/search"
	defaultQualifier = "Curitiba, Paraná, Brasil"
	defaultUserAgent = "zoning-cli/1.0"
	defaultTimeout   = 10 * time.Second
)

// Client geocodes a single address.
type Client interface {
	// Geocode returns the highest-ranked match for address. Any failure is
	// reported as a *model.GeocodingError.
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	Query       string // the qualified query text sent to the service
	Source      string // "nominatim"
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithBaseURL overrides the search endpoint.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.baseURL = u
		}
	}
}

// WithQualifier sets the locality/region/country text appended to every query.
func WithQualifier(q string) Option {
	return func(g *geocoder) {
		g.qualifier = strings.TrimSpace(q)
	}
}

// WithUserAgent sets the User-Agent header. Nominatim rejects requests without one.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		if ua != "" {
			g.userAgent = ua
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(g *geocoder) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRateLimit sets the requests-per-second rate limit.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(g *geocoder) {
		if l != nil {
			g.log = l
		}
	}
}

type geocoder struct {
	httpClient *http.Client
	baseURL    string
	qualifier  string
	userAgent  string
	timeout    time.Duration
	limiter    *rate.Limiter
	log        *zap.Logger
}

// NewClient creates a Nominatim-backed Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{},
		baseURL:    defaultBaseURL,
		qualifier:  defaultQualifier,
		userAgent:  defaultUserAgent,
		timeout:    defaultTimeout,
		limiter:    rate.NewLimiter(1, 1), // Nominatim usage policy: 1 req/s
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// qualify normalizes address and appends the fixed locality qualifier.
func (g *geocoder) qualify(address string) string {
	q := normalizeAddress(address)
	if q == "" || g.qualifier == "" {
		return q
	}
	return q + ", " + g.qualifier
}

// normalizeAddress applies NFC normalization and collapses whitespace so that
// composed and decomposed accents produce the same query.
func normalizeAddress(address string) string {
	return strings.Join(strings.Fields(norm.NFC.String(address)), " ")
}
