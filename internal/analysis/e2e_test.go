package analysis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zoning-cli/internal/geodesy"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/zoning"
	"github.com/sells-group/zoning-cli/pkg/geocode"
)

func nominatimServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Query().Get("q"), ", Curitiba, Paraná, Brasil"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func pipeline(t *testing.T, geocodeBody, zoneBody string) (*Runner, *string) {
	t.Helper()
	srv := nominatimServer(t, geocodeBody)
	gc := geocode.NewClient(geocode.WithBaseURL(srv.URL), geocode.WithRateLimit(1000))

	projector, err := geodesy.NewDefault()
	require.NoError(t, err)

	var queried string
	fetch := zoning.FetcherFunc(func(_ context.Context, u string) ([]byte, error) {
		queried = u
		return []byte(zoneBody), nil
	})
	return NewRunner(gc, projector, zoning.NewResolver(zoning.Config{}, fetch)), &queried
}

func TestEndToEnd_ScenarioA(t *testing.T) {
	r, queried := pipeline(t,
		`[{"lat":"-25.4284","lon":"-49.2733","display_name":"Curitiba"}]`,
		`<html><body><pre>{"features":[{"attributes":{"sg_zona":"ZR1","nm_zona":"Zona Residencial 1"}}]}</pre></body></html>`,
	)

	report, err := r.RunAnalysis(context.Background(), testAddress, scenarioA)
	require.NoError(t, err)

	assert.Equal(t, "ZR-1", report.Zone.ZoneCode)
	assert.InDelta(t, 673648.49, report.Projected.X, 0.5)
	assert.InDelta(t, 7186491.01, report.Projected.Y, 0.5)
	assert.Equal(t, model.DefaultSRID, report.Projected.SRID)
	assert.True(t, report.Approved)

	u, err := url.Parse(*queried)
	require.NoError(t, err)
	assert.Contains(t, u.Query().Get("geometry"), `"spatialReference":{"wkid":31982}`)
}

func TestEndToEnd_ScenarioD_NoZone(t *testing.T) {
	r, _ := pipeline(t,
		`[{"lat":-25.4284,"lon":-49.2733}]`,
		`<pre>{"features":[]}</pre>`,
	)

	report, err := r.RunAnalysis(context.Background(), testAddress, scenarioA)
	assert.Nil(t, report)
	require.Error(t, err)
	assert.Equal(t, model.KindNoZoneFound, model.Kind(err))
}

func TestEndToEnd_GeocodeMiss(t *testing.T) {
	r, queried := pipeline(t, `[]`, `{"features":[]}`)

	_, err := r.RunAnalysis(context.Background(), "Rua Inexistente 1", scenarioA)
	assert.Equal(t, model.KindGeocoding, model.Kind(err))
	assert.Empty(t, *queried, "zone service must not be queried")
}
