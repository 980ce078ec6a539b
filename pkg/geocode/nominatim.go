package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
)

// ErrNoResults is the cause of a GeocodingError when the service found no candidate.
var ErrNoResults = eris.New("geocode: no results")

// ErrEmptyAddress is the cause of a GeocodingError for blank input.
var ErrEmptyAddress = eris.New("geocode: empty address")

// nominatimPlace is one candidate of the Nominatim search response. lat/lon
// are documented as strings but some deployments emit numbers.
type nominatimPlace struct {
	Lat         json.RawMessage `json:"lat"`
	Lon         json.RawMessage `json:"lon"`
	DisplayName string          `json:"display_name"`
	Importance  float64         `json:"importance"`
}

// Geocode implements Client.
func (g *geocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	query := g.qualify(address)
	if normalizeAddress(address) == "" {
		return nil, &model.GeocodingError{Address: address, Err: ErrEmptyAddress}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &model.GeocodingError{Address: address, Err: eris.Wrap(err, "geocode: nominatim rate limit")}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	reqURL := g.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &model.GeocodingError{Address: address, Err: eris.Wrap(err, "geocode: nominatim build request")}
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	g.log.Debug("geocode: nominatim request", zap.String("query", query))

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &model.GeocodingError{Address: address, Err: eris.Wrap(err, "geocode: nominatim request")}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.GeocodingError{
			Address:    address,
			StatusCode: resp.StatusCode,
			Err:        eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &model.GeocodingError{Address: address, Err: eris.Wrap(err, "geocode: nominatim read body")}
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, &model.GeocodingError{Address: address, Err: eris.Wrap(err, "geocode: nominatim parse response")}
	}
	if len(places) == 0 {
		return nil, &model.GeocodingError{Address: address, Err: ErrNoResults}
	}

	top := places[0]
	lat, err := parseCoord(top.Lat)
	if err != nil {
		return nil, &model.GeocodingError{Address: address, Err: eris.Wrap(err, "geocode: nominatim lat")}
	}
	lon, err := parseCoord(top.Lon)
	if err != nil {
		return nil, &model.GeocodingError{Address: address, Err: eris.Wrap(err, "geocode: nominatim lon")}
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: top.DisplayName,
		Query:       query,
		Source:      "nominatim",
	}, nil
}

// parseCoord accepts a JSON string ("-25.43") or number (-25.43).
func parseCoord(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, eris.New("missing coordinate")
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, eris.Wrap(err, "decode coordinate string")
		}
		s = strings.TrimSpace(str)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse coordinate %q", s)
	}
	return v, nil
}
