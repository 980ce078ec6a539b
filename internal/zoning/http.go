package zoning

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const maxBodyBytes = 4 << 20

// StatusError reports a non-2xx HTTP response from the feature service.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("zoning: feature service returned status %d", e.Code)
}

// HTTPFetcher queries the feature service directly over HTTP. It is the
// alternative to browser rendering for deployments that expose plain JSON.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	referer   string
}

// NewHTTPFetcher creates an HTTPFetcher. A nil client gets a 10s timeout.
func NewHTTPFetcher(client *http.Client, userAgent, referer string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFetcher{client: client, userAgent: userAgent, referer: referer}
}

// Fetch implements Fetcher.
func (h *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "zoning: build request")
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	if h.referer != "" {
		req.Header.Set("Referer", h.referer)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "zoning: request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "zoning: read body")
	}
	return body, nil
}
