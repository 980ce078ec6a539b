// Package resilience classifies pipeline failures and retries or sheds whole
// analyses on behalf of callers.
package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/sells-group/zoning-cli/internal/model"
)

// IsTransient reports whether a failed analysis may succeed if run again.
// Geocoding and zone-service failures caused by timeouts, dropped
// connections, or retryable HTTP statuses are transient. A missing zone, an
// invalid coordinate, and an unresolvable address are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var (
		none *model.NoZoneFoundError
		crd  *model.InvalidCoordinateError
		geo  *model.GeocodingError
		svc  *model.ZoneServiceError
	)
	switch {
	case errors.As(err, &none), errors.As(err, &crd):
		return false
	case errors.As(err, &geo):
		if geo.StatusCode != 0 {
			return IsTransientHTTPStatus(geo.StatusCode)
		}
		return isNetworkFault(geo.Err)
	case errors.As(err, &svc):
		if svc.StatusCode != 0 {
			return IsTransientHTTPStatus(svc.StatusCode)
		}
		return isNetworkFault(svc.Err)
	}
	return isNetworkFault(err)
}

// IsTransientHTTPStatus reports whether status is worth retrying.
func IsTransientHTTPStatus(status int) bool {
	switch status {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

var networkPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"net::err_", // Chrome network errors
}

func isNetworkFault(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range networkPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
