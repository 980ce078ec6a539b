package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Defaults(t *testing.T) {
	r := New(Options{SettleDelay: -1}, nil)
	assert.Equal(t, "pre", r.opts.WaitSelector)
	assert.Equal(t, 10*time.Second, r.opts.WaitTimeout)
	assert.Equal(t, time.Duration(0), r.opts.SettleDelay)
	assert.Equal(t, 45*time.Second, r.opts.Timeout)
	assert.NotNil(t, r.log)
}

func TestWaitOrSettle_ElementAppears(t *testing.T) {
	start := time.Now()
	err := waitOrSettle(context.Background(), time.Second, time.Hour, func(context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitOrSettle_FallsBackToSettleDelay(t *testing.T) {
	start := time.Now()
	err := waitOrSettle(context.Background(), 20*time.Millisecond, 30*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitOrSettle_WaitErrorStillSettles(t *testing.T) {
	err := waitOrSettle(context.Background(), time.Second, time.Millisecond, func(context.Context) error {
		return errors.New("node not found")
	})
	assert.NoError(t, err)
}

func TestWaitOrSettle_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := waitOrSettle(ctx, time.Second, time.Hour, func(ctx context.Context) error {
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitOrSettle_ParentExpiresDuringSettle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	err := waitOrSettle(ctx, 10*time.Millisecond, time.Hour, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestFetch_LiveChrome drives a real browser. It needs Chrome on PATH.
func TestFetch_LiveChrome(t *testing.T) {
	if os.Getenv("ZONING_CHROME_TEST") != "1" {
		t.Skip("set ZONING_CHROME_TEST=1 to run against a local Chrome")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"features":[{"attributes":{"sg_zona":"ZC"}}]}`))
	}))
	defer srv.Close()

	tmp := t.TempDir()
	r := New(Options{TempDir: tmp, WaitTimeout: 5 * time.Second, SettleDelay: time.Second}, zap.NewNop())

	html, err := r.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<pre")
	assert.Contains(t, string(html), `"sg_zona":"ZC"`)

	leftovers, err := filepath.Glob(filepath.Join(tmp, "zoning-chrome-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "profile directory must be removed")
}

func TestFetch_MissingChromeFailsAndCleansUp(t *testing.T) {
	tmp := t.TempDir()
	r := New(Options{
		ExecPath: filepath.Join(tmp, "no-such-chrome"),
		TempDir:  tmp,
		Timeout:  5 * time.Second,
	}, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := r.Fetch(context.Background(), "http://127.0.0.1/")
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser: start")
	case <-time.After(10 * time.Second):
		t.Fatal("Fetch did not return after a failed browser launch")
	}

	leftovers, err := filepath.Glob(filepath.Join(tmp, "zoning-chrome-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "profile directory must be removed")
}
