package nominatim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerowatch/uas-sighting-etl/internal/config"
	"github.com/aerowatch/uas-sighting-etl/internal/observability"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := &config.Config{
		GeocodeBaseURL:     baseURL,
		GeocodeUserAgent:   "uas-sighting-etl-test",
		GeocodeTimeout:     5 * time.Second,
		GeocodeMaxAttempts: 3,
		GeocodeRetryBase:   30 * time.Second,
		GeocodeMinInterval: 0,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(cfg, logger, observability.NewMetricsForTesting())
}

func TestClient_Resolve_Success(t *testing.T) {
	var gotQuery, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Write([]byte(`[{"lat":"39.7392","lon":"-104.9903","display_name":"Denver, Colorado, USA"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	coord, err := c.Resolve(context.Background(), "denver,co")
	require.NoError(t, err)

	assert.InDelta(t, -104.9903, coord.Lon, 1e-9)
	assert.InDelta(t, 39.7392, coord.Lat, 1e-9)
	assert.Equal(t, "denver,co, USA", gotQuery)
	assert.Equal(t, "uas-sighting-etl-test", gotAgent)
}

func TestClient_Resolve_NotFound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Resolve(context.Background(), "nowhere,zz")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), hits.Load(), "definitive miss must not retry")
}

func TestClient_Resolve_BadResponse(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Resolve(context.Background(), "denver,co")

	assert.ErrorIs(t, err, ErrBadResponse)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_Resolve_RateLimitedThenSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[{"lat":"39.7392","lon":"-104.9903"}]`))
	}))
	defer srv.Close()

	fake := clockwork.NewFakeClock()
	SetClock(fake)
	t.Cleanup(func() { SetClock(clockwork.NewRealClock()) })

	c := newTestClient(t, srv.URL)

	done := make(chan error, 1)
	var coordLon float64
	go func() {
		coord, err := c.Resolve(context.Background(), "denver,co")
		coordLon = coord.Lon
		done <- err
	}()

	// First retry backs off by the base delay, the second by twice that.
	fake.BlockUntil(1)
	fake.Advance(30 * time.Second)
	fake.BlockUntil(1)
	fake.Advance(60 * time.Second)

	require.NoError(t, <-done)
	assert.Equal(t, int32(3), hits.Load())
	assert.InDelta(t, -104.9903, coordLon, 1e-9)
}

func TestClient_Resolve_AttemptsExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fake := clockwork.NewFakeClock()
	SetClock(fake)
	t.Cleanup(func() { SetClock(clockwork.NewRealClock()) })

	c := newTestClient(t, srv.URL)

	done := make(chan error, 1)
	go func() {
		_, err := c.Resolve(context.Background(), "denver,co")
		done <- err
	}()

	fake.BlockUntil(1)
	fake.Advance(30 * time.Second)
	fake.BlockUntil(1)
	fake.Advance(60 * time.Second)

	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempts exhausted")
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_Resolve_ContextCanceledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	fake := clockwork.NewFakeClock()
	SetClock(fake)
	t.Cleanup(func() { SetClock(clockwork.NewRealClock()) })

	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := c.Resolve(ctx, "denver,co")
		done <- err
	}()

	fake.BlockUntil(1)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRetryDecision(t *testing.T) {
	base := 30 * time.Second
	transient := errors.New("connection reset")

	tests := []struct {
		name      string
		attempt   int
		err       error
		wantDelay time.Duration
		wantRetry bool
	}{
		{"first transient", 1, transient, 30 * time.Second, true},
		{"second transient", 2, transient, 60 * time.Second, true},
		{"rate limited", 1, ErrRateLimited, 30 * time.Second, true},
		{"timeout", 2, ErrTimeout, 60 * time.Second, true},
		{"last attempt", 3, transient, 0, false},
		{"not found", 1, ErrNotFound, 0, false},
		{"bad response", 1, ErrBadResponse, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay, retry := retryDecision(tt.attempt, 3, base, tt.err)
			assert.Equal(t, tt.wantRetry, retry)
			assert.Equal(t, tt.wantDelay, delay)
		})
	}
}
