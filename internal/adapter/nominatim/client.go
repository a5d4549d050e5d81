// Package nominatim implements domain.Geocoder against the OSM Nominatim
// search API, with the pacing and retry behavior its usage policy requires.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/aerowatch/uas-sighting-etl/internal/config"
	"github.com/aerowatch/uas-sighting-etl/internal/domain"
	"github.com/aerowatch/uas-sighting-etl/internal/observability"
)

var clock = clockwork.NewRealClock()

// SetClock replaces the package clock, for tests.
func SetClock(c clockwork.Clock) {
	clock = c
}

// Geocoding failure classes. RateLimited and Timeout are retryable;
// NotFound and BadResponse are definitive for the input.
var (
	ErrNotFound    = errors.New("location not found")
	ErrRateLimited = errors.New("geocoder rate limited")
	ErrTimeout     = errors.New("geocoder timeout")
	ErrBadResponse = errors.New("geocoder bad response")
)

// Client implements domain.Geocoder using the Nominatim search API.
// Requests are serialized and paced to at most one per MinInterval, as the
// public endpoint demands.
type Client struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	retryBase   time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics

	mu sync.Mutex
}

// NewClient creates a Nominatim geocoding client from the pipeline config.
func NewClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.GeocodeBaseURL, "/"),
		userAgent: cfg.GeocodeUserAgent,
		httpClient: &http.Client{
			Timeout: cfg.GeocodeTimeout,
		},
		limiter:     rate.NewLimiter(rate.Every(cfg.GeocodeMinInterval), 1),
		maxAttempts: cfg.GeocodeMaxAttempts,
		retryBase:   cfg.GeocodeRetryBase,
		logger:      logger,
		metrics:     metrics,
	}
}

// Resolve converts a normalized "city,st" location key to coordinates,
// retrying transient failures with exponential backoff.
func (c *Client) Resolve(ctx context.Context, locationKey string) (domain.Coordinate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.Coordinate{}, err
		}

		start := clock.Now()
		coord, err := c.query(ctx, locationKey)
		c.metrics.GeocodeDuration.Observe(clock.Since(start).Seconds())

		if err == nil {
			c.metrics.GeocodeRequests.WithLabelValues("ok").Inc()
			return coord, nil
		}
		lastErr = err

		delay, retry := retryDecision(attempt, c.maxAttempts, c.retryBase, err)
		if !retry {
			c.metrics.GeocodeRequests.WithLabelValues(outcomeLabel(err)).Inc()
			return domain.Coordinate{}, err
		}

		c.metrics.GeocodeRetries.Inc()
		c.logger.Warn("geocode attempt failed, retrying",
			"location", locationKey, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-clock.After(delay):
		case <-ctx.Done():
			return domain.Coordinate{}, ctx.Err()
		}
	}

	c.metrics.GeocodeRequests.WithLabelValues(outcomeLabel(lastErr)).Inc()
	return domain.Coordinate{}, fmt.Errorf("geocode %q: attempts exhausted: %w", locationKey, lastErr)
}

// retryDecision classifies an attempt failure: transient errors retry with
// exponential backoff (base, 2*base, 4*base, ...), definitive ones do not.
func retryDecision(attempt, maxAttempts int, base time.Duration, err error) (time.Duration, bool) {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadResponse) {
		return 0, false
	}
	if attempt >= maxAttempts {
		return 0, false
	}
	return base << (attempt - 1), true
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrBadResponse):
		return "bad_response"
	default:
		return "transport"
	}
}

func (c *Client) query(ctx context.Context, locationKey string) (domain.Coordinate, error) {
	params := url.Values{
		"q":      {locationKey + ", USA"},
		"format": {"json"},
		"limit":  {"1"},
	}
	fullURL := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return domain.Coordinate{}, fmt.Errorf("geocode request: %w", ErrTimeout)
		}
		return domain.Coordinate{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.Coordinate{}, ErrRateLimited
	case resp.StatusCode >= http.StatusInternalServerError:
		return domain.Coordinate{}, fmt.Errorf("geocode server error: status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Coordinate{}, fmt.Errorf("%w: status %d: %s", ErrBadResponse, resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: decode: %v", ErrBadResponse, err)
	}
	if len(places) == 0 {
		return domain.Coordinate{}, ErrNotFound
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: latitude %q", ErrBadResponse, places[0].Lat)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: longitude %q", ErrBadResponse, places[0].Lon)
	}
	return domain.Coordinate{Lon: lon, Lat: lat}, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// Nominatim API response types. Coordinates arrive as strings.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
