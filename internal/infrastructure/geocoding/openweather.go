// Package geocoding resolves US zip codes to coordinates, timezone, and city
// through the OpenWeatherMap current-weather endpoint.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-directory/internal/api/metrics"
	"github.com/99minutos/user-directory/internal/core/domain"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
	DefaultTimeout = 5 * time.Second
)

// Outcome labels recorded for every provider call.
const (
	outcomeSuccess      = "success"
	outcomeNotFound     = "not_found"
	outcomeUnauthorized = "unauthorized"
	outcomeRateLimited  = "rate_limited"
	outcomeTimeout      = "timeout"
	outcomeError        = "error"
)

// Config captures the provider settings.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds a single lookup. Defaults to DefaultTimeout.
	Timeout time.Duration
	// HTTPClient is optional; http.DefaultClient is used when nil.
	HTTPClient *http.Client
}

// Client implements ports.LocationProvider. It never retries and keeps no
// cache: every lookup hits the provider.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	log     zerolog.Logger
}

// NewClient returns a Client, applying defaults for empty settings.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		http:    hc,
		log:     log.With().Str("component", "geocoding").Logger(),
	}
}

type weatherResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Timezone int    `json:"timezone"`
	Name     string `json:"name"`
	Sys      struct {
		Country string `json:"country"`
	} `json:"sys"`
}

// Lookup fetches location data for a validated 5-digit zip code.
func (c *Client) Lookup(ctx context.Context, zipCode string) (*domain.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	loc, outcome, err := c.lookup(ctx, zipCode)
	elapsed := time.Since(start)

	metrics.EnrichmentDuration.Observe(elapsed.Seconds())
	metrics.EnrichmentRequestsTotal.WithLabelValues(outcome).Inc()

	if err != nil {
		c.log.Warn().Err(err).
			Str("zip_code", zipCode).
			Str("outcome", outcome).
			Dur("elapsed", elapsed).
			Msg("location lookup failed")
		return nil, err
	}

	c.log.Debug().
		Str("zip_code", zipCode).
		Str("city", loc.City).
		Dur("elapsed", elapsed).
		Msg("location resolved")
	return loc, nil
}

func (c *Client) lookup(ctx context.Context, zipCode string) (*domain.Location, string, error) {
	q := url.Values{}
	q.Set("zip", zipCode+",us")
	q.Set("appid", c.apiKey)
	q.Set("units", "imperial")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, outcomeError, domain.Upstream("failed to fetch location data", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return transportFailure(err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, outcomeNotFound, domain.BadRequest("zip code not found")
	case res.StatusCode == http.StatusUnauthorized:
		return nil, outcomeUnauthorized, domain.Internal("invalid provider credentials", nil)
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, outcomeRateLimited, domain.Upstream("rate limit exceeded, retry later", nil)
	case res.StatusCode < 200 || res.StatusCode > 299:
		return nil, outcomeError, domain.Upstream("failed to fetch location data",
			fmt.Errorf("openweather: unexpected status %d", res.StatusCode))
	}

	var body weatherResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		if isTimeout(err) {
			return transportFailure(err)
		}
		return nil, outcomeError, domain.Upstream("failed to fetch location data",
			fmt.Errorf("openweather: decode response: %w", err))
	}

	return toLocation(body), outcomeSuccess, nil
}

func toLocation(r weatherResponse) *domain.Location {
	loc := &domain.Location{
		Latitude:              r.Coord.Lat,
		Longitude:             r.Coord.Lon,
		TimezoneOffsetSeconds: r.Timezone,
		TimezoneOffsetLabel:   domain.TimezoneLabel(r.Timezone),
		City:                  r.Name,
		Country:               r.Sys.Country,
	}
	if len(r.Weather) > 0 {
		loc.WeatherDescription = r.Weather[0].Description
	}
	return loc
}

func transportFailure(err error) (*domain.Location, string, error) {
	if isTimeout(err) {
		return nil, outcomeTimeout, domain.Timeout("request timed out", err)
	}
	return nil, outcomeError, domain.Upstream("failed to fetch location data",
		fmt.Errorf("openweather: %w", err))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
