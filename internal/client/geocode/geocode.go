// Package geocode is a client for Nominatim-compatible geocoding APIs, used
// for address autocomplete of doctor and emergency contact addresses.
//
// Requests are rate limited client-side (public Nominatim allows one request
// per second) and go through a circuit breaker so an unavailable provider
// fails fast instead of stalling the UI.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrEmptyQuery is returned by Search for a blank query.
	ErrEmptyQuery = errors.New("geocode: empty query")
	// ErrNotFound is returned by Reverse when no address matches the coordinates.
	ErrNotFound = errors.New("geocode: no result")
)

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geocode: unexpected status %d", e.StatusCode)
}

// Place is a geocoded address.
type Place struct {
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Road        string  `json:"road,omitempty"`
	HouseNumber string  `json:"house_number,omitempty"`
	City        string  `json:"city,omitempty"`
	Postcode    string  `json:"postcode,omitempty"`
	Country     string  `json:"country,omitempty"`
}

// nominatimPlace mirrors the provider's JSON. Coordinates come as strings.
type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Error       string `json:"error"`
	Address     struct {
		Road        string `json:"road"`
		HouseNumber string `json:"house_number"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		Postcode    string `json:"postcode"`
		Country     string `json:"country"`
	} `json:"address"`
}

func (p nominatimPlace) toPlace() (Place, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("geocode: bad latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("geocode: bad longitude %q: %w", p.Lon, err)
	}
	city := p.Address.City
	if city == "" {
		city = p.Address.Town
	}
	if city == "" {
		city = p.Address.Village
	}
	return Place{
		DisplayName: p.DisplayName,
		Latitude:    lat,
		Longitude:   lon,
		Road:        p.Address.Road,
		HouseNumber: p.Address.HouseNumber,
		City:        city,
		Postcode:    p.Address.Postcode,
		Country:     p.Address.Country,
	}, nil
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// WithRateLimit overrides the default one request per second.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

// Client queries the geocoding provider. It is safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	language  string
	http      *http.Client
	limiter   *rate.Limiter
	cb        *gobreaker.CircuitBreaker[[]byte]
	log       *zap.Logger
}

// New returns a Client for the provider at baseURL. userAgent identifies the
// application, as the provider's usage policy requires.
func New(baseURL, userAgent string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		language:  "fr,en",
		http:      &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "geocode",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// Client errors say nothing about provider health.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return c
}

// Search returns up to limit places matching query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 || limit > 20 {
		limit = 5
	}

	body, err := c.get(ctx, "/search", url.Values{
		"q":              {query},
		"format":         {"jsonv2"},
		"addressdetails": {"1"},
		"limit":          {strconv.Itoa(limit)},
	})
	if err != nil {
		return nil, err
	}

	var raw []nominatimPlace
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("geocode: decode response: %w", err)
	}
	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		p, err := r.toPlace()
		if err != nil {
			c.log.Debug("skipping malformed place", zap.Error(err))
			continue
		}
		places = append(places, p)
	}
	return places, nil
}

// Reverse returns the address at the given coordinates.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*Place, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("geocode: coordinates out of range (%f, %f)", lat, lon)
	}

	body, err := c.get(ctx, "/reverse", url.Values{
		"lat":            {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', 6, 64)},
		"format":         {"jsonv2"},
		"addressdetails": {"1"},
	})
	if err != nil {
		return nil, err
	}

	var raw nominatimPlace
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("geocode: decode response: %w", err)
	}
	if raw.Error != "" {
		return nil, ErrNotFound
	}
	p, err := raw.toPlace()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("geocode: rate limit wait: %w", err)
	}

	return c.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Language", c.language)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("geocode: execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("geocode: read response: %w", err)
		}
		return body, nil
	})
}
