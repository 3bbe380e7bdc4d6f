package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/noah-isme/pos-resto/internal/resilience"
)

var (
	// ErrServiceUnavailable indicates the geocoding service could not be reached.
	ErrServiceUnavailable = errors.New("geocoding service unavailable")
	// ErrAddressNotFound indicates the service returned no usable result.
	ErrAddressNotFound = errors.New("address could not be resolved")
)

// Geocoder resolves a free-form address to a coordinate pair.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Point, error)
}

// HTTPGeocoder calls an external forward-geocoding endpoint returning a
// GeoJSON-like feature collection. An optional circuit breaker guards the
// dependency.
type HTTPGeocoder struct {
	BaseURL string
	HTTP    *http.Client
	Breaker *resilience.Breaker
}

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode resolves the address via GET {base}?q=<address>&limit=1&lang=en.
func (g *HTTPGeocoder) Geocode(ctx context.Context, address string) (Point, error) {
	if g == nil || g.BaseURL == "" {
		return Point{}, errors.New("geocoder not configured")
	}
	if g.Breaker != nil && !g.Breaker.Allow() {
		return Point{}, fmt.Errorf("%w: %w", ErrServiceUnavailable, resilience.ErrOpenCircuit)
	}

	pt, err := g.geocode(ctx, address)
	if g.Breaker != nil {
		// Unresolvable addresses are valid answers from a healthy service.
		g.Breaker.Report(err == nil || errors.Is(err, ErrAddressNotFound))
	}
	return pt, err
}

func (g *HTTPGeocoder) geocode(ctx context.Context, address string) (Point, error) {
	endpoint, err := url.Parse(g.BaseURL)
	if err != nil {
		return Point{}, fmt.Errorf("parse geocode base url: %w", err)
	}
	query := endpoint.Query()
	query.Set("q", address)
	query.Set("limit", "1")
	query.Set("lang", "en")
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Point{}, fmt.Errorf("build geocode request: %w", err)
	}
	client := g.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Point{}, fmt.Errorf("geocoder responded %s: %w", resp.Status, ErrServiceUnavailable)
	}

	var payload geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Point{}, fmt.Errorf("decode geocode payload: %w", ErrServiceUnavailable)
	}
	if len(payload.Features) == 0 {
		return Point{}, ErrAddressNotFound
	}
	coords := payload.Features[0].Geometry.Coordinates
	if len(coords) < 2 {
		return Point{}, ErrAddressNotFound
	}
	// GeoJSON order is [lon, lat].
	pt := Point{Lat: coords[1], Lon: coords[0]}
	if !pt.Finite() {
		return Point{}, ErrAddressNotFound
	}
	return pt, nil
}

// MockGeocoder returns a fixed point or error and is useful for tests.
type MockGeocoder struct {
	Point Point
	Err   error
	Calls int
}

// Geocode returns the canned result regardless of the address.
func (m *MockGeocoder) Geocode(ctx context.Context, address string) (Point, error) {
	_ = ctx
	_ = address
	m.Calls++
	if m.Err != nil {
		return Point{}, m.Err
	}
	return m.Point, nil
}
