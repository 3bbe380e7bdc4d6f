package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultOrigin is the business origin all delivery distances are measured from.
var DefaultOrigin = Point{Lat: 13.475246207507663, Lon: 121.85945810514359}

// Quote is a resolved delivery distance and fee pair. It stays valid only
// until the address it was quoted for changes.
type Quote struct {
	Location   Point
	DistanceKm decimal.Decimal
	Fee        decimal.Decimal
}

// Resolver turns a composed delivery address into a Quote.
type Resolver struct {
	Geocoder Geocoder
	Origin   Point
}

// Quote geocodes the address and derives distance and fee from the origin.
func (r Resolver) Quote(ctx context.Context, address string) (Quote, error) {
	if r.Geocoder == nil {
		return Quote{}, errors.New("geocoder not configured")
	}
	if strings.TrimSpace(address) == "" {
		return Quote{}, fmt.Errorf("address is empty: %w", ErrAddressNotFound)
	}
	origin := r.Origin
	if origin == (Point{}) {
		origin = DefaultOrigin
	}
	location, err := r.Geocoder.Geocode(ctx, address)
	if err != nil {
		return Quote{}, err
	}
	distance := DistanceKm(origin, location)
	return Quote{
		Location:   location,
		DistanceKm: distance,
		Fee:        DeliveryFee(distance),
	}, nil
}
