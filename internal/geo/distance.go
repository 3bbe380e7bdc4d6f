package geo

import (
	"math"

	"github.com/shopspring/decimal"
)

const earthRadiusKm = 6371.0088

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

// Finite reports whether both coordinates are real numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lon) && !math.IsInf(p.Lon, 0)
}

// DistanceKm returns the great-circle distance between two points in
// kilometers, rounded to two decimal places.
func DistanceKm(a, b Point) decimal.Decimal {
	km := haversine(a, b)
	if math.IsNaN(km) || math.IsInf(km, 0) || km < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(km).Round(2)
}

func haversine(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLon*sinLon
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
