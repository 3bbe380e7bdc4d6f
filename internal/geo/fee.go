package geo

import "github.com/shopspring/decimal"

var (
	// MinDeliveryFee is the floor charged for any delivery.
	MinDeliveryFee = decimal.NewFromInt(50)
	// RatePerKm is the per-kilometer delivery rate.
	RatePerKm = decimal.NewFromInt(30)
)

// DeliveryFee derives the fee for a delivery distance:
// max(MinDeliveryFee, distanceKm × RatePerKm) rounded to two decimal places.
// A zero or negative distance yields the floor.
func DeliveryFee(distanceKm decimal.Decimal) decimal.Decimal {
	if !distanceKm.IsPositive() {
		return MinDeliveryFee
	}
	fee := distanceKm.Mul(RatePerKm).Round(2)
	if fee.LessThan(MinDeliveryFee) {
		return MinDeliveryFee
	}
	return fee
}
