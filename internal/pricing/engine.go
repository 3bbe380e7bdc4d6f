package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-resto/internal/draft"
)

// PWD and Senior discounts remove the 12% VAT component embedded in the
// subtotal rather than taking a flat percentage off.
var vatDivisor = decimal.RequireFromString("1.12")

// PackagingFeePerBox is charged per box on pickup orders.
var PackagingFeePerBox = decimal.NewFromInt(10)

// Summary aggregates every derived pricing component for one draft. It is
// recomputed from scratch on each observation and never stored.
type Summary struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discountAmount"`
	DiscountLabel string          `json:"discountLabel,omitempty"`
	PackagingFee  decimal.Decimal `json:"packagingFee"`
	DeliveryFee   decimal.Decimal `json:"deliveryFee"`
	Total         decimal.Decimal `json:"total"`
	CashTendered  decimal.Decimal `json:"cashTendered"`
	Change        decimal.Decimal `json:"change"`
	Settled       bool            `json:"settled"`
}

// Subtotal folds the line totals of the draft.
func Subtotal(lines []draft.LineItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		subtotal = subtotal.Add(line.LineTotal)
	}
	return subtotal
}

// VATExclusionDiscount returns the discount amount and its receipt label for
// the given customer class: subtotal − subtotal/1.12, rounded to centavos.
func VATExclusionDiscount(subtotal decimal.Decimal, t draft.DiscountType) (decimal.Decimal, string) {
	if !subtotal.IsPositive() {
		return decimal.Zero, ""
	}
	var label string
	switch t {
	case draft.DiscountPWD:
		label = "PWD"
	case draft.DiscountSenior:
		label = "Senior"
	default:
		return decimal.Zero, ""
	}
	discount := subtotal.Sub(subtotal.DivRound(vatDivisor, 4)).Round(2)
	return discount, label
}

// PackagingFee derives the pickup packaging surcharge.
func PackagingFee(boxes int) decimal.Decimal {
	if boxes < 1 {
		return decimal.Zero
	}
	return PackagingFeePerBox.Mul(decimal.NewFromInt(int64(boxes)))
}

// Compute derives the full pricing summary for a draft. It is a pure function
// of the draft; callers invoke it after every mutation instead of caching the
// result.
func Compute(d *draft.OrderDraft) Summary {
	sum := Summary{
		Subtotal:     decimal.Zero,
		Discount:     decimal.Zero,
		PackagingFee: decimal.Zero,
		DeliveryFee:  decimal.Zero,
		Total:        decimal.Zero,
		CashTendered: decimal.Zero,
		Change:       decimal.Zero,
	}
	if d == nil {
		return sum
	}
	sum.Subtotal = Subtotal(d.Lines)
	sum.Discount, sum.DiscountLabel = VATExclusionDiscount(sum.Subtotal, d.DiscountType)

	switch d.OrderType {
	case draft.OrderTypePickup:
		sum.PackagingFee = PackagingFee(d.PackagingBoxes)
	case draft.OrderTypeDelivery:
		if d.DeliveryFee.IsPositive() {
			sum.DeliveryFee = d.DeliveryFee
		}
	}

	sum.Total = sum.Subtotal.Sub(sum.Discount).Add(sum.PackagingFee).Add(sum.DeliveryFee)

	if d.PaymentMethod == draft.PaymentCash {
		sum.CashTendered = ParseCash(d.CashTendered)
		sum.Settled = sum.Total.IsPositive() && sum.CashTendered.GreaterThanOrEqual(sum.Total)
		if sum.Settled {
			sum.Change = sum.CashTendered.Sub(sum.Total)
		}
		return sum
	}

	// Non-cash methods settle externally; nothing to validate here.
	sum.Settled = true
	return sum
}
