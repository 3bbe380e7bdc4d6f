package draft

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-resto/internal/menu"
)

var (
	// ErrInvalidInput is returned when the provided mutation payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownMenuItem indicates the referenced catalog entry does not exist.
	ErrUnknownMenuItem = errors.New("menu item not found")
	// ErrCapacityExceeded indicates the requested quantity exceeds available servings.
	ErrCapacityExceeded = errors.New("not enough servings available")
)

// OrderType selects how the order is fulfilled.
type OrderType string

const (
	OrderTypeDineIn   OrderType = "DINE_IN"
	OrderTypePickup   OrderType = "PICKUP"
	OrderTypeDelivery OrderType = "DELIVERY"
)

// ParseOrderType validates a wire value into an OrderType.
func ParseOrderType(value string) (OrderType, error) {
	switch OrderType(strings.ToUpper(strings.TrimSpace(value))) {
	case OrderTypeDineIn:
		return OrderTypeDineIn, nil
	case OrderTypePickup:
		return OrderTypePickup, nil
	case OrderTypeDelivery:
		return OrderTypeDelivery, nil
	default:
		return "", fmt.Errorf("order type %q: %w", value, ErrInvalidInput)
	}
}

// DiscountType selects the customer class qualifying for a discount.
type DiscountType string

const (
	DiscountNone   DiscountType = "NONE"
	DiscountPWD    DiscountType = "PWD"
	DiscountSenior DiscountType = "SENIOR"
)

// ParseDiscountType validates a wire value into a DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	switch DiscountType(strings.ToUpper(strings.TrimSpace(value))) {
	case DiscountNone:
		return DiscountNone, nil
	case DiscountPWD:
		return DiscountPWD, nil
	case DiscountSenior:
		return DiscountSenior, nil
	default:
		return "", fmt.Errorf("discount type %q: %w", value, ErrInvalidInput)
	}
}

// PaymentMethod selects how the order is settled.
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "CASH"
	PaymentGCash PaymentMethod = "GCASH"
)

// ParsePaymentMethod validates a wire value into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToUpper(strings.TrimSpace(value))) {
	case PaymentCash:
		return PaymentCash, nil
	case PaymentGCash:
		return PaymentGCash, nil
	default:
		return "", fmt.Errorf("payment method %q: %w", value, ErrInvalidInput)
	}
}

// Fixed tail of every composed delivery address. The chain only delivers
// within the home province.
const (
	AddressProvince = "Marinduque"
	AddressCountry  = "Philippines"
)

// Coordinates is a WGS84 point returned by the geocoder.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LineItem is one catalog item plus quantity within the draft.
type LineItem struct {
	MenuItemID string          `json:"menuItemId"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"lineTotal"`
}

// OrderDraft is the single mutable order a POS session owns. All monetary
// derivations happen in the pricing package; the draft only holds state.
type OrderDraft struct {
	CustomerName  string        `json:"customerName"`
	CustomerPhone string        `json:"customerPhone"`
	OrderType     OrderType     `json:"orderType"`
	Lines         []LineItem    `json:"lines"`
	DiscountType  DiscountType  `json:"discountType"`
	DiscountID    string        `json:"discountIdNumber"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	// CashTendered keeps the raw terminal input; sanitising happens at pricing time.
	CashTendered   string `json:"cashTendered"`
	PackagingBoxes int    `json:"packagingBoxes"`

	DeliveryStreet   string          `json:"deliveryStreet"`
	DeliveryBarangay string          `json:"deliveryBarangay"`
	DeliveryCity     string          `json:"deliveryCity"`
	DeliveryCoords   *Coordinates    `json:"deliveryCoordinates"`
	DeliveryKm       decimal.Decimal `json:"deliveryDistanceKm"`
	DeliveryFee      decimal.Decimal `json:"deliveryFee"`
}

// New returns an empty dine-in cash draft, the state a POS session starts in.
func New() OrderDraft {
	return OrderDraft{
		OrderType:     OrderTypeDineIn,
		DiscountType:  DiscountNone,
		PaymentMethod: PaymentCash,
	}
}

// SetCustomer updates the customer contact fields.
func (d *OrderDraft) SetCustomer(name, phone string) {
	d.CustomerName = strings.TrimSpace(name)
	d.CustomerPhone = strings.TrimSpace(phone)
}

// SetOrderType switches the fulfillment type. Fields specific to the type
// being left are reset: packaging boxes when leaving pickup, the delivery
// address and any quote when leaving delivery.
func (d *OrderDraft) SetOrderType(t OrderType) {
	if d.OrderType == t {
		return
	}
	switch d.OrderType {
	case OrderTypePickup:
		d.PackagingBoxes = 0
	case OrderTypeDelivery:
		d.DeliveryStreet = ""
		d.DeliveryBarangay = ""
		d.DeliveryCity = ""
		d.clearQuote()
	}
	d.OrderType = t
}

// AddItem adds one serving of the referenced catalog entry. An existing line
// is incremented rather than duplicated. The draft is left unchanged when the
// catalog snapshot cannot cover the requested quantity.
func (d *OrderDraft) AddItem(snap *menu.Snapshot, menuItemID string) error {
	item, ok := snap.Item(menuItemID)
	if !ok {
		return fmt.Errorf("%q: %w", menuItemID, ErrUnknownMenuItem)
	}
	for i := range d.Lines {
		if d.Lines[i].MenuItemID != menuItemID {
			continue
		}
		if d.Lines[i].Quantity+1 > item.AvailableServings {
			return fmt.Errorf("only %d servings of %s left: %w", item.AvailableServings, item.Name, ErrCapacityExceeded)
		}
		d.Lines[i].Quantity++
		d.Lines[i].LineTotal = item.Price.Mul(decimal.NewFromInt(int64(d.Lines[i].Quantity)))
		return nil
	}
	if item.AvailableServings < 1 {
		return fmt.Errorf("%s is sold out: %w", item.Name, ErrCapacityExceeded)
	}
	d.Lines = append(d.Lines, LineItem{
		MenuItemID: item.ID,
		Name:       item.Name,
		UnitPrice:  item.Price,
		Quantity:   1,
		LineTotal:  item.Price,
	})
	return nil
}

// DecrementItem removes one serving from the referenced line. Reaching zero
// removes the line entirely, preserving the order of the remaining lines.
func (d *OrderDraft) DecrementItem(menuItemID string) error {
	for i := range d.Lines {
		if d.Lines[i].MenuItemID != menuItemID {
			continue
		}
		d.Lines[i].Quantity--
		if d.Lines[i].Quantity < 1 {
			d.Lines = append(d.Lines[:i], d.Lines[i+1:]...)
			return nil
		}
		d.Lines[i].LineTotal = d.Lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(d.Lines[i].Quantity)))
		return nil
	}
	return fmt.Errorf("%q: %w", menuItemID, ErrUnknownMenuItem)
}

// RemoveItem deletes the referenced line regardless of quantity.
func (d *OrderDraft) RemoveItem(menuItemID string) error {
	for i := range d.Lines {
		if d.Lines[i].MenuItemID == menuItemID {
			d.Lines = append(d.Lines[:i], d.Lines[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%q: %w", menuItemID, ErrUnknownMenuItem)
}

// Quantity reports the drafted quantity for a catalog entry.
func (d *OrderDraft) Quantity(menuItemID string) int {
	for _, line := range d.Lines {
		if line.MenuItemID == menuItemID {
			return line.Quantity
		}
	}
	return 0
}

// SetDiscount selects the discount class and its supporting ID number.
func (d *OrderDraft) SetDiscount(t DiscountType, idNumber string) {
	d.DiscountType = t
	if t == DiscountNone {
		d.DiscountID = ""
		return
	}
	d.DiscountID = strings.TrimSpace(idNumber)
}

// SetPayment selects the settlement method and the raw tendered-cash input.
func (d *OrderDraft) SetPayment(m PaymentMethod, cashTendered string) {
	d.PaymentMethod = m
	if m != PaymentCash {
		d.CashTendered = ""
		return
	}
	d.CashTendered = strings.TrimSpace(cashTendered)
}

// SetPackagingBoxes updates the pickup packaging count. Negative input clamps to zero.
func (d *OrderDraft) SetPackagingBoxes(n int) error {
	if d.OrderType != OrderTypePickup {
		return fmt.Errorf("packaging boxes only apply to pickup orders: %w", ErrInvalidInput)
	}
	if n < 0 {
		n = 0
	}
	d.PackagingBoxes = n
	return nil
}

// SetDeliveryAddress updates the address sub-fields. Any change to the
// composed address clears a previously obtained quote so checkout is blocked
// until a fresh quote is requested.
func (d *OrderDraft) SetDeliveryAddress(street, barangay, city string) error {
	if d.OrderType != OrderTypeDelivery {
		return fmt.Errorf("delivery address only applies to delivery orders: %w", ErrInvalidInput)
	}
	street = strings.TrimSpace(street)
	barangay = strings.TrimSpace(barangay)
	city = strings.TrimSpace(city)
	if street != d.DeliveryStreet || barangay != d.DeliveryBarangay || city != d.DeliveryCity {
		d.clearQuote()
	}
	d.DeliveryStreet = street
	d.DeliveryBarangay = barangay
	d.DeliveryCity = city
	return nil
}

// ComposedAddress joins the address sub-fields with the fixed province and
// country. It is empty unless street, barangay and city are all present.
func (d *OrderDraft) ComposedAddress() string {
	if d.DeliveryStreet == "" || d.DeliveryBarangay == "" || d.DeliveryCity == "" {
		return ""
	}
	return strings.Join([]string{d.DeliveryStreet, d.DeliveryBarangay, d.DeliveryCity, AddressProvince, AddressCountry}, ", ")
}

// ApplyQuote commits a resolved delivery quote onto the draft.
func (d *OrderDraft) ApplyQuote(coords Coordinates, distanceKm, fee decimal.Decimal) error {
	if d.OrderType != OrderTypeDelivery {
		return fmt.Errorf("quote only applies to delivery orders: %w", ErrInvalidInput)
	}
	if d.ComposedAddress() == "" {
		return fmt.Errorf("delivery address incomplete: %w", ErrInvalidInput)
	}
	d.DeliveryCoords = &coords
	d.DeliveryKm = distanceKm
	d.DeliveryFee = fee
	return nil
}

// HasQuote reports whether a live delivery quote is committed on the draft.
func (d *OrderDraft) HasQuote() bool {
	return d.DeliveryCoords != nil && d.DeliveryKm.IsPositive() && d.DeliveryFee.IsPositive()
}

func (d *OrderDraft) clearQuote() {
	d.DeliveryCoords = nil
	d.DeliveryKm = decimal.Zero
	d.DeliveryFee = decimal.Zero
}
