package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-resto/internal/draft"
	"github.com/noah-isme/pos-resto/internal/pricing"
)

// Line mirrors one draft line on the wire.
type Line struct {
	MenuItemID string          `json:"menuItemId"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"lineTotal"`
}

// Payload is the full draft-shaped body posted to the order service.
type Payload struct {
	CustomerName     string             `json:"customerName"`
	CustomerPhone    string             `json:"customerPhone,omitempty"`
	OrderType        string             `json:"orderType"`
	Lines            []Line             `json:"items"`
	DiscountType     string             `json:"discountType"`
	DiscountIDNumber string             `json:"discountIdNumber,omitempty"`
	PaymentMethod    string             `json:"paymentMethod"`
	CashTendered     decimal.Decimal    `json:"cashTendered"`
	PackagingBoxes   int                `json:"packagingBoxes"`
	DeliveryAddress  string             `json:"deliveryAddress,omitempty"`
	DeliveryCoords   *draft.Coordinates `json:"deliveryCoordinates,omitempty"`
	DeliveryKm       decimal.Decimal    `json:"deliveryDistanceKm"`
	DeliveryFee      decimal.Decimal    `json:"deliveryFee"`
	Subtotal         decimal.Decimal    `json:"subtotal"`
	DiscountAmount   decimal.Decimal    `json:"discountAmount"`
	PackagingFee     decimal.Decimal    `json:"packagingFee"`
	Total            decimal.Decimal    `json:"total"`
	Change           decimal.Decimal    `json:"change"`
}

// PayloadFrom assembles the submission body from a draft and its pricing summary.
func PayloadFrom(d *draft.OrderDraft, sum pricing.Summary) Payload {
	lines := make([]Line, 0, len(d.Lines))
	for _, line := range d.Lines {
		lines = append(lines, Line{
			MenuItemID: line.MenuItemID,
			Name:       line.Name,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
			LineTotal:  line.LineTotal,
		})
	}
	return Payload{
		CustomerName:     d.CustomerName,
		CustomerPhone:    d.CustomerPhone,
		OrderType:        string(d.OrderType),
		Lines:            lines,
		DiscountType:     string(d.DiscountType),
		DiscountIDNumber: d.DiscountID,
		PaymentMethod:    string(d.PaymentMethod),
		CashTendered:     sum.CashTendered,
		PackagingBoxes:   d.PackagingBoxes,
		DeliveryAddress:  d.ComposedAddress(),
		DeliveryCoords:   d.DeliveryCoords,
		DeliveryKm:       d.DeliveryKm,
		DeliveryFee:      sum.DeliveryFee,
		Subtotal:         sum.Subtotal,
		DiscountAmount:   sum.Discount,
		PackagingFee:     sum.PackagingFee,
		Total:            sum.Total,
		Change:           sum.Change,
	}
}

// SubmissionError is a structured rejection from the order service.
type SubmissionError struct {
	StatusCode  int    `json:"-"`
	Message     string `json:"message"`
	TableStatus string `json:"tableStatus,omitempty"`
	Reservation string `json:"reservation,omitempty"`
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("order service rejected the order (%d)", e.StatusCode)
}

// Conflict reports whether the backend flagged a seating or reservation clash.
func (e *SubmissionError) Conflict() bool {
	return e != nil && (e.TableStatus != "" || e.Reservation != "")
}

// UserMessage renders the operator-facing failure text: conflict rejections
// get the seating detail, everything else a generic failure notice.
func (e *SubmissionError) UserMessage() string {
	if e == nil {
		return "order could not be submitted"
	}
	if e.Conflict() {
		detail := e.TableStatus
		if detail == "" {
			detail = e.Reservation
		}
		return fmt.Sprintf("table is unavailable (%s); pick another table or try again", detail)
	}
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return "order could not be submitted"
}

// Client posts completed drafts to the order service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c != nil && c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// Submit posts the payload to POST {base}/orders. A non-2xx answer decodes
// into a SubmissionError; transport failures wrap the underlying error.
func (c *Client) Submit(ctx context.Context, p Payload) error {
	if c == nil || c.BaseURL == "" {
		return errors.New("orders client not configured")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal order payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("submit order: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	subErr := &SubmissionError{StatusCode: resp.StatusCode}
	if decodeErr := json.NewDecoder(resp.Body).Decode(subErr); decodeErr != nil {
		subErr.Message = ""
	}
	return subErr
}
