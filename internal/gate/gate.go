package gate

import (
	"github.com/noah-isme/pos-resto/internal/draft"
	"github.com/noah-isme/pos-resto/internal/pricing"
)

// State is the checkout position of a POS session.
type State string

const (
	StateIncomplete State = "INCOMPLETE"
	StateReady      State = "READY"
	StateSubmitting State = "SUBMITTING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

// Allowed reports whether the checkout state machine permits the transition.
func Allowed(from, to State) bool {
	if from == to {
		return true
	}
	switch from {
	case StateIncomplete:
		return to == StateReady
	case StateReady:
		return to == StateIncomplete || to == StateSubmitting
	case StateSubmitting:
		return to == StateCompleted || to == StateFailed
	case StateFailed:
		return to == StateReady || to == StateIncomplete
	default:
		return false
	}
}

// Reason explains one condition blocking checkout.
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Blocking reason codes, one per distinct condition.
const (
	CodeMissingCustomerName = "MISSING_CUSTOMER_NAME"
	CodeEmptyCart           = "EMPTY_CART"
	CodeIncompleteAddress   = "INCOMPLETE_ADDRESS"
	CodeMissingPhone        = "MISSING_PHONE"
	CodeMissingQuote        = "MISSING_QUOTE"
	CodeMissingDiscountID   = "MISSING_DISCOUNT_ID"
	CodeInsufficientCash    = "INSUFFICIENT_CASH"
)

// Evaluate aggregates every checkout precondition into a single verdict:
// StateReady when the draft may be submitted, otherwise StateIncomplete plus
// one reason per blocking condition.
func Evaluate(d *draft.OrderDraft, sum pricing.Summary) (State, []Reason) {
	var reasons []Reason
	if d == nil {
		return StateIncomplete, []Reason{{Code: CodeEmptyCart, Message: "no order draft"}}
	}
	if d.CustomerName == "" {
		reasons = append(reasons, Reason{Code: CodeMissingCustomerName, Message: "customer name is required"})
	}
	if len(d.Lines) == 0 {
		reasons = append(reasons, Reason{Code: CodeEmptyCart, Message: "add at least one item"})
	}
	if d.OrderType == draft.OrderTypeDelivery {
		if d.ComposedAddress() == "" {
			reasons = append(reasons, Reason{Code: CodeIncompleteAddress, Message: "complete the delivery address"})
		}
		if d.CustomerPhone == "" {
			reasons = append(reasons, Reason{Code: CodeMissingPhone, Message: "missing phone"})
		}
		if !d.HasQuote() {
			reasons = append(reasons, Reason{Code: CodeMissingQuote, Message: "request a delivery quote"})
		}
	}
	if d.DiscountType != draft.DiscountNone && d.DiscountID == "" {
		reasons = append(reasons, Reason{Code: CodeMissingDiscountID, Message: "discount ID number is required"})
	}
	if d.PaymentMethod == draft.PaymentCash && !sum.Settled {
		reasons = append(reasons, Reason{Code: CodeInsufficientCash, Message: "insufficient cash"})
	}
	if len(reasons) > 0 {
		return StateIncomplete, reasons
	}
	return StateReady, nil
}
