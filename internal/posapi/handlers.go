package posapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/pos-resto/internal/common"
	"github.com/noah-isme/pos-resto/internal/draft"
	"github.com/noah-isme/pos-resto/internal/geo"
	"github.com/noah-isme/pos-resto/internal/menu"
	"github.com/noah-isme/pos-resto/internal/orders"
	"github.com/noah-isme/pos-resto/internal/session"
)

// Handler binds the session service to the POS REST surface.
type Handler struct {
	Svc      *session.Service
	Validate *validator.Validate
}

// Routes mounts every POS endpoint. quoteLimiter, when non-nil, rate limits
// the geocode-backed quote route.
func (h *Handler) Routes(quoteLimiter func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", h.Open)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Close)
		r.Put("/customer", h.SetCustomer)
		r.Put("/type", h.SetOrderType)
		r.Put("/discount", h.SetDiscount)
		r.Put("/payment", h.SetPayment)
		r.Put("/packaging", h.SetPackaging)
		r.Put("/address", h.SetAddress)
		r.Post("/items", h.AddItem)
		r.Post("/items/{menuItemID}/decrement", h.DecrementItem)
		r.Delete("/items/{menuItemID}", h.RemoveItem)
		if quoteLimiter != nil {
			r.With(quoteLimiter).Post("/quote", h.RequestQuote)
		} else {
			r.Post("/quote", h.RequestQuote)
		}
		r.Post("/confirm", h.Confirm)
		r.Post("/submit", h.Submit)
	})
	r.Get("/menu", h.Menu)
	r.Post("/menu/refresh", h.RefreshMenu)
	return r
}

type customerRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
}

type orderTypeRequest struct {
	OrderType string `json:"orderType" validate:"required"`
}

type itemRequest struct {
	MenuItemID string `json:"menuItemId" validate:"required"`
}

type discountRequest struct {
	Type     string `json:"type" validate:"required"`
	IDNumber string `json:"idNumber"`
}

type paymentRequest struct {
	Method       string `json:"method" validate:"required"`
	CashTendered string `json:"cashTendered"`
}

type packagingRequest struct {
	Boxes int `json:"boxes" validate:"gte=0"`
}

type addressRequest struct {
	Street   string `json:"street"`
	Barangay string `json:"barangay"`
	City     string `json:"city"`
}

// Open starts a new POS session.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Open(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// Get returns the session with derived pricing and eligibility.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Close abandons the session.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Close(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetCustomer updates the customer contact fields.
func (h *Handler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	var payload customerRequest
	if !h.decode(w, r, &payload) {
		return
	}
	view, err := h.Svc.SetCustomer(r.Context(), chi.URLParam(r, "sessionID"), payload.Name, payload.Phone)
	h.respond(w, view, err)
}

// SetOrderType switches the fulfillment type.
func (h *Handler) SetOrderType(w http.ResponseWriter, r *http.Request) {
	var payload orderTypeRequest
	if !h.decode(w, r, &payload) {
		return
	}
	orderType, err := draft.ParseOrderType(payload.OrderType)
	if err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.Svc.SetOrderType(r.Context(), chi.URLParam(r, "sessionID"), orderType)
	h.respond(w, view, err)
}

// SetDiscount selects the discount class.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	var payload discountRequest
	if !h.decode(w, r, &payload) {
		return
	}
	discountType, err := draft.ParseDiscountType(payload.Type)
	if err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.Svc.SetDiscount(r.Context(), chi.URLParam(r, "sessionID"), discountType, payload.IDNumber)
	h.respond(w, view, err)
}

// SetPayment selects the settlement method.
func (h *Handler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var payload paymentRequest
	if !h.decode(w, r, &payload) {
		return
	}
	method, err := draft.ParsePaymentMethod(payload.Method)
	if err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.Svc.SetPayment(r.Context(), chi.URLParam(r, "sessionID"), method, payload.CashTendered)
	h.respond(w, view, err)
}

// SetPackaging updates the pickup packaging count.
func (h *Handler) SetPackaging(w http.ResponseWriter, r *http.Request) {
	var payload packagingRequest
	if !h.decode(w, r, &payload) {
		return
	}
	view, err := h.Svc.SetPackagingBoxes(r.Context(), chi.URLParam(r, "sessionID"), payload.Boxes)
	h.respond(w, view, err)
}

// SetAddress updates the delivery address sub-fields.
func (h *Handler) SetAddress(w http.ResponseWriter, r *http.Request) {
	var payload addressRequest
	if !h.decode(w, r, &payload) {
		return
	}
	view, err := h.Svc.SetDeliveryAddress(r.Context(), chi.URLParam(r, "sessionID"), payload.Street, payload.Barangay, payload.City)
	h.respond(w, view, err)
}

// AddItem adds one serving of a catalog item.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload itemRequest
	if !h.decode(w, r, &payload) {
		return
	}
	view, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, "sessionID"), payload.MenuItemID)
	h.respond(w, view, err)
}

// DecrementItem removes one serving of a line.
func (h *Handler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.DecrementItem(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "menuItemID"))
	h.respond(w, view, err)
}

// RemoveItem deletes a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "menuItemID"))
	h.respond(w, view, err)
}

// RequestQuote geocodes the composed address and commits a delivery quote.
func (h *Handler) RequestQuote(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.RequestQuote(r.Context(), chi.URLParam(r, "sessionID"))
	h.respond(w, view, err)
}

// Confirm arms the session for submission and echoes the total.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Confirm(r.Context(), chi.URLParam(r, "sessionID"))
	h.respond(w, view, err)
}

// Submit posts the confirmed order to the order service.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Submit(r.Context(), chi.URLParam(r, "sessionID"))
	h.respond(w, view, err)
}

// Menu returns the current catalog snapshot.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	h.menuSnapshot(w, r, false)
}

// RefreshMenu forces a catalog refetch.
func (h *Handler) RefreshMenu(w http.ResponseWriter, r *http.Request) {
	h.menuSnapshot(w, r, true)
}

func (h *Handler) menuSnapshot(w http.ResponseWriter, r *http.Request, force bool) {
	snap, err := h.Svc.Snapshot(r.Context(), force)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"items":     snap.Items(),
		"fetchedAt": snap.FetchedAt(),
	}})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, payload any) bool {
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		common.RenderError(w, common.NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, err))
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.RenderError(w, common.NewAppError("VALIDATION_FAILED", "invalid payload", http.StatusBadRequest, err).WithDetails(err.Error()))
			return false
		}
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, view session.View, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}

	var notReady *session.NotReadyError
	if errors.As(err, &notReady) {
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_ELIGIBLE", notReady.Error(), notReady.Reasons)
		return
	}
	var subErr *orders.SubmissionError
	if errors.As(err, &subErr) {
		details := map[string]any{}
		if subErr.TableStatus != "" {
			details["tableStatus"] = subErr.TableStatus
		}
		if subErr.Reservation != "" {
			details["reservation"] = subErr.Reservation
		}
		common.JSONError(w, http.StatusBadGateway, "SUBMIT_FAILED", subErr.UserMessage(), details)
		return
	}

	switch {
	case errors.Is(err, session.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", nil)
	case errors.Is(err, session.ErrBusy):
		common.JSONError(w, http.StatusConflict, "REQUEST_IN_FLIGHT", err.Error(), nil)
	case errors.Is(err, session.ErrStaleQuote):
		common.JSONError(w, http.StatusConflict, "QUOTE_DISCARDED", err.Error(), nil)
	case errors.Is(err, session.ErrConfirmationRequired):
		common.JSONError(w, http.StatusConflict, "CONFIRMATION_REQUIRED", err.Error(), nil)
	case errors.Is(err, draft.ErrCapacityExceeded):
		common.JSONError(w, http.StatusConflict, "CAPACITY_EXCEEDED", err.Error(), nil)
	case errors.Is(err, draft.ErrUnknownMenuItem):
		common.JSONError(w, http.StatusNotFound, "MENU_ITEM_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, draft.ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, geo.ErrAddressNotFound), errors.Is(err, geo.ErrServiceUnavailable):
		common.JSONError(w, http.StatusBadGateway, "GEOCODE_FAILED", "could not resolve the delivery address, try again", nil)
	case errors.Is(err, menu.ErrUnavailable):
		common.JSONError(w, http.StatusBadGateway, "MENU_UNAVAILABLE", "menu service unavailable, try again", nil)
	default:
		common.RenderError(w, err)
	}
}
