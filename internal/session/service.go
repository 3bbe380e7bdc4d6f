package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pos-resto/internal/draft"
	"github.com/noah-isme/pos-resto/internal/gate"
	"github.com/noah-isme/pos-resto/internal/geo"
	"github.com/noah-isme/pos-resto/internal/lock"
	"github.com/noah-isme/pos-resto/internal/menu"
	"github.com/noah-isme/pos-resto/internal/obs"
	"github.com/noah-isme/pos-resto/internal/orders"
	"github.com/noah-isme/pos-resto/internal/pricing"
)

var (
	// ErrBusy is returned when a quote or submission is already in flight for the session.
	ErrBusy = errors.New("another request is in flight for this session")
	// ErrStaleQuote indicates a resolved quote was discarded because the draft changed meanwhile.
	ErrStaleQuote = errors.New("quote discarded: the draft changed while quoting")
	// ErrConfirmationRequired indicates submit was called without a prior confirmation.
	ErrConfirmationRequired = errors.New("confirm the order total before submitting")
)

// NotReadyError reports the blocking conditions preventing checkout.
type NotReadyError struct {
	Reasons []gate.Reason
}

// Error implements the error interface.
func (e *NotReadyError) Error() string {
	return "order is not ready for checkout"
}

// MenuSource provides the available-menu catalog.
type MenuSource interface {
	Available(ctx context.Context) (*menu.Snapshot, error)
}

// OrderSubmitter posts a completed draft to the order service.
type OrderSubmitter interface {
	Submit(ctx context.Context, p orders.Payload) error
}

// View is the full derived state of a session at one observation point.
type View struct {
	Record  Record          `json:"record"`
	Summary pricing.Summary `json:"summary"`
	Reasons []gate.Reason   `json:"reasons,omitempty"`
}

// Service owns the POS terminal sessions. Each session holds exactly one
// draft; every mutation re-derives pricing and eligibility before the record
// is saved. Quote and submit never run concurrently for the same session.
type Service struct {
	Store     *Store
	Menu      MenuSource
	MenuCache *menu.Cache
	Resolver  geo.Resolver
	Orders    OrderSubmitter
	// Guard, when configured, serialises quote and submit per session across
	// processes. Without it an in-memory map covers the single-process case.
	Guard  *lock.Guard
	Logger zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]string
	snapshot atomic.Pointer[menu.Snapshot]
}

func (s *Service) begin(ctx context.Context, id, op string) error {
	if s.Guard != nil {
		if err := s.Guard.Acquire(ctx, guardKey(id), op); err != nil {
			if errors.Is(err, lock.ErrHeld) {
				return fmt.Errorf("%v: %w", err, ErrBusy)
			}
			return err
		}
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight == nil {
		s.inFlight = make(map[string]string)
	}
	if existing, ok := s.inFlight[id]; ok {
		return fmt.Errorf("%s already in flight: %w", existing, ErrBusy)
	}
	s.inFlight[id] = op
	return nil
}

func (s *Service) end(id string) {
	if s.Guard != nil {
		s.Guard.Release(context.Background(), guardKey(id))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

func guardKey(id string) string {
	return "pos:guard:session:" + id
}

// claimHeld reports whether a quote or submit claim is live for the session.
// When the claim store cannot be reached the claim is assumed live.
func (s *Service) claimHeld(ctx context.Context, id string) bool {
	if s.Guard != nil {
		held, err := s.Guard.Held(ctx, guardKey(id))
		if err != nil {
			s.Logger.Warn().Err(err).Str("session_id", id).Msg("inspect submit claim")
			return true
		}
		return held
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[id]
	return ok
}

// transition moves the record to the target checkout state through the
// state machine.
func transition(rec *Record, to gate.State) error {
	if !gate.Allowed(rec.State, to) {
		return fmt.Errorf("session %s cannot move from %s to %s", rec.ID, rec.State, to)
	}
	rec.State = to
	return nil
}

// loadForUpdate loads the record and repairs a submission that died
// mid-flight: a persisted Submitting state can only outlive its guard claim
// when the submitting process crashed before writing the outcome, so such a
// record is demoted to Failed instead of wedging the session until its TTL.
// owned marks callers that hold the claim themselves.
func (s *Service) loadForUpdate(ctx context.Context, id string, owned bool) (Record, error) {
	rec, err := s.Store.Load(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.State != gate.StateSubmitting {
		return rec, nil
	}
	if !owned && s.claimHeld(ctx, id) {
		return Record{}, fmt.Errorf("submission in progress: %w", ErrBusy)
	}
	if err := transition(&rec, gate.StateFailed); err != nil {
		return Record{}, err
	}
	rec.Confirmed = false
	if err := s.Store.Save(ctx, rec); err != nil {
		return Record{}, err
	}
	s.Logger.Warn().Str("session_id", id).Msg("recovered session from interrupted submission")
	return rec, nil
}

// Open starts a fresh session with an empty draft. A failed catalog load is
// logged but does not block opening; item mutations will surface it.
func (s *Service) Open(ctx context.Context) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("session service not configured")
	}
	if _, err := s.Snapshot(ctx, false); err != nil {
		s.Logger.Warn().Err(err).Msg("load menu snapshot")
	}
	rec := Record{
		ID:        uuid.NewString(),
		Draft:     draft.New(),
		State:     gate.StateIncomplete,
		CreatedAt: time.Now(),
	}
	if err := s.Store.Save(ctx, rec); err != nil {
		return View{}, err
	}
	return s.view(rec), nil
}

// Get returns the session with freshly derived pricing and eligibility.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	rec, err := s.Store.Load(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(rec), nil
}

// Close abandons the session and its draft.
func (s *Service) Close(ctx context.Context, id string) error {
	return s.Store.Delete(ctx, id)
}

// Snapshot returns the current catalog snapshot, fetching from the menu
// service when none is held yet or force is set. The snapshot is swapped
// wholesale so concurrent pricing never sees a half-updated catalog.
func (s *Service) Snapshot(ctx context.Context, force bool) (*menu.Snapshot, error) {
	if !force {
		if snap := s.snapshot.Load(); snap != nil {
			return snap, nil
		}
		if s.MenuCache != nil {
			snap, ok, err := s.MenuCache.Get(ctx)
			if err != nil {
				s.Logger.Warn().Err(err).Msg("read menu cache")
			} else if ok {
				s.snapshot.Store(snap)
				return snap, nil
			}
		}
	}
	if s.Menu == nil {
		return nil, errors.New("menu source not configured")
	}
	snap, err := s.Menu.Available(ctx)
	if err != nil {
		return nil, err
	}
	s.snapshot.Store(snap)
	if s.MenuCache != nil {
		if err := s.MenuCache.Set(ctx, snap); err != nil {
			s.Logger.Warn().Err(err).Msg("write menu cache")
		}
	}
	return snap, nil
}

func (s *Service) view(rec Record) View {
	sum := pricing.Compute(&rec.Draft)
	_, reasons := gate.Evaluate(&rec.Draft, sum)
	return View{Record: rec, Summary: sum, Reasons: reasons}
}

// mutate loads the record, applies fn to the draft, re-derives state and
// saves. A failed fn leaves the persisted record untouched. Any mutation
// drops a pending confirmation and re-enters Failed sessions.
func (s *Service) mutate(ctx context.Context, id, op string, fn func(*draft.OrderDraft) error) (View, error) {
	rec, err := s.loadForUpdate(ctx, id, false)
	if err != nil {
		return View{}, err
	}
	if err := fn(&rec.Draft); err != nil {
		return View{}, err
	}
	rec.Confirmed = false
	sum := pricing.Compute(&rec.Draft)
	state, reasons := gate.Evaluate(&rec.Draft, sum)
	if err := transition(&rec, state); err != nil {
		return View{}, err
	}
	if err := s.Store.Save(ctx, rec); err != nil {
		return View{}, err
	}
	obs.CountMutation(op)
	return View{Record: rec, Summary: sum, Reasons: reasons}, nil
}

// SetCustomer updates the customer contact fields.
func (s *Service) SetCustomer(ctx context.Context, id, name, phone string) (View, error) {
	return s.mutate(ctx, id, "set_customer", func(d *draft.OrderDraft) error {
		d.SetCustomer(name, phone)
		return nil
	})
}

// SetOrderType switches the fulfillment type.
func (s *Service) SetOrderType(ctx context.Context, id string, t draft.OrderType) (View, error) {
	return s.mutate(ctx, id, "set_order_type", func(d *draft.OrderDraft) error {
		d.SetOrderType(t)
		return nil
	})
}

// AddItem adds one serving of a catalog item to the draft.
func (s *Service) AddItem(ctx context.Context, id, menuItemID string) (View, error) {
	snap, err := s.Snapshot(ctx, false)
	if err != nil {
		return View{}, err
	}
	return s.mutate(ctx, id, "add_item", func(d *draft.OrderDraft) error {
		return d.AddItem(snap, menuItemID)
	})
}

// DecrementItem removes one serving; the line disappears at zero.
func (s *Service) DecrementItem(ctx context.Context, id, menuItemID string) (View, error) {
	return s.mutate(ctx, id, "decrement_item", func(d *draft.OrderDraft) error {
		return d.DecrementItem(menuItemID)
	})
}

// RemoveItem deletes a line regardless of quantity.
func (s *Service) RemoveItem(ctx context.Context, id, menuItemID string) (View, error) {
	return s.mutate(ctx, id, "remove_item", func(d *draft.OrderDraft) error {
		return d.RemoveItem(menuItemID)
	})
}

// SetDiscount selects the discount class and its ID number.
func (s *Service) SetDiscount(ctx context.Context, id string, t draft.DiscountType, idNumber string) (View, error) {
	return s.mutate(ctx, id, "set_discount", func(d *draft.OrderDraft) error {
		d.SetDiscount(t, idNumber)
		return nil
	})
}

// SetPayment selects settlement method and tendered cash.
func (s *Service) SetPayment(ctx context.Context, id string, m draft.PaymentMethod, cashTendered string) (View, error) {
	return s.mutate(ctx, id, "set_payment", func(d *draft.OrderDraft) error {
		d.SetPayment(m, cashTendered)
		return nil
	})
}

// SetPackagingBoxes updates the pickup packaging count.
func (s *Service) SetPackagingBoxes(ctx context.Context, id string, boxes int) (View, error) {
	return s.mutate(ctx, id, "set_packaging", func(d *draft.OrderDraft) error {
		return d.SetPackagingBoxes(boxes)
	})
}

// SetDeliveryAddress updates the address sub-fields, clearing any stale quote.
func (s *Service) SetDeliveryAddress(ctx context.Context, id, street, barangay, city string) (View, error) {
	return s.mutate(ctx, id, "set_address", func(d *draft.OrderDraft) error {
		return d.SetDeliveryAddress(street, barangay, city)
	})
}

// RequestQuote geocodes the composed address and commits distance and fee on
// the draft. The call is one-shot: a second request while one is in flight is
// rejected, and a result arriving after the address changed is discarded.
func (s *Service) RequestQuote(ctx context.Context, id string) (View, error) {
	if err := s.begin(ctx, id, "quote"); err != nil {
		return View{}, err
	}
	defer s.end(id)

	rec, err := s.loadForUpdate(ctx, id, true)
	if err != nil {
		return View{}, err
	}
	if rec.Draft.OrderType != draft.OrderTypeDelivery {
		return View{}, fmt.Errorf("quotes only apply to delivery orders: %w", draft.ErrInvalidInput)
	}
	address := rec.Draft.ComposedAddress()
	if address == "" {
		return View{}, fmt.Errorf("delivery address incomplete: %w", draft.ErrInvalidInput)
	}

	start := time.Now()
	quote, err := s.Resolver.Quote(ctx, address)
	result := "success"
	if err != nil {
		result = "failure"
	}
	obs.CountQuote(result)
	obs.ObserveQuoteLatency(result, obs.DurationMillis(time.Since(start)))
	if err != nil {
		s.Logger.Warn().Err(err).Str("session_id", id).Msg("delivery quote failed")
		return View{}, err
	}

	// The draft may have been edited or reset while the geocoder answered.
	fresh, err := s.Store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return View{}, fmt.Errorf("session reset while quoting: %w", ErrStaleQuote)
		}
		return View{}, err
	}
	if fresh.Draft.ComposedAddress() != address {
		return View{}, ErrStaleQuote
	}
	coords := draft.Coordinates{Lat: quote.Location.Lat, Lon: quote.Location.Lon}
	if err := fresh.Draft.ApplyQuote(coords, quote.DistanceKm, quote.Fee); err != nil {
		return View{}, err
	}
	fresh.Confirmed = false
	sum := pricing.Compute(&fresh.Draft)
	state, reasons := gate.Evaluate(&fresh.Draft, sum)
	if err := transition(&fresh, state); err != nil {
		return View{}, err
	}
	if err := s.Store.Save(ctx, fresh); err != nil {
		return View{}, err
	}
	return View{Record: fresh, Summary: sum, Reasons: reasons}, nil
}

// Confirm arms the session for submission. It fails with NotReadyError while
// any checkout precondition is unmet; the returned view carries the total the
// operator is confirming.
func (s *Service) Confirm(ctx context.Context, id string) (View, error) {
	rec, err := s.loadForUpdate(ctx, id, false)
	if err != nil {
		return View{}, err
	}
	sum := pricing.Compute(&rec.Draft)
	state, reasons := gate.Evaluate(&rec.Draft, sum)
	if err := transition(&rec, state); err != nil {
		return View{}, err
	}
	if state != gate.StateReady {
		if err := s.Store.Save(ctx, rec); err != nil {
			return View{}, err
		}
		return View{}, &NotReadyError{Reasons: reasons}
	}
	rec.Confirmed = true
	if err := s.Store.Save(ctx, rec); err != nil {
		return View{}, err
	}
	return View{Record: rec, Summary: sum}, nil
}

// Submit posts the confirmed draft to the order service. On success the draft
// is reset and the catalog refreshed; on failure the draft is preserved so
// the operator can retry without re-entering anything.
func (s *Service) Submit(ctx context.Context, id string) (View, error) {
	if err := s.begin(ctx, id, "submit"); err != nil {
		return View{}, err
	}
	defer s.end(id)

	rec, err := s.loadForUpdate(ctx, id, true)
	if err != nil {
		return View{}, err
	}
	sum := pricing.Compute(&rec.Draft)
	state, reasons := gate.Evaluate(&rec.Draft, sum)
	if state != gate.StateReady {
		return View{}, &NotReadyError{Reasons: reasons}
	}
	if !rec.Confirmed {
		return View{}, ErrConfirmationRequired
	}

	rec.State = state
	if err := transition(&rec, gate.StateSubmitting); err != nil {
		return View{}, err
	}
	if err := s.Store.Save(ctx, rec); err != nil {
		return View{}, err
	}

	if err := s.Orders.Submit(ctx, orders.PayloadFrom(&rec.Draft, sum)); err != nil {
		if err := transition(&rec, gate.StateFailed); err != nil {
			return View{}, err
		}
		rec.Confirmed = false
		if saveErr := s.Store.Save(ctx, rec); saveErr != nil {
			s.Logger.Error().Err(saveErr).Str("session_id", id).Msg("persist failed submission state")
		}
		obs.CountSubmit("failure")
		return View{Record: rec, Summary: sum}, err
	}
	obs.CountSubmit("success")

	completed := rec
	if err := transition(&completed, gate.StateCompleted); err != nil {
		return View{}, err
	}

	fresh := Record{
		ID:        rec.ID,
		Draft:     draft.New(),
		State:     gate.StateIncomplete,
		CreatedAt: rec.CreatedAt,
	}
	if err := s.Store.Save(ctx, fresh); err != nil {
		s.Logger.Error().Err(err).Str("session_id", id).Msg("reset draft after submission")
	}
	if _, err := s.Snapshot(ctx, true); err != nil {
		s.Logger.Warn().Err(err).Msg("refresh menu after submission")
	}
	return View{Record: completed, Summary: sum}, nil
}
