package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-resto/internal/draft"
	"github.com/noah-isme/pos-resto/internal/gate"
	"github.com/noah-isme/pos-resto/internal/geo"
	"github.com/noah-isme/pos-resto/internal/lock"
	"github.com/noah-isme/pos-resto/internal/menu"
	"github.com/noah-isme/pos-resto/internal/orders"
	"github.com/noah-isme/pos-resto/internal/session"
)

type fakeMenu struct {
	mu    sync.Mutex
	snap  *menu.Snapshot
	err   error
	calls int
}

func (f *fakeMenu) Available(ctx context.Context) (*menu.Snapshot, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func (f *fakeMenu) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSubmitter struct {
	mu       sync.Mutex
	err      error
	payloads []orders.Payload
}

func (f *fakeSubmitter) Submit(ctx context.Context, p orders.Payload) error {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return f.err
}

type blockingSubmitter struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSubmitter) Submit(ctx context.Context, _ orders.Payload) error {
	_ = ctx
	close(b.entered)
	<-b.release
	return nil
}

type geocoderFunc func(ctx context.Context, address string) (geo.Point, error)

func (f geocoderFunc) Geocode(ctx context.Context, address string) (geo.Point, error) {
	return f(ctx, address)
}

func testSnapshot() *menu.Snapshot {
	return menu.NewSnapshot([]menu.Item{
		{ID: "adobo", Name: "Chicken Adobo", Category: "Mains", Price: decimal.NewFromInt(120), AvailableServings: 5},
		{ID: "halo", Name: "Halo-Halo", Category: "Desserts", Price: decimal.RequireFromString("85.50"), AvailableServings: 1},
	}, time.Now())
}

func newService(t *testing.T, geocoder geo.Geocoder, submitter session.OrderSubmitter) (*session.Service, *fakeMenu) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	src := &fakeMenu{snap: testSnapshot()}
	svc := &session.Service{
		Store:  &session.Store{Client: client, TTL: time.Hour},
		Menu:   src,
		Orders: submitter,
		Guard:  &lock.Guard{R: client, TTL: time.Minute},
		Logger: zerolog.Nop(),
		Resolver: geo.Resolver{
			Geocoder: geocoder,
			Origin:   geo.Point{Lat: 13.0, Lon: 121.0},
		},
	}
	return svc, src
}

func openDelivery(t *testing.T, svc *session.Service) string {
	t.Helper()
	ctx := context.Background()
	view, err := svc.Open(ctx)
	require.NoError(t, err)
	id := view.Record.ID

	_, err = svc.SetCustomer(ctx, id, "Maria Santos", "09171234567")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, "adobo")
	require.NoError(t, err)
	_, err = svc.SetOrderType(ctx, id, draft.OrderTypeDelivery)
	require.NoError(t, err)
	_, err = svc.SetDeliveryAddress(ctx, id, "12 Rizal St", "Tampus", "Boac")
	require.NoError(t, err)
	_, err = svc.SetPayment(ctx, id, draft.PaymentGCash, "")
	require.NoError(t, err)
	return id
}

func openReadyDineIn(t *testing.T, svc *session.Service) string {
	t.Helper()
	ctx := context.Background()
	view, err := svc.Open(ctx)
	require.NoError(t, err)
	id := view.Record.ID

	_, err = svc.SetCustomer(ctx, id, "Maria Santos", "")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, "adobo")
	require.NoError(t, err)
	_, err = svc.SetPayment(ctx, id, draft.PaymentCash, "200")
	require.NoError(t, err)
	return id
}

func TestOpenGetClose(t *testing.T) {
	svc, _ := newService(t, &geo.MockGeocoder{}, &fakeSubmitter{})
	ctx := context.Background()

	view, err := svc.Open(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, view.Record.ID)
	require.Equal(t, gate.StateIncomplete, view.Record.State)
	require.Equal(t, draft.OrderTypeDineIn, view.Record.Draft.OrderType)

	got, err := svc.Get(ctx, view.Record.ID)
	require.NoError(t, err)
	require.Equal(t, view.Record.ID, got.Record.ID)
	require.NotEmpty(t, got.Reasons)

	require.NoError(t, svc.Close(ctx, view.Record.ID))
	_, err = svc.Get(ctx, view.Record.ID)
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestMutationsDeriveStateAndPricing(t *testing.T) {
	svc, _ := newService(t, &geo.MockGeocoder{}, &fakeSubmitter{})
	ctx := context.Background()

	view, err := svc.Open(ctx)
	require.NoError(t, err)
	id := view.Record.ID

	view, err = svc.AddItem(ctx, id, "adobo")
	require.NoError(t, err)
	view, err = svc.AddItem(ctx, id, "adobo")
	require.NoError(t, err)
	require.True(t, view.Summary.Subtotal.Equal(decimal.NewFromInt(240)))
	require.Equal(t, gate.StateIncomplete, view.Record.State)

	_, err = svc.SetCustomer(ctx, id, "Maria Santos", "")
	require.NoError(t, err)
	view, err = svc.SetPayment(ctx, id, draft.PaymentCash, "₱300")
	require.NoError(t, err)
	require.Equal(t, gate.StateReady, view.Record.State)
	require.True(t, view.Summary.Change.Equal(decimal.NewFromInt(60)))

	// Capacity failure leaves the stored draft untouched.
	_, err = svc.AddItem(ctx, id, "halo")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, "halo")
	require.ErrorIs(t, err, draft.ErrCapacityExceeded)
	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, got.Record.Draft.Quantity("halo"))
}

func TestMutationRejectedWhileSubmitting(t *testing.T) {
	sub := &blockingSubmitter{entered: make(chan struct{}), release: make(chan struct{})}
	svc, _ := newService(t, &geo.MockGeocoder{}, sub)
	ctx := context.Background()
	id := openReadyDineIn(t, svc)

	_, err := svc.Confirm(ctx, id)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), id)
		done <- err
	}()
	<-sub.entered

	_, err = svc.SetCustomer(ctx, id, "Juan Cruz", "")
	require.ErrorIs(t, err, session.ErrBusy)

	close(sub.release)
	require.NoError(t, <-done)
}

func TestInterruptedSubmissionRecovers(t *testing.T) {
	svc, _ := newService(t, &geo.MockGeocoder{}, &fakeSubmitter{})
	ctx := context.Background()
	id := openReadyDineIn(t, svc)

	view, err := svc.Confirm(ctx, id)
	require.NoError(t, err)

	// A process dying between persisting Submitting and writing the outcome
	// leaves the record stuck with no live claim.
	rec := view.Record
	rec.State = gate.StateSubmitting
	require.NoError(t, svc.Store.Save(ctx, rec))

	// Mutations recover the session instead of rejecting it until the TTL.
	view, err = svc.SetCustomer(ctx, id, "Juan Cruz", "")
	require.NoError(t, err)
	require.Equal(t, gate.StateReady, view.Record.State)
	require.Equal(t, 1, view.Record.Draft.Quantity("adobo"))

	// Recovery drops the confirmation, so a retried submit re-confirms first.
	view, err = svc.Confirm(ctx, id)
	require.NoError(t, err)
	rec = view.Record
	rec.State = gate.StateSubmitting
	require.NoError(t, svc.Store.Save(ctx, rec))

	_, err = svc.Submit(ctx, id)
	require.ErrorIs(t, err, session.ErrConfirmationRequired)

	_, err = svc.Confirm(ctx, id)
	require.NoError(t, err)
	view, err = svc.Submit(ctx, id)
	require.NoError(t, err)
	require.Equal(t, gate.StateCompleted, view.Record.State)
}

func TestRequestQuoteCommitsDistanceAndFee(t *testing.T) {
	svc, _ := newService(t, &geo.MockGeocoder{Point: geo.Point{Lat: 13.5, Lon: 121.0}}, &fakeSubmitter{})
	ctx := context.Background()
	id := openDelivery(t, svc)

	view, err := svc.RequestQuote(ctx, id)
	require.NoError(t, err)
	require.True(t, view.Record.Draft.HasQuote())
	require.True(t, view.Record.Draft.DeliveryKm.Equal(decimal.RequireFromString("55.6")))
	require.True(t, view.Summary.DeliveryFee.Equal(decimal.NewFromInt(1668)))
	require.Equal(t, gate.StateReady, view.Record.State)
}

func TestRequestQuoteOnlyForDelivery(t *testing.T) {
	svc, _ := newService(t, &geo.MockGeocoder{}, &fakeSubmitter{})
	ctx := context.Background()

	view, err := svc.Open(ctx)
	require.NoError(t, err)

	_, err = svc.RequestQuote(ctx, view.Record.ID)
	require.ErrorIs(t, err, draft.ErrInvalidInput)
}

func TestRequestQuoteDiscardedWhenAddressChanges(t *testing.T) {
	var svc *session.Service
	var id string
	geocoder := geocoderFunc(func(ctx context.Context, address string) (geo.Point, error) {
		// The operator edits the address while the geocoder is resolving.
		rec, err := svc.Store.Load(ctx, id)
		if err != nil {
			return geo.Point{}, err
		}
		rec.Draft.DeliveryCity = "Mogpog"
		if err := svc.Store.Save(ctx, rec); err != nil {
			return geo.Point{}, err
		}
		return geo.Point{Lat: 13.5, Lon: 121.0}, nil
	})
	svc, _ = newService(t, geocoder, &fakeSubmitter{})
	id = openDelivery(t, svc)

	_, err := svc.RequestQuote(context.Background(), id)
	require.ErrorIs(t, err, session.ErrStaleQuote)

	got, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.False(t, got.Record.Draft.HasQuote())
}

func TestRequestQuoteSingleFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	geocoder := geocoderFunc(func(ctx context.Context, address string) (geo.Point, error) {
		close(entered)
		<-release
		return geo.Point{Lat: 13.5, Lon: 121.0}, nil
	})
	svc, _ := newService(t, geocoder, &fakeSubmitter{})
	id := openDelivery(t, svc)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RequestQuote(context.Background(), id)
		done <- err
	}()
	<-entered

	_, err := svc.RequestQuote(context.Background(), id)
	require.ErrorIs(t, err, session.ErrBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestConfirmRequiresReadiness(t *testing.T) {
	svc, _ := newService(t, &geo.MockGeocoder{}, &fakeSubmitter{})
	ctx := context.Background()

	view, err := svc.Open(ctx)
	require.NoError(t, err)
	id := view.Record.ID

	_, err = svc.Confirm(ctx, id)
	var notReady *session.NotReadyError
	require.ErrorAs(t, err, &notReady)
	require.NotEmpty(t, notReady.Reasons)

	_, err = svc.SetCustomer(ctx, id, "Maria Santos", "")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, "adobo")
	require.NoError(t, err)
	_, err = svc.SetPayment(ctx, id, draft.PaymentCash, "200")
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, id)
	require.NoError(t, err)
	require.True(t, confirmed.Record.Confirmed)
	require.True(t, confirmed.Summary.Total.Equal(decimal.NewFromInt(120)))
}

func TestMutationDropsConfirmation(t *testing.T) {
	svc, _ := newService(t, &geo.MockGeocoder{}, &fakeSubmitter{})
	ctx := context.Background()

	view, err := svc.Open(ctx)
	require.NoError(t, err)
	id := view.Record.ID

	_, err = svc.SetCustomer(ctx, id, "Maria Santos", "")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, "adobo")
	require.NoError(t, err)
	_, err = svc.SetPayment(ctx, id, draft.PaymentCash, "500")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, id)
	require.NoError(t, err)

	// The total changed under the confirmation; submit must demand a new one.
	_, err = svc.AddItem(ctx, id, "adobo")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, id)
	require.ErrorIs(t, err, session.ErrConfirmationRequired)
}

func TestSubmitSuccessResetsDraft(t *testing.T) {
	submitter := &fakeSubmitter{}
	svc, src := newService(t, &geo.MockGeocoder{}, submitter)
	ctx := context.Background()

	view, err := svc.Open(ctx)
	require.NoError(t, err)
	id := view.Record.ID

	_, err = svc.SetCustomer(ctx, id, "Maria Santos", "")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, "adobo")
	require.NoError(t, err)
	_, err = svc.SetPayment(ctx, id, draft.PaymentCash, "200")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, id)
	require.NoError(t, err)

	fetchesBefore := src.callCount()
	result, err := svc.Submit(ctx, id)
	require.NoError(t, err)
	require.Equal(t, gate.StateCompleted, result.Record.State)
	require.True(t, result.Summary.Change.Equal(decimal.NewFromInt(80)))
	require.Len(t, submitter.payloads, 1)
	require.Equal(t, "Maria Santos", submitter.payloads[0].CustomerName)

	// The session survives with a fresh draft, and the catalog was refetched.
	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, gate.StateIncomplete, got.Record.State)
	require.Empty(t, got.Record.Draft.Lines)
	require.False(t, got.Record.Confirmed)
	require.Greater(t, src.callCount(), fetchesBefore)
}

func TestSubmitFailurePreservesDraft(t *testing.T) {
	submitter := &fakeSubmitter{err: &orders.SubmissionError{StatusCode: 409, Message: "table occupied", TableStatus: "occupied"}}
	svc, _ := newService(t, &geo.MockGeocoder{}, submitter)
	ctx := context.Background()

	view, err := svc.Open(ctx)
	require.NoError(t, err)
	id := view.Record.ID

	_, err = svc.SetCustomer(ctx, id, "Maria Santos", "")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, "adobo")
	require.NoError(t, err)
	_, err = svc.SetPayment(ctx, id, draft.PaymentCash, "200")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, id)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, id)
	var subErr *orders.SubmissionError
	require.ErrorAs(t, err, &subErr)
	require.True(t, subErr.Conflict())

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, gate.StateFailed, got.Record.State)
	require.Len(t, got.Record.Draft.Lines, 1, "draft survives a failed submission")
	require.False(t, got.Record.Confirmed)

	// Retry: confirm again, then submit with a healthy backend.
	submitter.err = nil
	_, err = svc.Confirm(ctx, id)
	require.NoError(t, err)
	result, err := svc.Submit(ctx, id)
	require.NoError(t, err)
	require.Equal(t, gate.StateCompleted, result.Record.State)
}

func TestSubmitWithoutReadinessReportsReasons(t *testing.T) {
	svc, _ := newService(t, &geo.MockGeocoder{}, &fakeSubmitter{})
	ctx := context.Background()

	view, err := svc.Open(ctx)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, view.Record.ID)
	var notReady *session.NotReadyError
	require.ErrorAs(t, err, &notReady)
}

func TestSnapshotFallsBackToMenuError(t *testing.T) {
	svc, src := newService(t, &geo.MockGeocoder{}, &fakeSubmitter{})
	src.err = errors.New("boom")

	// Open still succeeds with a degraded catalog.
	view, err := svc.Open(context.Background())
	require.NoError(t, err)

	// But item mutations surface the failure.
	_, err = svc.AddItem(context.Background(), view.Record.ID, "adobo")
	require.Error(t, err)
}
