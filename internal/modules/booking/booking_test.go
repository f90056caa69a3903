// README: Booking state machine tests (transition table, flow, guard wiring, commission side effect).
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"serene/internal/modules/commission"
	"serene/internal/modules/guard"
	"serene/internal/types"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy-path forward transitions
		{StatusPending, StatusAccepted, true},
		{StatusAccepted, StatusConfirmed, true},
		{StatusConfirmed, StatusCompleted, true},
		// rejection and cancels
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCancelledOther, true},
		{StatusPending, StatusCancelledNoLocation, true},
		{StatusAccepted, StatusCancelledNoLocation, true},
		{StatusAccepted, StatusCancelledLocationDenied, true},
		{StatusAccepted, StatusRejectedLocation, true},
		{StatusAccepted, StatusCancelledOther, true},
		// invalid: skipping states
		{StatusPending, StatusConfirmed, false},
		{StatusPending, StatusCompleted, false},
		{StatusAccepted, StatusCompleted, false},
		// invalid: confirmed can only complete
		{StatusConfirmed, StatusCancelledOther, false},
		{StatusConfirmed, StatusCancelledNoLocation, false},
		// invalid: terminal states have no outgoing transitions
		{StatusCompleted, StatusPending, false},
		{StatusRejected, StatusAccepted, false},
		{StatusCancelledOther, StatusPending, false},
		{StatusCancelledNoLocation, StatusAccepted, false},
		// invalid: no backwards moves
		{StatusAccepted, StatusPending, false},
		{StatusConfirmed, StatusAccepted, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminals := []Status{
		StatusCompleted, StatusRejected,
		StatusCancelledNoLocation, StatusCancelledLocationDenied,
		StatusRejectedLocation, StatusCancelledOther,
	}
	for _, s := range terminals {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = false, want true", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusAccepted, StatusConfirmed} {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = true, want false", s)
		}
	}
}

// memStore is a mutex-guarded in-memory Store with the same status-gated
// update semantics as the Firestore transaction.
type memStore struct {
	mu       sync.Mutex
	bookings map[types.ID]*Booking
}

func newMemStore() *memStore {
	return &memStore{bookings: map[types.ID]*Booking{}}
}

func (m *memStore) Create(ctx context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *memStore) Get(ctx context.Context, id types.ID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, change StatusChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return false, ErrNotFound
	}
	if b.Status != from {
		return false, nil
	}
	b.Status = to
	if to == StatusAccepted {
		at := change.At
		b.AcceptedAt = &at
	}
	if IsCancel(to) || to == StatusRejected {
		at := change.At
		b.CancelledAt = &at
		if change.Reason != "" {
			r := change.Reason
			b.CancelReason = &r
		}
		if change.CausedBy != "" {
			by := change.CausedBy
			b.CancelledBy = &by
		}
	}
	return true, nil
}

func (m *memStore) MarkLocationShared(ctx context.Context, id types.ID, accuracy float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return false, ErrNotFound
	}
	if b.Status != StatusAccepted {
		return false, nil
	}
	b.LocationShared = true
	b.LocationAccuracy = &accuracy
	return true, nil
}

func (m *memStore) ListAcceptedSince(ctx context.Context, since time.Time) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if b.Status == StatusAccepted && b.AcceptedAt != nil && !b.AcceptedAt.Before(since) {
			out = append(out, *b)
		}
	}
	return out, nil
}

// storeGuard mirrors the production guard's accept gate against the shared
// store: the booking must exist, be pending, and belong to the provider.
type storeGuard struct {
	store *memStore
	deny  *guard.Decision // forced denial for create, when set
}

func (g *storeGuard) CanCreateBooking(ctx context.Context, customerID *types.ID, providerID types.ID, providerType string) guard.Decision {
	if g.deny != nil {
		return *g.deny
	}
	return guard.Decision{Allowed: true}
}

func (g *storeGuard) CanAcceptBooking(ctx context.Context, bookingID, providerID types.ID) guard.Decision {
	b, err := g.store.Get(ctx, bookingID)
	if err != nil {
		return guard.Decision{Allowed: false, Reason: "authorization check failed", Severity: guard.SeverityCritical}
	}
	if b.Status != StatusPending {
		return guard.Decision{Allowed: false, Reason: fmt.Sprintf("booking is not pending (current status: %s)", b.Status), Severity: guard.SeverityWarning}
	}
	if b.ProviderID != providerID {
		return guard.Decision{Allowed: false, Reason: "booking is not assigned to you", Severity: guard.SeverityError}
	}
	return guard.Decision{Allowed: true}
}

// memLedgerStore is an in-memory commission.Store shared with the real
// commission service.
type memLedgerStore struct {
	mu      sync.Mutex
	records map[types.ID]*commission.Record
	fail    bool
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{records: map[types.ID]*commission.Record{}}
}

func (m *memLedgerStore) FindByBooking(ctx context.Context, bookingID types.ID) (*commission.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[bookingID]
	if !ok {
		return nil, commission.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memLedgerStore) Create(ctx context.Context, r *commission.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("ledger store down")
	}
	cp := *r
	m.records[r.BookingID] = &cp
	return nil
}

func (m *memLedgerStore) ListByProvider(ctx context.Context, providerID types.ID) ([]commission.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []commission.Record
	for _, r := range m.records {
		if r.ProviderID == providerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func newTestService(store *memStore, ledgerStore *memLedgerStore) *Service {
	g := &storeGuard{store: store}
	ledger := commission.NewService(ledgerStore, commission.DefaultRate)
	return NewService(store, g, ledger, nil)
}

func mustCreate(t *testing.T, svc *Service, providerID types.ID, price int64) types.ID {
	t.Helper()
	id, err := svc.Create(context.Background(), CreateCommand{
		ProviderID:   providerID,
		ProviderType: ProviderTypeTherapist,
		ChatID:       "chat-1",
		TotalPrice:   types.Money{Amount: price, Currency: "THB"},
		ServiceType:  "thai-massage",
		DurationMin:  90,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return id
}

func assertStatus(t *testing.T, svc *Service, id types.ID, want Status) {
	t.Helper()
	b, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	if b.Status != want {
		t.Fatalf("status = %s, want %s", b.Status, want)
	}
}

func TestBookingFlowHappyPath(t *testing.T) {
	store := newMemStore()
	ledgerStore := newMemLedgerStore()
	svc := newTestService(store, ledgerStore)
	ctx := context.Background()

	id := mustCreate(t, svc, "t1", 300000)
	assertStatus(t, svc, id, StatusPending)

	rec, err := svc.Accept(ctx, AcceptCommand{BookingID: id, ProviderID: "t1"})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	assertStatus(t, svc, id, StatusAccepted)
	if rec.CommissionAmount != 90000 || rec.ProviderPayout != 210000 {
		t.Fatalf("split = %d/%d, want 90000/210000", rec.CommissionAmount, rec.ProviderPayout)
	}

	if err := svc.Confirm(ctx, id); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	assertStatus(t, svc, id, StatusConfirmed)

	if err := svc.Complete(ctx, id); err != nil {
		t.Fatalf("complete: %v", err)
	}
	assertStatus(t, svc, id, StatusCompleted)
}

func TestCreateDeniedWritesNothing(t *testing.T) {
	store := newMemStore()
	g := &storeGuard{store: store, deny: &guard.Decision{
		Allowed: false, Reason: "account is not active", Severity: guard.SeverityError,
	}}
	ledger := commission.NewService(newMemLedgerStore(), commission.DefaultRate)
	svc := NewService(store, g, ledger, nil)

	_, err := svc.Create(context.Background(), CreateCommand{
		ProviderID:   "t1",
		ProviderType: ProviderTypeTherapist,
		TotalPrice:   types.Money{Amount: 100000, Currency: "THB"},
	})

	var authz *AuthzError
	if !errors.As(err, &authz) {
		t.Fatalf("want AuthzError, got %v", err)
	}
	if authz.Decision.Reason != "account is not active" {
		t.Errorf("reason = %q", authz.Decision.Reason)
	}
	if len(store.bookings) != 0 {
		t.Fatalf("denied create persisted %d booking(s)", len(store.bookings))
	}
}

func TestAcceptRecordsCommissionExactlyOnce(t *testing.T) {
	store := newMemStore()
	ledgerStore := newMemLedgerStore()
	svc := newTestService(store, ledgerStore)
	ctx := context.Background()

	id := mustCreate(t, svc, "t1", 100001)

	first, err := svc.Accept(ctx, AcceptCommand{BookingID: id, ProviderID: "t1"})
	if err != nil {
		t.Fatalf("first accept: %v", err)
	}
	// round(100001 * 0.30) = 30000
	if first.CommissionAmount != 30000 || first.ProviderPayout != 70001 {
		t.Fatalf("split = %d/%d, want 30000/70001", first.CommissionAmount, first.ProviderPayout)
	}

	// A second accept is blocked at the guard: the booking is no longer
	// pending.
	_, err = svc.Accept(ctx, AcceptCommand{BookingID: id, ProviderID: "t1"})
	var authz *AuthzError
	if !errors.As(err, &authz) {
		t.Fatalf("second accept: want AuthzError, got %v", err)
	}
	if len(ledgerStore.records) != 1 {
		t.Fatalf("ledger holds %d records, want 1", len(ledgerStore.records))
	}
}

func TestConcurrentAcceptSameBooking(t *testing.T) {
	store := newMemStore()
	ledgerStore := newMemLedgerStore()
	svc := newTestService(store, ledgerStore)
	ctx := context.Background()

	id := mustCreate(t, svc, "t1", 250000)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Accept(ctx, AcceptCommand{BookingID: id, ProviderID: "t1"})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		var authz *AuthzError
		if !errors.As(err, &authz) && !errors.Is(err, ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("%d accepts succeeded, want exactly 1", success)
	}
	if len(ledgerStore.records) != 1 {
		t.Fatalf("ledger holds %d records, want exactly 1", len(ledgerStore.records))
	}
	assertStatus(t, svc, id, StatusAccepted)
}

// A ledger failure after the status write leaves the booking accepted and
// surfaces the error; it must not be swallowed and must not roll back.
func TestAcceptSurfacesLedgerFailure(t *testing.T) {
	store := newMemStore()
	ledgerStore := newMemLedgerStore()
	ledgerStore.fail = true
	svc := newTestService(store, ledgerStore)

	id := mustCreate(t, svc, "t1", 200000)

	_, err := svc.Accept(context.Background(), AcceptCommand{BookingID: id, ProviderID: "t1"})
	if err == nil {
		t.Fatal("ledger failure was swallowed")
	}
	assertStatus(t, svc, id, StatusAccepted)
}

func TestCancelFromTerminalState(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, newMemLedgerStore())
	ctx := context.Background()

	id := mustCreate(t, svc, "t1", 150000)
	if err := svc.Reject(ctx, id, "fully booked"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	err := svc.Cancel(ctx, CancelCommand{BookingID: id, CausedBy: "customer"})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("cancel from rejected: got %v, want ErrInvalidState", err)
	}
	assertStatus(t, svc, id, StatusRejected)
}

func TestMarkLocationSharedOnlyWhileAccepted(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, newMemLedgerStore())
	ctx := context.Background()

	id := mustCreate(t, svc, "t1", 150000)

	// pending: not yet accepted
	if err := svc.MarkLocationShared(ctx, id, 25); !errors.Is(err, ErrConflict) {
		t.Fatalf("share while pending: got %v, want ErrConflict", err)
	}

	if _, err := svc.Accept(ctx, AcceptCommand{BookingID: id, ProviderID: "t1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := svc.MarkLocationShared(ctx, id, 25); err != nil {
		t.Fatalf("share while accepted: %v", err)
	}

	b, _ := svc.Get(ctx, id)
	if !b.LocationShared || b.LocationAccuracy == nil || *b.LocationAccuracy != 25 {
		t.Fatalf("location share not recorded: %+v", b)
	}
}
