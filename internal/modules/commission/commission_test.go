// README: Commission split, idempotency, settlement, and reconciliation tests.
package commission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"serene/internal/types"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		amount     int64
		rate       float64
		wantAdmin  int64
		wantPayout int64
	}{
		{300000, 0.30, 90000, 210000},
		{100001, 0.30, 30000, 70001}, // rounding lands on the admin share
		{100, 0.30, 30, 70},
		{1, 0.30, 0, 1},
		{999995, 0.15, 150000, 849995},
		{0, 0.30, 0, 0},
	}
	for _, tc := range cases {
		admin, payout := Split(tc.amount, tc.rate)
		if admin != tc.wantAdmin || payout != tc.wantPayout {
			t.Errorf("Split(%d, %v) = %d/%d, want %d/%d",
				tc.amount, tc.rate, admin, payout, tc.wantAdmin, tc.wantPayout)
		}
		if admin+payout != tc.amount {
			t.Errorf("Split(%d, %v): shares sum to %d", tc.amount, tc.rate, admin+payout)
		}
	}
}

type fakeStore struct {
	mu      sync.Mutex
	records map[types.ID]*Record
	creates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[types.ID]*Record{}}
}

func (f *fakeStore) FindByBooking(ctx context.Context, bookingID types.ID) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) Create(ctx context.Context, r *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	cp := *r
	f.records[r.BookingID] = &cp
	return nil
}

func (f *fakeStore) ListByProvider(ctx context.Context, providerID types.ID) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Record
	for _, r := range f.records {
		if r.ProviderID == providerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func TestRecordOnAcceptanceIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, DefaultRate)
	ctx := context.Background()

	b := AcceptedBooking{ID: "b1", ProviderID: "t1", TotalPrice: 300000}

	first, err := svc.RecordOnAcceptance(ctx, b)
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	second, err := svc.RecordOnAcceptance(ctx, b)
	if err != nil {
		t.Fatalf("second record: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("second call created a new record: %s vs %s", first.ID, second.ID)
	}
	if store.creates != 1 {
		t.Fatalf("store.Create called %d times, want 1", store.creates)
	}
	if first.CommissionAmount != 90000 || first.ProviderPayout != 210000 {
		t.Fatalf("split = %d/%d, want 90000/210000", first.CommissionAmount, first.ProviderPayout)
	}
	if first.Status != StatusAccepted {
		t.Errorf("status = %q, want %q", first.Status, StatusAccepted)
	}
}

func TestSettle(t *testing.T) {
	records := []Record{
		{BookingID: "b1", ServiceAmount: 100000, CommissionRate: 0.10, CommissionAmount: 10000},
		{BookingID: "b2", ServiceAmount: 200000, CommissionRate: 0.10, CommissionAmount: 20000},
	}
	st := Settle(records, 0.20, 0.10)

	if st.Volume != 300000 {
		t.Errorf("Volume = %d, want 300000", st.Volume)
	}
	if st.Gross != 30000 {
		t.Errorf("Gross = %d, want 30000", st.Gross)
	}
	if st.AdminFee != 6000 {
		t.Errorf("AdminFee = %d, want 6000", st.AdminFee)
	}
	if st.PromoterNet != 24000 {
		t.Errorf("PromoterNet = %d, want 24000", st.PromoterNet)
	}
	if len(st.Divergent) != 0 {
		t.Errorf("Divergent = %v, want none", st.Divergent)
	}
}

func TestSettleFallbackForZeroAmount(t *testing.T) {
	// A record with no persisted commission amount falls back to the
	// promoter rate instead of contributing zero.
	records := []Record{
		{BookingID: "b1", ServiceAmount: 100000, CommissionRate: 0.10},
	}
	st := Settle(records, 0.20, 0.10)
	if st.Gross != 10000 {
		t.Fatalf("Gross = %d, want fallback 10000", st.Gross)
	}
}

func TestSettleFlagsDivergence(t *testing.T) {
	// The persisted amount disagrees with rate*amount. The persisted value
	// stays authoritative and the booking is flagged.
	records := []Record{
		{BookingID: "b1", ServiceAmount: 100000, CommissionRate: 0.10, CommissionAmount: 9000},
		{BookingID: "b2", ServiceAmount: 100000, CommissionRate: 0.10, CommissionAmount: 10000},
	}
	st := Settle(records, 0.20, 0.10)

	if st.Gross != 19000 {
		t.Fatalf("Gross = %d, want 19000 (persisted amounts authoritative)", st.Gross)
	}
	if len(st.Divergent) != 1 || st.Divergent[0] != "b1" {
		t.Fatalf("Divergent = %v, want [b1]", st.Divergent)
	}
}

type staticLister struct {
	bookings []AcceptedBooking
	err      error
}

func (l staticLister) ListAcceptedSince(ctx context.Context, since time.Time) ([]AcceptedBooking, error) {
	return l.bookings, l.err
}

func TestReconcileFindsMissingRecords(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, DefaultRate)
	ctx := context.Background()

	if _, err := svc.RecordOnAcceptance(ctx, AcceptedBooking{ID: "b1", ProviderID: "t1", TotalPrice: 100000}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	lister := staticLister{bookings: []AcceptedBooking{
		{ID: "b1", ProviderID: "t1", TotalPrice: 100000},
		{ID: "b2", ProviderID: "t1", TotalPrice: 200000}, // ledger write was lost
	}}

	missing, err := svc.Reconcile(ctx, lister, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(missing) != 1 || missing[0] != "b2" {
		t.Fatalf("missing = %v, want [b2]", missing)
	}

	// Reconcile only alerts; it never auto-heals.
	if store.creates != 1 {
		t.Fatalf("reconcile created records: creates = %d", store.creates)
	}
}

func TestReconcilePropagatesListerError(t *testing.T) {
	svc := NewService(newFakeStore(), DefaultRate)
	boom := errors.New("firestore unavailable")

	_, err := svc.Reconcile(context.Background(), staticLister{err: boom}, time.Now())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped lister error", err)
	}
}
