// README: Location verification workflow; one-shot capture, share persistence, and the timeout watchdog.
package locationverify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"serene/internal/modules/booking"
	"serene/internal/types"
)

var (
	ErrStaleCapture   = errors.New("location capture is stale; a fresh fix is required")
	ErrBadCoordinates = errors.New("coordinates out of range")
	ErrBadAccuracy    = errors.New("accuracy must be positive")
)

// BookingControl is the slice of the state machine the workflow drives.
type BookingControl interface {
	MarkLocationShared(ctx context.Context, id types.ID, accuracy float64) error
	Cancel(ctx context.Context, cmd booking.CancelCommand) error
}

// Chats cancels the chat session tied to a booking.
type Chats interface {
	MarkCancelled(ctx context.Context, chatID types.ID, reason string) error
}

// Geocoder resolves coordinates to a display address. Optional; a nil
// geocoder disables the address hint.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// Store persists location records.
type Store interface {
	Create(ctx context.Context, r *Record) error
	FindByBooking(ctx context.Context, bookingID types.ID) (*Record, error)
}

type Service struct {
	store    Store
	bookings BookingControl
	chats    Chats
	geocoder Geocoder

	captureMaxAge time.Duration
	deadline      time.Duration
	now           func() time.Time

	mu     sync.Mutex
	timers map[types.ID]*time.Timer
}

func NewService(store Store, bookings BookingControl, chats Chats, geocoder Geocoder, captureMaxAge, deadline time.Duration) *Service {
	if captureMaxAge <= 0 {
		captureMaxAge = 15 * time.Second
	}
	if deadline <= 0 {
		deadline = 5 * time.Minute
	}
	return &Service{
		store:         store,
		bookings:      bookings,
		chats:         chats,
		geocoder:      geocoder,
		captureMaxAge: captureMaxAge,
		deadline:      deadline,
		now:           time.Now,
		timers:        map[types.ID]*time.Timer{},
	}
}

// ValidateCapture checks that a client-reported fix is plausible and
// fresh. Cached positions older than the capture window are rejected.
func (s *Service) ValidateCapture(c Capture) error {
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return ErrBadCoordinates
	}
	if c.Accuracy <= 0 {
		return ErrBadAccuracy
	}
	if c.CapturedAt.IsZero() || s.now().Sub(c.CapturedAt) > s.captureMaxAge {
		return ErrStaleCapture
	}
	return nil
}

// SaveLocation persists one location record. This is the single point at
// which raw coordinates enter storage. The reverse-geocoded address is a
// best-effort enrichment and never blocks persistence.
func (s *Service) SaveLocation(ctx context.Context, bookingID, chatID types.ID, c Capture) (*Record, error) {
	rec := &Record{
		ID:         types.ID(uuid.NewString()),
		BookingID:  bookingID,
		ChatID:     chatID,
		Latitude:   c.Lat,
		Longitude:  c.Lng,
		Accuracy:   c.Accuracy,
		Source:     SourceUser,
		CapturedAt: c.CapturedAt,
	}
	if s.geocoder != nil {
		if addr, err := s.geocoder.ReverseGeocode(ctx, c.Lat, c.Lng); err == nil {
			rec.Address = addr
		} else {
			log.Printf("reverse geocode for booking %s: %v", bookingID, err)
		}
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("save location record: %w", err)
	}
	return rec, nil
}

// ShareLocation is the customer path: validate the fix, win or lose the
// race against the deadline timer, and persist. The booking-status gate
// decides the race; if the timer already cancelled the booking, nothing
// is persisted and ErrConflict surfaces from the state machine.
func (s *Service) ShareLocation(ctx context.Context, bookingID, chatID types.ID, c Capture) (*Record, error) {
	if err := s.ValidateCapture(c); err != nil {
		return nil, err
	}
	if err := s.bookings.MarkLocationShared(ctx, bookingID, c.Accuracy); err != nil {
		return nil, err
	}
	s.CancelTimeout(bookingID)
	return s.SaveLocation(ctx, bookingID, chatID, c)
}

// ScheduleTimeout arms the watchdog for a booking. If the deadline fires
// before the timer is cancelled, the booking and chat are cancelled and
// onTimeout is invoked. A zero duration uses the configured deadline.
func (s *Service) ScheduleTimeout(bookingID, chatID types.ID, onTimeout func(types.ID), d time.Duration) {
	if d <= 0 {
		d = s.deadline
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[bookingID]; ok {
		old.Stop()
	}
	s.timers[bookingID] = time.AfterFunc(d, func() {
		s.fireTimeout(bookingID, chatID, onTimeout)
	})
}

// CancelTimeout disarms the watchdog, typically because location was
// shared early. Safe to call when no timer is armed.
func (s *Service) CancelTimeout(bookingID types.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[bookingID]; ok {
		t.Stop()
		delete(s.timers, bookingID)
	}
}

func (s *Service) fireTimeout(bookingID, chatID types.ID, onTimeout func(types.ID)) {
	s.mu.Lock()
	delete(s.timers, bookingID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.bookings.Cancel(ctx, booking.CancelCommand{
		BookingID: bookingID,
		To:        booking.StatusCancelledNoLocation,
		Reason:    "location was not shared in time",
		CausedBy:  "system",
	})
	if errors.Is(err, booking.ErrInvalidState) || errors.Is(err, booking.ErrConflict) {
		// Lost the race: location was shared or the booking advanced.
		return
	}
	if err != nil {
		log.Printf("location timeout cancel for booking %s: %v", bookingID, err)
		return
	}

	if chatID != "" {
		if err := s.chats.MarkCancelled(ctx, chatID, "location_timeout"); err != nil {
			log.Printf("cancel chat %s after location timeout: %v", chatID, err)
		}
	}
	if onTimeout != nil {
		onTimeout(bookingID)
	}
}

// CancelForDenial handles the customer explicitly refusing the location
// permission prompt.
func (s *Service) CancelForDenial(ctx context.Context, bookingID, chatID types.ID) error {
	s.CancelTimeout(bookingID)
	err := s.bookings.Cancel(ctx, booking.CancelCommand{
		BookingID: bookingID,
		To:        booking.StatusCancelledLocationDenied,
		Reason:    "customer denied location permission",
		CausedBy:  "customer",
	})
	if err != nil {
		return err
	}
	if chatID != "" {
		if err := s.chats.MarkCancelled(ctx, chatID, "location_denied"); err != nil {
			log.Printf("cancel chat %s after location denial: %v", chatID, err)
		}
	}
	return nil
}

// RejectByProvider handles a provider flagging a shared location as
// suspicious or out of their service area.
func (s *Service) RejectByProvider(ctx context.Context, bookingID, chatID types.ID, reason string) error {
	s.CancelTimeout(bookingID)
	if reason == "" {
		reason = "location rejected by provider"
	}
	err := s.bookings.Cancel(ctx, booking.CancelCommand{
		BookingID: bookingID,
		To:        booking.StatusRejectedLocation,
		Reason:    reason,
		CausedBy:  "provider",
	})
	if err != nil {
		return err
	}
	if chatID != "" {
		if err := s.chats.MarkCancelled(ctx, chatID, "location_rejected"); err != nil {
			log.Printf("cancel chat %s after location rejection: %v", chatID, err)
		}
	}
	return nil
}
