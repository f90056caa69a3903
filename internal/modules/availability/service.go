// README: Availability scoring engine; response events, dispatch SLA misses, and ranking publication.
package availability

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"serene/internal/types"
)

var ErrScoreNotFound = errors.New("availability score not found")

// Store persists availability scores.
type Store interface {
	Get(ctx context.Context, therapistID types.ID) (*Score, error)
	Save(ctx context.Context, sc *Score) error
}

// Ranker publishes the weighted ranking signal consumed by search.
// Publication is best-effort; a ranking failure never fails the score
// update.
type Ranker interface {
	Publish(ctx context.Context, therapistID types.ID, weight float64) error
	Remove(ctx context.Context, therapistID types.ID) error
}

// Dispatch is one booking notification sent to a provider, awaiting a
// response within the SLA window.
type Dispatch struct {
	ID          types.ID
	BookingID   types.ID
	TherapistID types.ID
	NotifiedAt  time.Time
	Answered    bool
}

// DispatchStore tracks open dispatches for the miss sweeper.
type DispatchStore interface {
	Create(ctx context.Context, d *Dispatch) error
	MarkAnswered(ctx context.Context, bookingID, therapistID types.ID) error
	ListUnanswered(ctx context.Context, olderThan time.Time) ([]Dispatch, error)
}

type Service struct {
	store      Store
	ranker     Ranker
	dispatches DispatchStore
	sla        time.Duration
	now        func() time.Time
}

func NewService(store Store, ranker Ranker, dispatches DispatchStore, sla time.Duration) *Service {
	if sla <= 0 {
		sla = 5 * time.Minute
	}
	return &Service{store: store, ranker: ranker, dispatches: dispatches, sla: sla, now: time.Now}
}

// RecordResponse folds one accept/decline/missed event into the
// provider's score, persists it, and republishes the ranking weight.
func (s *Service) RecordResponse(ctx context.Context, bookingID, therapistID types.ID, action Action, responseTime time.Duration) (*Score, error) {
	sc, err := s.store.Get(ctx, therapistID)
	if errors.Is(err, ErrScoreNotFound) {
		sc = NewScore(therapistID)
	} else if err != nil {
		return nil, fmt.Errorf("load availability score: %w", err)
	}

	Apply(sc, action, responseTime, s.now())

	if err := s.store.Save(ctx, sc); err != nil {
		return nil, fmt.Errorf("save availability score: %w", err)
	}

	if s.ranker != nil {
		if sc.Score == 0 {
			// A fully penalised provider is delisted rather than ranked last.
			if err := s.ranker.Remove(ctx, therapistID); err != nil {
				log.Printf("remove ranking for %s: %v", therapistID, err)
			}
		} else {
			weight := float64(sc.Score) * sc.Multiplier
			if err := s.ranker.Publish(ctx, therapistID, weight); err != nil {
				log.Printf("publish ranking for %s: %v", therapistID, err)
			}
		}
	}
	if s.dispatches != nil {
		if err := s.dispatches.MarkAnswered(ctx, bookingID, therapistID); err != nil {
			log.Printf("mark dispatch answered for booking %s: %v", bookingID, err)
		}
	}
	return sc, nil
}

// HandleExpiration is the scoring-side counterpart of the dispatch SLA
// timer: it converts an unanswered notification into a missed response.
func (s *Service) HandleExpiration(ctx context.Context, bookingID, therapistID types.ID, notifiedAt time.Time) (*Score, error) {
	elapsed := s.now().Sub(notifiedAt)
	return s.RecordResponse(ctx, bookingID, therapistID, ActionMissed, elapsed)
}

// RecordDispatch registers a notification sent to a provider so the
// sweeper can later convert silence into a miss.
func (s *Service) RecordDispatch(ctx context.Context, bookingID, therapistID types.ID) error {
	if s.dispatches == nil {
		return nil
	}
	d := &Dispatch{
		ID:          types.ID(uuid.NewString()),
		BookingID:   bookingID,
		TherapistID: therapistID,
		NotifiedAt:  s.now(),
	}
	if err := s.dispatches.Create(ctx, d); err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	return nil
}

// ExpireUnanswered sweeps dispatches that aged past the response SLA and
// records a miss for each. Intended to be called periodically by the
// sweeper worker.
func (s *Service) ExpireUnanswered(ctx context.Context) error {
	if s.dispatches == nil {
		return nil
	}
	cutoff := s.now().Add(-s.sla)
	stale, err := s.dispatches.ListUnanswered(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list unanswered dispatches: %w", err)
	}
	for _, d := range stale {
		if _, err := s.HandleExpiration(ctx, d.BookingID, d.TherapistID, d.NotifiedAt); err != nil {
			log.Printf("expire dispatch for booking %s: %v", d.BookingID, err)
		}
	}
	return nil
}

// GetScore returns the provider's current score, seeding a view (without
// persisting) when none exists yet.
func (s *Service) GetScore(ctx context.Context, therapistID types.ID) (*Score, error) {
	sc, err := s.store.Get(ctx, therapistID)
	if errors.Is(err, ErrScoreNotFound) {
		return NewScore(therapistID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load availability score: %w", err)
	}
	return sc, nil
}
