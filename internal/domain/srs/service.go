package srs

import (
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/kioku-srs/kioku/internal/domain"
)

// Common service errors.
var (
	// ErrNilCard is returned when a nil card is passed to a scheduling call.
	ErrNilCard = errors.New("srs: card cannot be nil")

	// ErrNilParameters is returned when nil parameters are published.
	ErrNilParameters = errors.New("srs: parameters cannot be nil")

	// ErrLogMismatch is returned when a replayed review log does not belong
	// to the card being rescheduled.
	ErrLogMismatch = errors.New("srs: review log does not match card")
)

// Service exposes the scheduling engine. Implementations are safe for
// unsynchronized concurrent use: every call takes an immutable parameter
// snapshot, and SetParameters publishes a new vector atomically.
type Service interface {
	// ApplyReview grades the card with the rating at the given time,
	// returning the rescheduled card and the append-only review log entry.
	// The input card is never mutated.
	ApplyReview(card *domain.Card, rating domain.Rating, now time.Time) (*domain.Card, *domain.ReviewLog, error)

	// Preview returns the card that each of the four ratings would produce,
	// without fuzz, so callers can display the candidate intervals.
	Preview(card *domain.Card, now time.Time) (map[domain.Rating]*domain.Card, error)

	// Retrievability predicts the probability of recall for the card at the
	// given time. Returns 0 for a card that has never been reviewed.
	Retrievability(card *domain.Card, now time.Time) float64

	// Reschedule replays review logs onto the card to rebuild its scheduling
	// state, for example after a parameter refit. Logs must belong to the
	// card and be ordered by review time.
	Reschedule(card *domain.Card, logs []domain.ReviewLog) (*domain.Card, error)

	// Parameters returns the current parameter snapshot.
	Parameters() *Parameters

	// SetParameters atomically replaces the parameter vector. In-flight
	// scheduling calls keep their snapshot; later calls see the new one.
	SetParameters(p *Parameters) error
}

// Verify interface compliance at compile time.
var _ Service = (*schedulerService)(nil)

type schedulerService struct {
	snap atomic.Pointer[snapshot]
}

// NewService creates a scheduling service. Nil parameters select the shipped
// defaults; invalid parameters return an error.
func NewService(p *Parameters) (Service, error) {
	if p == nil {
		p = DefaultParameters()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	s := &schedulerService{}
	s.snap.Store(newSnapshot(p.Clone()))
	return s, nil
}

func (s *schedulerService) ApplyReview(
	card *domain.Card,
	rating domain.Rating,
	now time.Time,
) (*domain.Card, *domain.ReviewLog, error) {
	if card == nil {
		return nil, nil, ErrNilCard
	}
	sn := s.snap.Load()
	return sn.applyReview(card, rating, now, true, rand.Float64)
}

func (s *schedulerService) Preview(
	card *domain.Card,
	now time.Time,
) (map[domain.Rating]*domain.Card, error) {
	if card == nil {
		return nil, ErrNilCard
	}
	sn := s.snap.Load()

	out := make(map[domain.Rating]*domain.Card, len(domain.Ratings))
	for _, r := range domain.Ratings {
		c, _, err := sn.applyReview(card, r, now, false, nil)
		if err != nil {
			return nil, err
		}
		out[r] = c
	}
	return out, nil
}

func (s *schedulerService) Retrievability(card *domain.Card, now time.Time) float64 {
	if card == nil || card.LastReview == nil || card.Stability == nil {
		return 0
	}
	sn := s.snap.Load()
	elapsed := now.Sub(*card.LastReview).Hours() / 24.0
	if elapsed < 0 {
		elapsed = 0
	}
	return sn.model.retrievability(elapsed, *card.Stability)
}

func (s *schedulerService) Reschedule(card *domain.Card, logs []domain.ReviewLog) (*domain.Card, error) {
	if card == nil {
		return nil, ErrNilCard
	}
	sn := s.snap.Load()

	c := card.Clone()
	for i := range logs {
		log := &logs[i]
		if log.UserID != c.UserID || log.ItemKey != c.ItemKey {
			return nil, fmt.Errorf("%w: log %s (user %s, item %q)",
				ErrLogMismatch, log.ID, log.UserID, log.ItemKey)
		}
		next, _, err := sn.applyReview(c, log.Rating, log.ReviewedAt, false, nil)
		if err != nil {
			return nil, err
		}
		c = next
	}
	return c, nil
}

func (s *schedulerService) Parameters() *Parameters {
	return s.snap.Load().params.Clone()
}

func (s *schedulerService) SetParameters(p *Parameters) error {
	if p == nil {
		return ErrNilParameters
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.snap.Store(newSnapshot(p.Clone()))
	return nil
}
