package review

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kioku-srs/kioku/internal/domain"
	"github.com/kioku-srs/kioku/internal/store"
)

// fakeCardStore is an in-memory CardStore with real compare-and-set
// semantics, so conflict paths can be exercised without a database.
type fakeCardStore struct {
	mu    sync.Mutex
	cards map[string]*domain.Card

	saveCalls int
	// saveErrs are consumed one per Save call before the real logic runs,
	// nil entries meaning "no injected failure".
	saveErrs []error
}

func newFakeCardStore() *fakeCardStore {
	return &fakeCardStore{cards: make(map[string]*domain.Card)}
}

func cardKey(userID uuid.UUID, itemKey string) string {
	return userID.String() + "/" + itemKey
}

func (f *fakeCardStore) Create(ctx context.Context, card *domain.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := cardKey(card.UserID, card.ItemKey)
	if _, ok := f.cards[key]; ok {
		return store.ErrDuplicate
	}
	f.cards[key] = card.Clone()
	return nil
}

func (f *fakeCardStore) Get(ctx context.Context, userID uuid.UUID, itemKey string) (*domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	card, ok := f.cards[cardKey(userID, itemKey)]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	return card.Clone(), nil
}

func (f *fakeCardStore) GetNextDue(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var next *domain.Card
	for _, card := range f.cards {
		if card.UserID != userID || card.Due.After(now) {
			continue
		}
		if next == nil || card.Due.Before(next.Due) {
			next = card
		}
	}
	if next == nil {
		return nil, store.ErrCardNotFound
	}
	return next.Clone(), nil
}

func (f *fakeCardStore) Save(ctx context.Context, card *domain.Card, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.saveCalls++
	if len(f.saveErrs) > 0 {
		err := f.saveErrs[0]
		f.saveErrs = f.saveErrs[1:]
		if err != nil {
			return err
		}
	}

	key := cardKey(card.UserID, card.ItemKey)
	stored, ok := f.cards[key]
	if !ok {
		return store.ErrCardNotFound
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%w: expected version %d, stored %d",
			store.ErrConflict, expectedVersion, stored.Version)
	}

	saved := card.Clone()
	saved.Version = expectedVersion + 1
	f.cards[key] = saved
	card.Version = saved.Version
	return nil
}

func (f *fakeCardStore) Delete(ctx context.Context, userID uuid.UUID, itemKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := cardKey(userID, itemKey)
	if _, ok := f.cards[key]; !ok {
		return store.ErrCardNotFound
	}
	delete(f.cards, key)
	return nil
}

func (f *fakeCardStore) WithTx(tx *sql.Tx) store.CardStore { return f }

// bump simulates a concurrent writer winning the race: it reschedules the
// stored card and increments its version.
func (f *fakeCardStore) bump(userID uuid.UUID, itemKey string, due time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	card := f.cards[cardKey(userID, itemKey)]
	card.Due = due
	card.Version++
}

// fakeReviewLogStore is an in-memory append-only ReviewLogStore.
type fakeReviewLogStore struct {
	mu      sync.Mutex
	entries []domain.ReviewLog

	appendErr error
}

func newFakeReviewLogStore() *fakeReviewLogStore {
	return &fakeReviewLogStore{}
}

func (f *fakeReviewLogStore) Append(ctx context.Context, entry *domain.ReviewLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeReviewLogStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.ReviewLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.ReviewLog
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeReviewLogStore) ListSince(ctx context.Context, since time.Time) ([]domain.ReviewLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.ReviewLog
	for _, e := range f.entries {
		if !e.ReviewedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeReviewLogStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func (f *fakeReviewLogStore) WithTx(tx *sql.Tx) store.ReviewLogStore { return f }
