package optimizer

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kioku-srs/kioku/internal/domain"
)

// cardKey identifies one (user, item) review history.
type cardKey struct {
	userID  uuid.UUID
	itemKey string
}

// observation is one review event prepared for training.
type observation struct {
	rating      domain.Rating
	elapsedDays float64   // Days since the previous review; 0 for the first.
	label       float64   // 0 for again, 1 otherwise.
	reviewedAt  time.Time // Original timestamp, used for replay.
}

// dataset groups observations per card, ordered by review time.
type dataset map[cardKey][]observation

// buildDataset groups review logs by card and sorts each history by time,
// deriving the elapsed days and binary outcome label for every review.
func buildDataset(logs []domain.ReviewLog) dataset {
	if len(logs) == 0 {
		return nil
	}

	groups := make(map[cardKey][]domain.ReviewLog)
	for _, log := range logs {
		k := cardKey{userID: log.UserID, itemKey: log.ItemKey}
		groups[k] = append(groups[k], log)
	}

	data := make(dataset, len(groups))
	for k, history := range groups {
		sort.Slice(history, func(i, j int) bool {
			return history[i].ReviewedAt.Before(history[j].ReviewedAt)
		})

		obs := make([]observation, len(history))
		for i, log := range history {
			var elapsed float64
			if i > 0 {
				elapsed = log.ReviewedAt.Sub(history[i-1].ReviewedAt).Hours() / 24.0
			}

			label := 1.0
			if log.Rating == domain.RatingAgain {
				label = 0.0
			}

			obs[i] = observation{
				rating:      log.Rating,
				elapsedDays: elapsed,
				label:       label,
				reviewedAt:  log.ReviewedAt,
			}
		}
		data[k] = obs
	}

	return data
}

// truncate caps each card's history at maxSeqLen observations.
func (d dataset) truncate(maxSeqLen int) {
	for k, obs := range d {
		if len(obs) > maxSeqLen {
			d[k] = obs[:maxSeqLen]
		}
	}
}

// crossDayCount counts observations with at least one full day since the
// previous review. Same-day reviews carry no forgetting-curve signal and are
// excluded from the loss.
func (d dataset) crossDayCount() int {
	count := 0
	for _, obs := range d {
		for _, o := range obs {
			if o.elapsedDays >= 1.0 {
				count++
			}
		}
	}
	return count
}

// sortedKeys returns the card keys in a stable order so the seeded shuffle
// is deterministic across runs.
func (d dataset) sortedKeys() []cardKey {
	keys := make([]cardKey, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].userID != keys[j].userID {
			return keys[i].userID.String() < keys[j].userID.String()
		}
		return keys[i].itemKey < keys[j].itemKey
	})
	return keys
}
