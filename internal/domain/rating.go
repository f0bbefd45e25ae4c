package domain

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// Rating represents the graded outcome of a single review.
type Rating int

// Possible rating values, ordered from complete failure to effortless recall.
// The numeric values feed directly into the scheduling formulas and must not
// be reordered.
const (
	RatingAgain Rating = iota + 1 // Complete failure to recall.
	RatingHard                    // Recalled with significant difficulty.
	RatingGood                    // Recalled with some effort.
	RatingEasy                    // Recalled effortlessly.
)

// Ratings lists all valid ratings in ascending order. Useful for iterating
// the full rating grid in previews and tests.
var Ratings = [4]Rating{RatingAgain, RatingHard, RatingGood, RatingEasy}

var (
	ratingNames = [...]string{
		RatingAgain: "again",
		RatingHard:  "hard",
		RatingGood:  "good",
		RatingEasy:  "easy",
	}
	ratingByName = map[string]Rating{
		"again": RatingAgain,
		"hard":  RatingHard,
		"good":  RatingGood,
		"easy":  RatingEasy,
	}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = Rating(0)
	_ json.Marshaler           = Rating(0)
	_ json.Unmarshaler         = (*Rating)(nil)
	_ encoding.TextMarshaler   = Rating(0)
	_ encoding.TextUnmarshaler = (*Rating)(nil)
)

// IsValid reports whether r is one of the four defined ratings.
func (r Rating) IsValid() bool {
	return r >= RatingAgain && r <= RatingEasy
}

// String returns the lowercase name of the rating ("again", "hard", "good",
// "easy"). For invalid values it returns "rating(n)".
func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("rating(%d)", int(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, ok := ratingByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRating, text)
	}
	*r = v
	return nil
}

// MarshalJSON implements json.Marshaler. Rating serializes as a JSON string.
func (r Rating) MarshalJSON() ([]byte, error) {
	text, err := r.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON string.
func (r *Rating) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRating, data)
	}
	return r.UnmarshalText([]byte(s))
}
