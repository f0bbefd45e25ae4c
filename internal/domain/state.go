package domain

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// State represents the lifecycle stage of a card.
//
// The lifecycle is a closed state machine: New cards enter Learning on their
// first review, graduate to Review, and drop into Relearning when forgotten.
// Invalid states are unrepresentable in the API surface; anything outside
// this enumeration is rejected at the serialization boundary.
type State int

// Lifecycle states.
const (
	StateNew        State = iota + 1 // Added but never reviewed.
	StateLearning                    // In the initial learning steps.
	StateReview                      // In the long-term review cycle.
	StateRelearning                  // Forgotten, repeating short steps.
)

var (
	stateNames = [...]string{
		StateNew:        "new",
		StateLearning:   "learning",
		StateReview:     "review",
		StateRelearning: "relearning",
	}
	stateByName = map[string]State{
		"new":        StateNew,
		"learning":   StateLearning,
		"review":     StateReview,
		"relearning": StateRelearning,
	}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = State(0)
	_ json.Marshaler           = State(0)
	_ json.Unmarshaler         = (*State)(nil)
	_ encoding.TextMarshaler   = State(0)
	_ encoding.TextUnmarshaler = (*State)(nil)
)

// IsValid reports whether s is one of the four lifecycle states.
func (s State) IsValid() bool {
	return s >= StateNew && s <= StateRelearning
}

// String returns the lowercase name of the state. For invalid values it
// returns "state(n)".
func (s State) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidState, int(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	v, ok := stateByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidState, text)
	}
	*s = v
	return nil
}

// MarshalJSON implements json.Marshaler. State serializes as a JSON string.
func (s State) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON string.
func (s *State) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidState, data)
	}
	return s.UnmarshalText([]byte(str))
}
