package cv

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid fold state transition")

// State is a fold's position in its lifecycle.
type State uint8

const (
	Unassigned State = iota
	Training
	Validating
	Scored
)

func (s State) String() string {
	switch s {
	case Unassigned:
		return "unassigned"
	case Training:
		return "training"
	case Validating:
		return "validating"
	case Scored:
		return "scored"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

var transitions = map[State]State{
	Unassigned: Training,
	Training:   Validating,
	Validating: Scored,
}

// Advance moves s to next, which must be its only successor.
func (s *State) Advance(next State) error {
	if want, ok := transitions[*s]; !ok || want != next {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, *s, next)
	}
	*s = next
	return nil
}
