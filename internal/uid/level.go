// Package uid resolves card holders from fragmentary card, address and email
// fields. It builds five progressively finer identity keys (Level1..Level5)
// over the pooled train+score population and freezes what it learned so the
// same keys can be rebuilt at scoring time.
package uid

import (
	"errors"
	"fmt"
	"slices"
)

// Level is one rung of the identity ladder. Each level refines the previous
// one, so rows sharing a key at level k+1 always share it at level k.
type Level uint8

const (
	Level1 Level = iota + 1
	Level2
	Level3
	Level4
	Level5
)

// Levels lists every level from coarsest to finest.
func Levels() []Level {
	return []Level{Level1, Level2, Level3, Level4, Level5}
}

func (l Level) String() string {
	if l < Level1 || l > Level5 {
		return fmt.Sprintf("L?%d", uint8(l))
	}
	return fmt.Sprintf("L%d", uint8(l))
}

// Column is the table column holding the level's key.
func (l Level) Column() string { return "uid_" + l.String() }

// ParseLevel parses "L1".."L5".
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels() {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown uid level %q", s)
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

var ErrInvalidLadder = errors.New("invalid uid ladder")

// Ladder holds the raw key fields of Level1..Level4. Level5 is Level4 plus
// the inferred registration day.
type Ladder [4][]string

// DefaultLadder is card1 / card1-5 / +addr1 / +P_emaildomain.
func DefaultLadder() Ladder {
	l2 := []string{"card1", "card2", "card3", "card5"}
	l3 := append(slices.Clone(l2), "addr1")
	l4 := append(slices.Clone(l3), "P_emaildomain")
	return Ladder{{"card1"}, l2, l3, l4}
}

// Fields returns the raw fields of a level. Level5 returns Level4's fields.
func (ld Ladder) Fields(l Level) []string {
	if l >= Level5 {
		return ld[3]
	}
	return ld[l-1]
}

// Validate checks that every level is non-empty, fits in a Key, and starts
// with the previous level's fields.
func (ld Ladder) Validate() error {
	for i, fields := range ld {
		if len(fields) == 0 {
			return fmt.Errorf("%w: level L%d has no fields", ErrInvalidLadder, i+1)
		}
		if len(fields)+1 > MaxKeyFields {
			return fmt.Errorf("%w: level L%d has %d fields, max %d", ErrInvalidLadder, i+1, len(fields), MaxKeyFields-1)
		}
		if i > 0 {
			prev := ld[i-1]
			if len(fields) <= len(prev) || !slices.Equal(fields[:len(prev)], prev) {
				return fmt.Errorf("%w: L%d fields %v do not extend L%d %v", ErrInvalidLadder, i+1, fields, i, prev)
			}
		}
	}
	return nil
}
