package deck

import (
	"fmt"
	"strings"
)

// Side names one of the two decks.
type Side int

// Decks.
const (
	A Side = iota
	B
)

// Sides lists both decks in order.
var Sides = [...]Side{A, B}

// Other returns the opposite deck.
func (s Side) Other() Side {
	if s == A {
		return B
	}
	return A
}

func (s Side) String() string {
	switch s {
	case A:
		return "A"
	case B:
		return "B"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// Valid reports whether s is A or B.
func (s Side) Valid() bool { return s == A || s == B }

// ParseSide accepts "a", "b", "A" or "B".
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return A, nil
	case "B":
		return B, nil
	}
	return A, fmt.Errorf("deck: unknown side %q", s)
}
