package deck

import (
	"errors"
	"fmt"
)

// ErrLoadSuperseded is returned by a load that a newer load or an unload on
// the same deck overtook.
var ErrLoadSuperseded = errors.New("deck: load superseded")

// ErrNoDecoder is wrapped by a LoadError when the deck has no decoder.
var ErrNoDecoder = errors.New("deck: no decoder configured")

// LoadError reports a failed load. Op is "decode" or "analyze".
type LoadError struct {
	Source string
	Op     string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("deck: load %q: %s: %v", e.Source, e.Op, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
