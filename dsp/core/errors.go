package core

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is matched by every *RangeError.
var ErrOutOfRange = errors.New("value out of range")

// RangeError reports a control value outside its documented range.
// Live setters clamp silently; RangeError only surfaces from validation
// helpers and at the command boundary.
type RangeError struct {
	Name     string
	Value    float64
	Min, Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s=%g outside [%g, %g]", e.Name, e.Value, e.Min, e.Max)
}

// Is reports whether target is ErrOutOfRange.
func (e *RangeError) Is(target error) bool { return target == ErrOutOfRange }

// CheckRange returns a *RangeError if v is outside [min, max] or NaN.
func CheckRange(name string, v, min, max float64) error {
	if v != v || v < min || v > max {
		return &RangeError{Name: name, Value: v, Min: min, Max: max}
	}
	return nil
}
