package grid

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned (wrapped in a *ShapeError) whenever operand
// sizes disagree.
var ErrShapeMismatch = errors.New("shape mismatch")

// ErrOutOfBounds is returned when a window or paste region leaves the grid.
var ErrOutOfBounds = errors.New("region out of bounds")

// ErrReleased is returned when an operand has already been released.
var ErrReleased = errors.New("grid used after release")

// ShapeError describes which operation rejected its operands.
type ShapeError struct {
	Op   string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("grid: %s: shape mismatch (want %d, got %d)", e.Op, e.Want, e.Got)
}

func (e *ShapeError) Unwrap() error { return ErrShapeMismatch }

func mismatch(op string, want, got int) error {
	return &ShapeError{Op: op, Want: want, Got: got}
}

// live rejects released operands.
func live(op string, grids ...*Grid) error {
	for _, g := range grids {
		if g.Released() {
			return fmt.Errorf("grid: %s: %w", op, ErrReleased)
		}
	}
	return nil
}
