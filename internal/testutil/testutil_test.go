package testutil

import (
	"errors"
	"testing"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	// Verify nil error doesn't cause issues
	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	t.Parallel()

	// Verify non-nil error is handled correctly
	AssertError(t, errors.New("test error"))
}

func TestSequentialGrid(t *testing.T) {
	t.Parallel()

	g := SequentialGrid(t, grid.Shape{Batch: 2, Height: 2, Width: 3, Channels: 1})
	if g.Len() != 12 {
		t.Fatalf("Len() = %d, want 12", g.Len())
	}
	if got := g.At(1, 1, 2, 0); got != 11 {
		t.Errorf("last sample = %v, want 11", got)
	}
}

func TestAssertGridsClose_WithinTolerance(t *testing.T) {
	t.Parallel()

	a := MustRows(t, [][]float64{{1, 2}, {3, 4}})
	b := MustRows(t, [][]float64{{1, 2}, {3, 4.0000001}})
	AssertGridsClose(t, a, b, 1e-6)
}
