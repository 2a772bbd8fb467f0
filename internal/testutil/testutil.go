// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertGridsClose fails the test when shapes differ or any sample differs
// by more than tol. The diff is reported with go-cmp.
func AssertGridsClose(t *testing.T, got, want *grid.Grid, tol float64) {
	t.Helper()
	if got.Shape() != want.Shape() {
		t.Fatalf("shape = %s, want %s", got.Shape(), want.Shape())
	}
	if diff := cmp.Diff(want.Flat(), got.Flat(), cmpopts.EquateApprox(0, tol)); diff != "" {
		t.Errorf("grid mismatch (-want +got):\n%s", diff)
	}
}

// SequentialGrid returns a grid of shape s holding 0, 1, 2, ... in buffer
// order, which makes index arithmetic easy to check by eye.
func SequentialGrid(t *testing.T, s grid.Shape) *grid.Grid {
	t.Helper()
	values := make([]float64, s.Len())
	for i := range values {
		values[i] = float64(i)
	}
	g, err := grid.FromValues(s, values)
	AssertNoError(t, err)
	return g
}

// MustRows builds a single-channel grid from rows[y][x].
func MustRows(t *testing.T, rows [][]float64) *grid.Grid {
	t.Helper()
	g, err := grid.FromRows(rows)
	AssertNoError(t, err)
	return g
}
