// Package terrain models generated height fields as tiles on a lattice and
// converts them to the padded layout terrain consumers expect.
//
// Row 0 of every height field is the top (north) edge and column 0 the left
// (west) edge. A Tile links to its four orthogonal neighbors; diagonal
// neighbors are resolved through the left and right neighbors.
package terrain
