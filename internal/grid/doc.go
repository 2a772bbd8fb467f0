// Package grid owns the dense numeric buffer every terrain stage works on.
//
// A Grid is one contiguous, row-major buffer with a (batch, height, width,
// channels) shape. Operations never alias: each returns a freshly allocated
// Grid and leaves its operands untouched. Binary operations fail with
// ErrShapeMismatch instead of truncating or broadcasting.
//
// Key types: Grid, Shape, RandomField.
package grid
