// Package blend hides the seams between independently generated tiles.
//
// A tile's own height field is mirrored into each of its eight neighbors and
// weighted by a radial mask three tiles wide centered on the tile, so the
// mirrored copy dominates along the shared edge and fades out toward the far
// side of the neighbor. Diagonal neighbors are written after the orthogonal
// ones and then have their shared row and column copied from them, which
// makes the four tiles meeting at a corner agree exactly.
package blend
