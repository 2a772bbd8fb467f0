package terrain

import (
	"fmt"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

// Direction names one of the eight lattice neighbors.
type Direction int

const (
	Left Direction = iota
	Right
	Top
	Bottom
	TopLeft
	TopRight
	BottomLeft
	BottomRight
)

// Orthogonal lists the directions a Tile stores links for.
var Orthogonal = []Direction{Left, Right, Top, Bottom}

// Diagonal lists the directions resolved through two orthogonal hops.
var Diagonal = []Direction{TopLeft, TopRight, BottomLeft, BottomRight}

var directionNames = [...]string{"left", "right", "top", "bottom", "top-left", "top-right", "bottom-left", "bottom-right"}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// Opposite returns the direction pointing back from a neighbor.
func (d Direction) Opposite() Direction {
	switch d {
	case Left:
		return Right
	case Right:
		return Left
	case Top:
		return Bottom
	case Bottom:
		return Top
	case TopLeft:
		return BottomRight
	case TopRight:
		return BottomLeft
	case BottomLeft:
		return TopRight
	default:
		return TopLeft
	}
}

// IsOrthogonal reports whether d is one of Left, Right, Top or Bottom.
func (d Direction) IsOrthogonal() bool { return d >= Left && d <= Bottom }

// Offset returns the (column, row) step from a tile to its neighbor.
func (d Direction) Offset() (dc, dr int) {
	switch d {
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	case Top:
		return 0, -1
	case Bottom:
		return 0, 1
	case TopLeft:
		return -1, -1
	case TopRight:
		return 1, -1
	case BottomLeft:
		return -1, 1
	default:
		return 1, 1
	}
}

// Tile is one rectangular height field with links to its neighbors.
// Heights are stored unpadded; Export adds the duplicated last row and
// column.
type Tile struct {
	Col, Row  int
	heights   *grid.Grid
	neighbors [4]*Tile
}

// NewTile wraps a single-channel height field. The tile takes ownership of
// heights.
func NewTile(heights *grid.Grid) *Tile {
	return &Tile{heights: heights}
}

// Width and Height are the unpadded dimensions.
func (t *Tile) Width() int  { return t.heights.Width() }
func (t *Tile) Height() int { return t.heights.Height() }

// Heights returns a copy of the tile's height field.
func (t *Tile) Heights() *grid.Grid { return t.heights.Clone() }

// SetHeights overwrites the whole height field. The tile takes ownership of
// g, whose shape must match the current one.
func (t *Tile) SetHeights(g *grid.Grid) error {
	if g.Shape() != t.heights.Shape() {
		return fmt.Errorf("tile (%d,%d): %w", t.Col, t.Row,
			&grid.ShapeError{Op: "set heights", Want: t.heights.Len(), Got: g.Len()})
	}
	t.heights.Release()
	t.heights = g
	return nil
}

// Neighbor returns the tile in direction d, or nil. Diagonals are resolved
// through the horizontal neighbor: TopLeft is Left's Top.
func (t *Tile) Neighbor(d Direction) *Tile {
	if d.IsOrthogonal() {
		return t.neighbors[d]
	}
	var via *Tile
	switch d {
	case TopLeft, BottomLeft:
		via = t.neighbors[Left]
	default:
		via = t.neighbors[Right]
	}
	if via == nil {
		return nil
	}
	if d == TopLeft || d == TopRight {
		return via.neighbors[Top]
	}
	return via.neighbors[Bottom]
}

// Link connects a and b so that b is a's neighbor in direction d and a is
// b's neighbor in the opposite direction. d must be orthogonal.
func Link(a *Tile, d Direction, b *Tile) error {
	if !d.IsOrthogonal() {
		return fmt.Errorf("link: %s is not an orthogonal direction", d)
	}
	a.neighbors[d] = b
	if b != nil {
		b.neighbors[d.Opposite()] = a
	}
	return nil
}

// Export returns the tile as a row-major (W+1)×(H+1) array scaled by
// multiplier. See TerrainHeights.
func (t *Tile) Export(multiplier float64) []float64 {
	return TerrainHeights(t.heights, multiplier, true)
}
