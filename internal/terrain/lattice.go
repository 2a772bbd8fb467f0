package terrain

import (
	"fmt"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

// Lattice is a cols×rows arrangement of equally sized tiles with every
// orthogonal neighbor linked.
type Lattice struct {
	Cols, Rows    int
	Width, Height int
	tiles         []*Tile
}

// NewLattice allocates zero-height tiles of width×height samples.
func NewLattice(cols, rows, width, height int) (*Lattice, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("lattice must have at least one tile, got %dx%d", cols, rows)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("lattice tiles must be non-empty, got %dx%d", width, height)
	}

	l := &Lattice{Cols: cols, Rows: rows, Width: width, Height: height, tiles: make([]*Tile, cols*rows)}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			t := NewTile(grid.New(grid.Plane(width, height)))
			t.Col, t.Row = col, row
			l.tiles[row*cols+col] = t
			if col > 0 {
				_ = Link(t, Left, l.tiles[row*cols+col-1])
			}
			if row > 0 {
				_ = Link(t, Top, l.tiles[(row-1)*cols+col])
			}
		}
	}
	return l, nil
}

// Tile returns the tile at (col, row), or nil outside the lattice.
func (l *Lattice) Tile(col, row int) *Tile {
	if col < 0 || col >= l.Cols || row < 0 || row >= l.Rows {
		return nil
	}
	return l.tiles[row*l.Cols+col]
}

// Tiles returns every tile in row-major order.
func (l *Lattice) Tiles() []*Tile {
	return append([]*Tile(nil), l.tiles...)
}

// Mosaic pastes every tile into one (Cols·Width)×(Rows·Height) field.
func (l *Lattice) Mosaic() (*grid.Grid, error) {
	out := grid.New(grid.Plane(l.Cols*l.Width, l.Rows*l.Height))
	for _, t := range l.tiles {
		next, err := grid.Paste(out, t.heights, t.Col*l.Width, t.Row*l.Height)
		if err != nil {
			return nil, fmt.Errorf("mosaic tile (%d,%d): %w", t.Col, t.Row, err)
		}
		out.Release()
		out = next
	}
	return out, nil
}
