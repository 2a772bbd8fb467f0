package blend

import (
	"fmt"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
	"github.com/banshee-data/terrain.diffusion/internal/terrain"
)

// Blender writes a tile's mirrored heights into its neighbors.
type Blender struct {
	Params MaskParams
	// KeepNeighborHeights mixes the neighbor's own heights back in with
	// weight 1-mask instead of replacing them.
	KeepNeighborHeights bool
}

// mirrorAxes returns the (alongWidth, alongHeight) mirror for a neighbor.
func mirrorAxes(d terrain.Direction) (bool, bool) {
	switch d {
	case terrain.Left, terrain.Right:
		return true, false
	case terrain.Top, terrain.Bottom:
		return false, true
	default:
		return true, true
	}
}

// BlendNeighbors blends center into every neighbor it has and returns the
// directions that were written, orthogonal ones first.
func (b *Blender) BlendNeighbors(center *terrain.Tile) ([]terrain.Direction, error) {
	if err := b.Params.Validate(); err != nil {
		return nil, err
	}
	w, h := center.Width(), center.Height()
	heights := center.Heights()
	defer heights.Release()
	mask := RadialMask(w, h, b.Params)
	defer mask.Release()

	var done []terrain.Direction
	for _, d := range terrain.Orthogonal {
		n := center.Neighbor(d)
		if n == nil {
			continue
		}
		if err := b.blendOne(n, d, heights, mask); err != nil {
			return done, err
		}
		done = append(done, d)
	}

	// diagonals only after both adjacent orthogonal neighbors are final
	for _, d := range terrain.Diagonal {
		n := center.Neighbor(d)
		if n == nil {
			continue
		}
		if err := b.blendOne(n, d, heights, mask); err != nil {
			return done, err
		}
		if err := clampCorner(center, n, d); err != nil {
			return done, err
		}
		done = append(done, d)
	}
	return done, nil
}

func (b *Blender) blendOne(n *terrain.Tile, d terrain.Direction, heights, mask *grid.Grid) error {
	w, h := heights.Width(), heights.Height()
	if n.Width() != w || n.Height() != h {
		return fmt.Errorf("blend %s neighbor: %w", d,
			&grid.ShapeError{Op: "blend", Want: w * h, Got: n.Width() * n.Height()})
	}

	dc, dr := d.Offset()
	window, err := grid.Window(mask, (1+dc)*w, (1+dr)*h, w, h)
	if err != nil {
		return fmt.Errorf("blend %s neighbor: %w", d, err)
	}
	defer window.Release()

	alongWidth, alongHeight := mirrorAxes(d)
	mirror, err := grid.Mirror(heights, alongWidth, alongHeight)
	if err != nil {
		return fmt.Errorf("blend %s neighbor: %w", d, err)
	}
	defer mirror.Release()

	out, err := grid.Mul(window, mirror)
	if err != nil {
		return fmt.Errorf("blend %s neighbor: %w", d, err)
	}
	if b.KeepNeighborHeights {
		kept, err := keep(out, window, n.Heights())
		out.Release()
		if err != nil {
			return fmt.Errorf("blend %s neighbor: %w", d, err)
		}
		out = kept
	}
	return n.SetHeights(out)
}

// keep returns scaled + (1-mask)·existing and releases existing.
func keep(scaled, mask, existing *grid.Grid) (*grid.Grid, error) {
	defer existing.Release()
	negated := grid.Scale(mask, -1)
	inverse := grid.Offset(negated, 1)
	negated.Release()
	defer inverse.Release()
	weighted, err := grid.Mul(inverse, existing)
	if err != nil {
		return nil, err
	}
	defer weighted.Release()
	return grid.Add(scaled, weighted)
}

// clampCorner copies the row and column a diagonal neighbor shares with the
// two orthogonal neighbors around the same corner.
func clampCorner(center, diag *terrain.Tile, d terrain.Direction) error {
	w, h := diag.Width(), diag.Height()
	var (
		vertical, horizontal terrain.Direction
		ownCol, srcCol       int
		ownRow, srcRow       int
	)
	switch d {
	case terrain.TopLeft:
		vertical, horizontal = terrain.Top, terrain.Left
		ownCol, srcCol, ownRow, srcRow = w-1, 0, h-1, 0
	case terrain.TopRight:
		vertical, horizontal = terrain.Top, terrain.Right
		ownCol, srcCol, ownRow, srcRow = 0, w-1, h-1, 0
	case terrain.BottomLeft:
		vertical, horizontal = terrain.Bottom, terrain.Left
		ownCol, srcCol, ownRow, srcRow = w-1, 0, 0, h-1
	case terrain.BottomRight:
		vertical, horizontal = terrain.Bottom, terrain.Right
		ownCol, srcCol, ownRow, srcRow = 0, w-1, 0, h-1
	default:
		return fmt.Errorf("clamp: %s is not a diagonal", d)
	}

	heights := diag.Heights()
	// the tile beside the diagonal shares a column, the one above or below a row
	if n := center.Neighbor(vertical); n != nil {
		next, err := copyStrip(heights, n, srcCol, 0, ownCol, 0, 1, h)
		if err != nil {
			return fmt.Errorf("clamp %s to %s: %w", d, vertical, err)
		}
		heights = next
	}
	if n := center.Neighbor(horizontal); n != nil {
		next, err := copyStrip(heights, n, 0, srcRow, 0, ownRow, w, 1)
		if err != nil {
			return fmt.Errorf("clamp %s to %s: %w", d, horizontal, err)
		}
		heights = next
	}
	return diag.SetHeights(heights)
}

// copyStrip pastes the w×h strip of src at (sx, sy) into dst at (dx, dy),
// releasing dst.
func copyStrip(dst *grid.Grid, src *terrain.Tile, sx, sy, dx, dy, w, h int) (*grid.Grid, error) {
	srcHeights := src.Heights()
	defer srcHeights.Release()
	strip, err := grid.Window(srcHeights, sx, sy, w, h)
	if err != nil {
		return nil, err
	}
	defer strip.Release()
	out, err := grid.Paste(dst, strip, dx, dy)
	if err != nil {
		return nil, err
	}
	dst.Release()
	return out, nil
}
