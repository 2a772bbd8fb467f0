package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// slerpLinearThreshold is the cosine above which Slerp falls back to a
// linear blend; sin(omega) is too close to zero past this point.
const slerpLinearThreshold = 0.9999

func sameLen(op string, a, b *Grid) error {
	if err := live(op, a, b); err != nil {
		return err
	}
	if len(a.data) != len(b.data) {
		return mismatch(op, len(a.data), len(b.data))
	}
	return nil
}

// Add returns a + b.
func Add(a, b *Grid) (*Grid, error) {
	if err := sameLen("add", a, b); err != nil {
		return nil, err
	}
	out := New(a.shape)
	floats.AddTo(out.data, a.data, b.data)
	return out, nil
}

// Sub returns a - b.
func Sub(a, b *Grid) (*Grid, error) {
	if err := sameLen("sub", a, b); err != nil {
		return nil, err
	}
	out := New(a.shape)
	floats.SubTo(out.data, a.data, b.data)
	return out, nil
}

// Mul returns the elementwise product of a and b.
func Mul(a, b *Grid) (*Grid, error) {
	if err := sameLen("mul", a, b); err != nil {
		return nil, err
	}
	out := New(a.shape)
	floats.MulTo(out.data, a.data, b.data)
	return out, nil
}

// Scale returns g multiplied by c.
func Scale(g *Grid, c float64) *Grid {
	if g.Released() {
		return released(g.shape)
	}
	out := New(g.shape)
	floats.ScaleTo(out.data, c, g.data)
	return out
}

// ScaleBatches multiplies every sample of batch b by scalars[b], or by its
// reciprocal when inverse is set. scalars must hold exactly one value per
// batch element; its shape is otherwise ignored.
func ScaleBatches(g *Grid, scalars *Grid, inverse bool) (*Grid, error) {
	if err := live("scale batches", g, scalars); err != nil {
		return nil, err
	}
	if len(scalars.data) != g.shape.Batch {
		return nil, mismatch("scale batches", g.shape.Batch, len(scalars.data))
	}
	out := New(g.shape)
	per := g.shape.Height * g.shape.Width * g.shape.Channels
	for b, s := range scalars.data {
		if inverse {
			s = 1 / s
		}
		lo, hi := b*per, (b+1)*per
		floats.ScaleTo(out.data[lo:hi], s, g.data[lo:hi])
	}
	return out, nil
}

// Pow raises every sample to the integer power n.
func Pow(g *Grid, n int) *Grid {
	if g.Released() {
		return released(g.shape)
	}
	out := New(g.shape)
	p := float64(n)
	for i, v := range g.data {
		out.data[i] = math.Pow(v, p)
	}
	return out
}

// Normalize divides every sample by the L2 norm of the whole buffer. A zero
// buffer is returned unchanged.
func Normalize(g *Grid) *Grid {
	norm := floats.Norm(g.data, 2)
	if norm == 0 {
		return g.Clone()
	}
	return Scale(g, 1/norm)
}

// Dot treats a and b as flat vectors.
func Dot(a, b *Grid) (float64, error) {
	if err := sameLen("dot", a, b); err != nil {
		return 0, err
	}
	return floats.Dot(a.data, b.data), nil
}

// Lerp returns a + t*(b-a) elementwise.
func Lerp(a, b *Grid, t float64) (*Grid, error) {
	if err := sameLen("lerp", a, b); err != nil {
		return nil, err
	}
	return lerp(a, b.data, t), nil
}

func lerp(a *Grid, b []float64, t float64) *Grid {
	diff := make([]float64, len(b))
	floats.SubTo(diff, b, a.data)
	out := New(a.shape)
	floats.AddScaledTo(out.data, a.data, t, diff)
	return out
}

// Slerp spherically interpolates between a and b, treated as flat vectors,
// at t in [0, 1]. The cosine is the dot product of the raw inputs, so it is
// only a true cosine for unit vectors; anything above slerpLinearThreshold
// (including most large unnormalized fields) takes the linear path. When the
// cosine is negative b is negated to interpolate across the acute angle.
func Slerp(a, b *Grid, t float64) (*Grid, error) {
	if err := sameLen("slerp", a, b); err != nil {
		return nil, err
	}

	cos := floats.Dot(a.data, b.data)
	bv := b.data
	if cos < 0 {
		bv = make([]float64, len(b.data))
		floats.ScaleTo(bv, -1, b.data)
		cos = -cos
	}

	if cos > slerpLinearThreshold {
		return lerp(a, bv, t), nil
	}

	omega := math.Acos(cos)
	sin := math.Sin(omega)
	wa := math.Sin((1-t)*omega) / sin
	wb := math.Sin(t*omega) / sin

	out := New(a.shape)
	floats.ScaleTo(out.data, wa, a.data)
	floats.AddScaled(out.data, wb, bv)
	return out, nil
}

// Mirror reflects sample order along the width axis, the height axis, or
// both. Mirroring twice with the same flags restores the original.
func Mirror(g *Grid, alongWidth, alongHeight bool) (*Grid, error) {
	if err := live("mirror", g); err != nil {
		return nil, err
	}
	s := g.shape
	out := New(s)
	for b := 0; b < s.Batch; b++ {
		for y := 0; y < s.Height; y++ {
			sy := y
			if alongHeight {
				sy = s.Height - 1 - y
			}
			for x := 0; x < s.Width; x++ {
				sx := x
				if alongWidth {
					sx = s.Width - 1 - x
				}
				for c := 0; c < s.Channels; c++ {
					out.data[out.index(b, y, x, c)] = g.data[g.index(b, sy, sx, c)]
				}
			}
		}
	}
	return out, nil
}

// Concat joins a and b side by side along the width axis. Batch, height and
// channels must agree.
func Concat(a, b *Grid) (*Grid, error) {
	if err := live("concat", a, b); err != nil {
		return nil, err
	}
	sa, sb := a.shape, b.shape
	if sa.Batch != sb.Batch {
		return nil, mismatch("concat batch", sa.Batch, sb.Batch)
	}
	if sa.Height != sb.Height {
		return nil, mismatch("concat height", sa.Height, sb.Height)
	}
	if sa.Channels != sb.Channels {
		return nil, mismatch("concat channels", sa.Channels, sb.Channels)
	}

	out := New(Shape{Batch: sa.Batch, Height: sa.Height, Width: sa.Width + sb.Width, Channels: sa.Channels})
	rowA := sa.Width * sa.Channels
	rowB := sb.Width * sb.Channels
	for n := 0; n < sa.Batch; n++ {
		for y := 0; y < sa.Height; y++ {
			dst := out.rowStart(n, y)
			copy(out.data[dst:dst+rowA], a.data[a.rowStart(n, y):])
			copy(out.data[dst+rowA:dst+rowA+rowB], b.data[b.rowStart(n, y):])
		}
	}
	return out, nil
}

// Split cuts g into left and right halves along the width axis. The width
// must be even.
func Split(g *Grid) (left, right *Grid, err error) {
	if g.shape.Width%2 != 0 {
		return nil, nil, fmt.Errorf("grid: split: width %d is odd: %w", g.shape.Width, ErrShapeMismatch)
	}
	half := g.shape.Width / 2
	if left, err = Window(g, 0, 0, half, g.shape.Height); err != nil {
		return nil, nil, err
	}
	if right, err = Window(g, half, 0, half, g.shape.Height); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// Window copies the w×h region whose top-left sample is (x0, y0), across all
// batches and channels.
func Window(g *Grid, x0, y0, w, h int) (*Grid, error) {
	if err := live("window", g); err != nil {
		return nil, err
	}
	s := g.shape
	if x0 < 0 || y0 < 0 || w < 0 || h < 0 || x0+w > s.Width || y0+h > s.Height {
		return nil, ErrOutOfBounds
	}
	out := New(Shape{Batch: s.Batch, Height: h, Width: w, Channels: s.Channels})
	row := w * s.Channels
	for b := 0; b < s.Batch; b++ {
		for y := 0; y < h; y++ {
			src := g.rowStart(b, y0+y) + x0*s.Channels
			copy(out.data[out.rowStart(b, y):], g.data[src:src+row])
		}
	}
	return out, nil
}

// Paste returns a copy of dst with src written over the region whose
// top-left sample is (x0, y0). Batch and channel counts must agree.
func Paste(dst, src *Grid, x0, y0 int) (*Grid, error) {
	if err := live("paste", dst, src); err != nil {
		return nil, err
	}
	sd, ss := dst.shape, src.shape
	if sd.Batch != ss.Batch {
		return nil, mismatch("paste batch", sd.Batch, ss.Batch)
	}
	if sd.Channels != ss.Channels {
		return nil, mismatch("paste channels", sd.Channels, ss.Channels)
	}
	if x0 < 0 || y0 < 0 || x0+ss.Width > sd.Width || y0+ss.Height > sd.Height {
		return nil, ErrOutOfBounds
	}
	out := dst.Clone()
	row := ss.Width * ss.Channels
	for b := 0; b < ss.Batch; b++ {
		for y := 0; y < ss.Height; y++ {
			start := src.rowStart(b, y)
			copy(out.data[out.rowStart(b, y0+y)+x0*sd.Channels:], src.data[start:start+row])
		}
	}
	return out, nil
}

// Gradient builds a width×height plane whose value is a left→right ramp plus
// a bottom→top ramp. Row 0 is the top row.
func Gradient(left, right, top, bottom float64, width, height int) *Grid {
	out := New(Plane(width, height))
	var lr, tb float64
	if width > 1 {
		lr = (right - left) / float64(width-1)
	}
	if height > 1 {
		tb = (top - bottom) / float64(height-1)
	}
	for y := 0; y < height; y++ {
		// distance from the bottom row
		up := float64(height - 1 - y)
		for x := 0; x < width; x++ {
			out.data[y*width+x] = left + lr*float64(x) + bottom + tb*up
		}
	}
	return out
}
