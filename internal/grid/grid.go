package grid

import (
	"fmt"
)

// Shape is the (batch, height, width, channels) extent of a Grid.
type Shape struct {
	Batch    int
	Height   int
	Width    int
	Channels int
}

// Plane returns the shape of a single-batch, single-channel height field.
func Plane(width, height int) Shape {
	return Shape{Batch: 1, Height: height, Width: width, Channels: 1}
}

// Len is the number of samples a buffer of this shape holds.
func (s Shape) Len() int {
	return s.Batch * s.Height * s.Width * s.Channels
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", s.Batch, s.Height, s.Width, s.Channels)
}

// Grid is a dense sample buffer. len(data) == shape.Len() for every Grid
// that has not been released.
type Grid struct {
	shape Shape
	data  []float64
}

// New allocates a zero-filled grid. It panics on negative dimensions, the
// same way make does for a negative length.
func New(s Shape) *Grid {
	if s.Batch < 0 || s.Height < 0 || s.Width < 0 || s.Channels < 0 {
		panic(fmt.Sprintf("grid: negative dimension in shape %s", s))
	}
	return &Grid{shape: s, data: make([]float64, s.Len())}
}

// FromValues copies values into a new grid of shape s.
func FromValues(s Shape, values []float64) (*Grid, error) {
	if len(values) != s.Len() {
		return nil, mismatch("from values", s.Len(), len(values))
	}
	g := New(s)
	copy(g.data, values)
	return g, nil
}

// FromRows builds a single-channel grid from rows[y][x]. Every row must have
// the same length.
func FromRows(rows [][]float64) (*Grid, error) {
	height := len(rows)
	width := 0
	if height > 0 {
		width = len(rows[0])
	}
	g := New(Plane(width, height))
	for y, row := range rows {
		if len(row) != width {
			return nil, mismatch("from rows", width, len(row))
		}
		copy(g.data[y*width:(y+1)*width], row)
	}
	return g, nil
}

// Populated returns a width×height single-channel grid with every sample set
// to value.
func Populated(value float64, width, height int) *Grid {
	g := New(Plane(width, height))
	for i := range g.data {
		g.data[i] = value
	}
	return g
}

func (g *Grid) Shape() Shape { return g.shape }
func (g *Grid) Len() int { return len(g.data) }
func (g *Grid) Batch() int { return g.shape.Batch }
func (g *Grid) Height() int { return g.shape.Height }
func (g *Grid) Width() int { return g.shape.Width }
func (g *Grid) Channels() int { return g.shape.Channels }

func (g *Grid) index(b, y, x, c int) int {
	s := g.shape
	if b < 0 || b >= s.Batch || y < 0 || y >= s.Height || x < 0 || x >= s.Width || c < 0 || c >= s.Channels {
		panic(fmt.Sprintf("grid: index (%d, %d, %d, %d) out of range for shape %s", b, y, x, c, s))
	}
	return ((b*s.Height+y)*s.Width+x)*s.Channels + c
}

// rowStart is the buffer offset of column 0 in row y of batch b.
func (g *Grid) rowStart(b, y int) int {
	return (b*g.shape.Height + y) * g.shape.Width * g.shape.Channels
}

// At returns the sample at batch b, row y, column x, channel c.
func (g *Grid) At(b, y, x, c int) float64 { return g.data[g.index(b, y, x, c)] }

// Set stores v at batch b, row y, column x, channel c.
func (g *Grid) Set(b, y, x, c int, v float64) { g.data[g.index(b, y, x, c)] = v }

// Pixel reads batch 0, channel 0 at column x, row y.
func (g *Grid) Pixel(x, y int) float64 { return g.At(0, y, x, 0) }

// SetPixel writes batch 0, channel 0 at column x, row y.
func (g *Grid) SetPixel(x, y int, v float64) { g.Set(0, y, x, 0, v) }

// Flat returns a copy of the buffer in row-major, x-fastest order.
func (g *Grid) Flat() []float64 {
	out := make([]float64, len(g.data))
	copy(out, g.data)
	return out
}

// Rows returns batch 0, channel 0 as rows[y][x].
func (g *Grid) Rows() [][]float64 {
	rows := make([][]float64, g.shape.Height)
	for y := range rows {
		rows[y] = make([]float64, g.shape.Width)
		for x := range rows[y] {
			rows[y][x] = g.At(0, y, x, 0)
		}
	}
	return rows
}

// Clone returns an independent copy. Cloning a released grid yields another
// released grid of the same shape.
func (g *Grid) Clone() *Grid {
	if g.Released() {
		return released(g.shape)
	}
	out := New(g.shape)
	copy(out.data, g.data)
	return out
}

// Reshape returns a copy with the same samples under a new shape of equal
// length.
func (g *Grid) Reshape(s Shape) (*Grid, error) {
	if s.Len() != len(g.data) {
		return nil, mismatch("reshape", len(g.data), s.Len())
	}
	out := New(s)
	copy(out.data, g.data)
	return out, nil
}

// Release drops the buffer so a superseded intermediate does not keep its
// memory alive. A released grid has length zero and must not be read.
func (g *Grid) Release() {
	if g == nil {
		return
	}
	g.data = nil
}

// released is a placeholder for the result of an operation on a released
// grid; it carries the shape so the next checked operation can reject it.
func released(s Shape) *Grid { return &Grid{shape: s} }

// Released reports whether Release has been called.
func (g *Grid) Released() bool { return g.data == nil && g.shape.Len() != 0 }

// Equal reports exact equality of shape and samples.
func (g *Grid) Equal(o *Grid) bool {
	if g.shape != o.shape || len(g.data) != len(o.data) {
		return false
	}
	for i := range g.data {
		if g.data[i] != o.data[i] {
			return false
		}
	}
	return true
}
