package denoiser

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

// Frame layout, little endian:
//
//	"HFG1" | count uint32 | count × (batch, height, width, channels uint32, samples float32...)
//
// Samples travel as float32 since that is what the models consume.
var frameMagic = [4]byte{'H', 'F', 'G', '1'}

const (
	headerSize = 8
	shapeSize  = 16
	// maxFrameSamples bounds a decoded frame to keep a malformed header from
	// allocating unbounded memory.
	maxFrameSamples = 1 << 26
)

// ErrMalformedFrame is returned for frames that fail to decode.
var ErrMalformedFrame = errors.New("malformed grid frame")

// EncodeGrids packs grids into a single frame.
func EncodeGrids(grids ...*grid.Grid) []byte {
	size := headerSize
	for _, g := range grids {
		size += shapeSize + 4*g.Len()
	}
	buf := make([]byte, 0, size)
	buf = append(buf, frameMagic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(grids)))
	for _, g := range grids {
		s := g.Shape()
		for _, d := range []int{s.Batch, s.Height, s.Width, s.Channels} {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(d))
		}
		for _, v := range g.Flat() {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
		}
	}
	return buf
}

// DecodeGrids unpacks a frame produced by EncodeGrids. want is the expected
// grid count; a mismatch is an error.
func DecodeGrids(frame []byte, want int) ([]*grid.Grid, error) {
	if len(frame) < headerSize || [4]byte(frame[:4]) != frameMagic {
		return nil, fmt.Errorf("%w: bad header", ErrMalformedFrame)
	}
	count := int(binary.LittleEndian.Uint32(frame[4:8]))
	if count != want {
		return nil, fmt.Errorf("%w: %d grids, want %d", ErrMalformedFrame, count, want)
	}

	rest := frame[headerSize:]
	grids := make([]*grid.Grid, 0, count)
	for i := 0; i < count; i++ {
		if len(rest) < shapeSize {
			return nil, fmt.Errorf("%w: grid %d: truncated shape", ErrMalformedFrame, i)
		}
		s := grid.Shape{
			Batch:    int(binary.LittleEndian.Uint32(rest[0:4])),
			Height:   int(binary.LittleEndian.Uint32(rest[4:8])),
			Width:    int(binary.LittleEndian.Uint32(rest[8:12])),
			Channels: int(binary.LittleEndian.Uint32(rest[12:16])),
		}
		rest = rest[shapeSize:]

		n, ok := frameSamples(s)
		if !ok || len(rest) < 4*n {
			return nil, fmt.Errorf("%w: grid %d: %s does not fit %d bytes", ErrMalformedFrame, i, s, len(rest))
		}
		values := make([]float64, n)
		for j := range values {
			values[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(rest[4*j:])))
		}
		rest = rest[4*n:]

		g, err := grid.FromValues(s, values)
		if err != nil {
			return nil, fmt.Errorf("%w: grid %d: %v", ErrMalformedFrame, i, err)
		}
		grids = append(grids, g)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedFrame, len(rest))
	}
	return grids, nil
}

// frameSamples is s.Len() with an overflow and size guard.
func frameSamples(s grid.Shape) (int, bool) {
	n := 1
	for _, d := range []int{s.Batch, s.Height, s.Width, s.Channels} {
		if d != 0 && n > maxFrameSamples/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}
