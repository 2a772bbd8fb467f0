package grid

import (
	"math"
	"math/rand/v2"
)

// pcgStream is the fixed second PCG word for seeded fields, so that a seed
// alone determines the sequence.
const pcgStream = 0x9e3779b97f4a7c15

// MaxSeed bounds the seeds RandomSeed hands out.
const MaxSeed = 1_000_000

// RandomField draws standard-normal grids. Each field owns its generator;
// two fields built from the same seed produce the same grids for the same
// sequence of calls. A RandomField is not safe for concurrent use.
type RandomField struct {
	rng *rand.Rand
}

// NewRandomField returns a reproducible field for seed.
func NewRandomField(seed int64) *RandomField {
	return &RandomField{rng: rand.New(rand.NewPCG(uint64(seed), pcgStream))}
}

// NewUnseededRandomField returns a field seeded from the runtime's entropy.
func NewUnseededRandomField() *RandomField {
	return &RandomField{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// RandomSeed picks a seed in [0, MaxSeed) for callers that did not choose
// one, so the run can still be recorded and replayed.
func RandomSeed() int64 {
	return rand.Int64N(MaxSeed)
}

// Normal fills a grid of shape s with independent standard-normal samples
// using the Box-Muller transform.
func (f *RandomField) Normal(s Shape) *Grid {
	g := New(s)
	for i := range g.data {
		g.data[i] = f.standardNormal()
	}
	return g
}

// standardNormal consumes two uniforms per sample. u1 is taken from (0, 1]
// so the logarithm stays finite.
func (f *RandomField) standardNormal() float64 {
	u1 := 1 - f.rng.Float64()
	u2 := 1 - f.rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Sin(2*math.Pi*u2)
}
