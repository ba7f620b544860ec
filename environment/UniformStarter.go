package environment

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
)

// UniformStarter samples vectors uniformly from a box given by one
// interval per dimension. Degenerate intervals (Min == Max) always
// produce Min.
type UniformStarter struct {
	bounds []r1.Interval
	seed   uint64
	rand   *distmv.Uniform
}

// NewUniformStarter returns a new UniformStarter over bounds
func NewUniformStarter(bounds []r1.Interval, seed uint64) *UniformStarter {
	b := make([]r1.Interval, len(bounds))
	copy(b, bounds)

	u := &UniformStarter{bounds: b}
	u.Seed(seed)
	return u
}

// Start returns a vector sampled uniformly from the bounds
func (u *UniformStarter) Start() *mat.VecDense {
	return mat.NewVecDense(len(u.bounds), u.rand.Rand(nil))
}

// Seed reseeds the sampler
func (u *UniformStarter) Seed(seed uint64) {
	u.seed = seed
	u.rand = distmv.NewUniform(u.bounds, rand.NewSource(seed))
}

// Bounds returns a copy of the sampling bounds
func (u *UniformStarter) Bounds() []r1.Interval {
	b := make([]r1.Interval, len(u.bounds))
	copy(b, u.bounds)
	return b
}
