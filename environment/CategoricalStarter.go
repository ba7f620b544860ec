package environment

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CategoricalStarter returns starting states as vectors sampled from
// a multi-dimensional uniform categorical distribution. The categorical
// distributions sample values in (0, 1, 2, ... N).
type CategoricalStarter struct {
	bounds []int
	seed   uint64
	rand   []distuv.Categorical
}

// NewCategoricalStarter returns a new CategoricalStarter, sampling
// dimension i from (0, 1, 2, ... bounds[i]-1)
func NewCategoricalStarter(bounds []int, seed uint64) *CategoricalStarter {
	b := make([]int, len(bounds))
	copy(b, bounds)

	c := &CategoricalStarter{bounds: b}
	c.Seed(seed)
	return c
}

// Start returns a starting state vector
func (c *CategoricalStarter) Start() *mat.VecDense {
	start := make([]float64, len(c.bounds))
	for i := range start {
		start[i] = c.rand[i].Rand()
	}

	return mat.NewVecDense(len(c.bounds), start)
}

// Seed reseeds the sampler
func (c *CategoricalStarter) Seed(seed uint64) {
	c.seed = seed
	source := rand.NewSource(seed)

	c.rand = make([]distuv.Categorical, len(c.bounds))
	for i := range c.rand {
		// Create the weights for the uniform categorical distribution
		weights := make([]float64, c.bounds[i])
		for j := range weights {
			weights[j] = 1.0 / float64(len(weights))
		}

		c.rand[i] = distuv.NewCategorical(weights, source)
	}
}

// Choose samples an index in [0, n) from the first dimension
func (c *CategoricalStarter) Choose() int {
	return int(c.rand[0].Rand())
}
