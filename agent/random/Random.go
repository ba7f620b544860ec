// Package random implements a policy which selects actions uniformly at
// random
package random

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/goalenv/environment"
	"github.com/samuelfneumann/goalenv/timestep"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// Uniform selects each action dimension uniformly at random between the
// bounds of an action specification. Evaluation mode does not change
// the distribution.
type Uniform struct {
	sampler *environment.UniformStarter
	eval    bool
}

// NewUniform returns a new Uniform policy over the actions described
// by spec
func NewUniform(spec environment.Spec, seed uint64) (*Uniform, error) {
	if spec.Type != environment.Action {
		return nil, fmt.Errorf("newUniform: specification is not an " +
			"action specification")
	}

	bounds := make([]r1.Interval, spec.Len())
	for i := range bounds {
		low, high := spec.LowerBound.AtVec(i), spec.UpperBound.AtVec(i)
		if math.IsInf(low, 0) || math.IsInf(high, 0) {
			return nil, fmt.Errorf("newUniform: action dimension %v is "+
				"unbounded", i)
		}
		bounds[i] = r1.Interval{Min: low, Max: high}
	}

	return &Uniform{
		sampler: environment.NewUniformStarter(bounds, seed),
	}, nil
}

// SelectAction samples an action, ignoring t
func (u *Uniform) SelectAction(t timestep.TimeStep) *mat.VecDense {
	return u.sampler.Start()
}

// Seed reseeds the policy
func (u *Uniform) Seed(seed uint64) {
	u.sampler.Seed(seed)
}

// Eval sets the policy to evaluation mode
func (u *Uniform) Eval() { u.eval = true }

// Train sets the policy to training mode
func (u *Uniform) Train() { u.eval = false }

// IsEval returns whether the policy is in evaluation mode
func (u *Uniform) IsEval() bool { return u.eval }
