package environment

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SpecType determines what kind of specification a Spec is. A Spec can
// specify the layout of an acion, an observation, a discount, or a reward
type SpecType int

const (
	Action SpecType = iota
	Observation
	Discount
	Reward
	State
)

// Cardinality determines the cardinality of a number (discrete or continuous)
type Cardinality string

const (
	Continuous Cardinality = "Continuous"
	Discrete   Cardinality = "Discrete"
)

// Spec implements an environment specification, which tells the type,
// shape, and bounds of an action, observation, discount, or reward in
// an environment.
//
// Shape has one entry per element of the flattened data. Dims gives the
// unflattened layout, e.g. (height, width, channels) for images, and is
// a single element for flat vectors.
type Spec struct {
	Shape      mat.Vector
	Type       SpecType
	LowerBound mat.Vector
	UpperBound mat.Vector
	Dims       []int
	Cardinality
}

// NewSpec constructs a new environment specification
// The shape argument outlines the shape of the data described by the
// specification. The argument t outlines what the specification is
// describing (e.g. actions, observations, etc.). The cardinality
// arguments describes whether the values that the spec describes are
// continuous or discrete.
func NewSpec(shape mat.Vector, t SpecType, lowerBound,
	upperBound mat.Vector, cardinality Cardinality) Spec {
	if shape.Len() != lowerBound.Len() {
		panic(fmt.Sprintf("shape length %v must match lower bounds length %v",
			shape.Len(), lowerBound.Len()))
	}
	if shape.Len() != upperBound.Len() {
		panic(fmt.Sprintf("shape length %v must match upper bounds length %v",
			shape.Len(), upperBound.Len()))
	}
	return Spec{shape, t, lowerBound, upperBound, []int{shape.Len()},
		cardinality}
}

// NewUnboundedSpec returns a continuous Spec of n elements bounded by
// (-∞, ∞) in each dimension
func NewUnboundedSpec(n int, t SpecType) Spec {
	low := make([]float64, n)
	high := make([]float64, n)
	for i := range low {
		low[i] = math.Inf(-1)
		high[i] = math.Inf(1)
	}

	return NewSpec(mat.NewVecDense(n, nil), t, mat.NewVecDense(n, low),
		mat.NewVecDense(n, high), Continuous)
}

// NewImageSpec returns a Spec for flattened uint8 images of the given
// height, width, and channels. Bounds are [0, 255].
func NewImageSpec(height, width, channels int, t SpecType) Spec {
	n := height * width * channels
	if n <= 0 {
		panic(fmt.Sprintf("image dimensions must be positive, got (%v, %v, %v)",
			height, width, channels))
	}
	high := make([]float64, n)
	for i := range high {
		high[i] = 255
	}

	spec := NewSpec(mat.NewVecDense(n, nil), t, mat.NewVecDense(n, nil),
		mat.NewVecDense(n, high), Discrete)
	spec.Dims = []int{height, width, channels}
	return spec
}

// NewConstantSpec returns a one-element Spec whose bounds are both value,
// as used for discounts
func NewConstantSpec(value float64, t SpecType) Spec {
	bound := mat.NewVecDense(1, []float64{value})
	return NewSpec(mat.NewVecDense(1, nil), t, bound, bound, Continuous)
}

// Len returns the number of elements described by the Spec
func (s Spec) Len() int {
	return s.Shape.Len()
}

// Matches returns whether v has the number of elements described by the
// Spec
func (s Spec) Matches(v mat.Vector) bool {
	return v != nil && v.Len() == s.Shape.Len()
}
