// Package environment outlines the interfaces and structs needed to
// implement concrete goal-conditioned environments and the wrappers that
// reshape their observations.
package environment

import (
	"github.com/samuelfneumann/goalenv/timestep"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// Starter implements a distribution of starting states (or goals) and
// samples from it
type Starter interface {
	Start() *mat.VecDense
}

// Ender determines when an episode should end
type Ender interface {
	End(*timestep.TimeStep) bool
}

// Environment implements a simulated environment. Reset and Step both
// return the TimeStep reached; Step additionally reports whether the
// episode has ended.
//
// The shape described by ObservationSpec must not change over the
// lifetime of an Environment, and every Observation returned by Reset
// and Step must have that shape.
type Environment interface {
	Reset() (timestep.TimeStep, error)
	Step(action *mat.VecDense) (timestep.TimeStep, bool, error)
	CurrentTimeStep() timestep.TimeStep

	ObservationSpec() Spec
	ActionSpec() Spec
	DiscountSpec() Spec

	Seed(seed uint64)
	Close() error
}

// Task pre-assigns the randomized reset parameters of an environment,
// for example an object and goal position. An environment with a
// pre-assigned task resets to the same configuration every episode
// until goal randomization is re-enabled.
type Task struct {
	Name   string
	Params []float64
}

// TaskSetter is an Environment which can have a Task assigned
type TaskSetter interface {
	SetTask(t Task) error
}

// Renderer is an Environment which can render an RGB image of itself
// from a named camera. The returned tensor has shape (height, width, 3)
// and holds uint8 values.
type Renderer interface {
	Render(camera string, height, width int) (*tensor.Dense, error)
}

// StateSpecer is an Environment whose raw state differs from its
// observations
type StateSpecer interface {
	StateSpec() Spec
}

// EpisodeLimiter is an Environment which knows the step limit that
// should be imposed on its episodes from the outside
type EpisodeLimiter interface {
	MaxEpisodeSteps() int
}

// Metricer is an Environment which records a per-step distance to its
// goal
type Metricer interface {
	Metrics() *DistanceLog
}
