//go:build gym

// Package gym provides access to OpenAI Gym environments, including
// the D4RL suites, through the environment.Environment interface.
//
// This is made possible through the Go bindings for OpenAI Gym,
// found at https://github.com/samuelfneumann/GoGym. The package is only
// built with the gym build tag, since GoGym requires an embedded Python
// interpreter with gym installed. Importing the package registers
// backends for the D4RL catalogs with package envconfig.
package gym

import (
	"fmt"

	python "github.com/DataDog/go-python3"
	"github.com/samuelfneumann/gogym"
	env "github.com/samuelfneumann/goalenv/environment"
	ts "github.com/samuelfneumann/goalenv/timestep"
	"gonum.org/v1/gonum/mat"
)

// DefaultMaxEpisodeSteps is the step limit of environments which are
// not registered with one
const DefaultMaxEpisodeSteps = 1000

// GymEnv implements access to an OpenAI Gym environment using GoGym
type GymEnv struct {
	gogym.Environment

	currentStep ts.TimeStep
	discount    float64
	maxSteps    int
}

// New returns a new GymEnv with the given name, which must be a legal
// name from the OpenAI Gym suite or a registered extension of it.
func New(name string, discount float64, seed uint64) (*GymEnv,
	ts.TimeStep, error) {
	goGymEnv, err := gogym.Make(name)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: could not create "+
			"environment: %v", err)
	}

	gymEnv := &GymEnv{
		Environment: goGymEnv,
		discount:    discount,
		maxSteps:    maxEpisodeSteps(goGymEnv),
	}
	gymEnv.Seed(seed)

	t, err := gymEnv.Reset()
	if err != nil {
		goGymEnv.Close()
		return nil, ts.TimeStep{}, fmt.Errorf("new: %w", err)
	}
	return gymEnv, t, nil
}

// maxEpisodeSteps returns the step limit registered with env
func maxEpisodeSteps(e gogym.Environment) int {
	steps := e.Env().GetAttrString("_max_episode_steps")
	if steps == nil {
		python.PyErr_Clear()
		return DefaultMaxEpisodeSteps
	}
	defer steps.DecRef()

	if !python.PyLong_Check(steps) {
		return DefaultMaxEpisodeSteps
	}
	if n := python.PyLong_AsLong(steps); n > 0 {
		return n
	}
	return DefaultMaxEpisodeSteps
}

// Seed seeds the environment
func (g *GymEnv) Seed(seed uint64) {
	g.Environment.Seed(int(seed))
}

// Step takes a single environmental step
func (g *GymEnv) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	obs, reward, done, err := g.Environment.Step(a)
	if err != nil {
		return ts.TimeStep{}, true, fmt.Errorf("step: could not step "+
			"GoGym environment: %v", err)
	}

	t := ts.New(ts.Mid, reward, g.discount, obs, g.currentStep.Number+1)
	if done {
		t.StepType = ts.Last
		if t.Number >= g.maxSteps {
			t.SetEnd(ts.Timeout)
		} else {
			t.SetEnd(ts.TerminalStateReached)
		}
	}
	g.currentStep = t

	return t, done, nil
}

// Reset resets the environment to some starting state
func (g *GymEnv) Reset() (ts.TimeStep, error) {
	obs, err := g.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: could not reset "+
			"environment: %v", err)
	}

	t := ts.New(ts.First, 0, g.discount, obs, 0)
	g.currentStep = t

	return t, nil
}

// CurrentTimeStep returns the current timestep in the environment
func (g *GymEnv) CurrentTimeStep() ts.TimeStep {
	return g.currentStep
}

// MaxEpisodeSteps returns the step limit registered with the
// environment
func (g *GymEnv) MaxEpisodeSteps() int {
	return g.maxSteps
}

// spec converts a GoGym space into a Spec
func spec(space gogym.Space, t env.SpecType) (env.Spec, error) {
	var cardinality env.Cardinality
	switch space.(type) {
	case *gogym.BoxSpace:
		cardinality = env.Continuous
	case *gogym.DiscreteSpace:
		cardinality = env.Discrete
	default:
		return env.Spec{}, fmt.Errorf("spec: invalid space type %T, "+
			"package gym supports only GoGym's BoxSpace or DiscreteSpace",
			space)
	}

	low := space.Low()[0]
	high := space.High()[0]
	shape := mat.NewVecDense(low.Len(), nil)
	return env.NewSpec(shape, t, low, high, cardinality), nil
}

// ObservationSpec returns the observation spec of the environment
func (g *GymEnv) ObservationSpec() env.Spec {
	s, err := spec(g.ObservationSpace(), env.Observation)
	if err != nil {
		panic(fmt.Sprintf("observationSpec: %v", err))
	}
	return s
}

// ActionSpec returns the action specification of the environment
func (g *GymEnv) ActionSpec() env.Spec {
	s, err := spec(g.ActionSpace(), env.Action)
	if err != nil {
		panic(fmt.Sprintf("actionSpec: %v", err))
	}
	return s
}

// DiscountSpec returns the discount specification of the environment
func (g *GymEnv) DiscountSpec() env.Spec {
	return env.NewConstantSpec(g.discount, env.Discount)
}

// Close performs resource cleanup after the environment is no longer
// needed
func (g *GymEnv) Close() error {
	g.Environment.Close()
	return nil
}

func (g *GymEnv) String() string {
	return fmt.Sprintf("GymEnv(%v)", g.Name())
}
