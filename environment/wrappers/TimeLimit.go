package wrappers

import (
	"fmt"

	"github.com/samuelfneumann/goalenv/environment"
	ts "github.com/samuelfneumann/goalenv/timestep"
	"gonum.org/v1/gonum/mat"
)

// TimeLimit ends episodes of an environment after a fixed number of
// steps. Episodes ended by the limit have the Timeout EndType.
type TimeLimit struct {
	environment.Environment
	limit *environment.StepLimit

	currentTimeStep ts.TimeStep
}

// NewTimeLimit returns a new TimeLimit which ends the episodes of env
// after steps steps
func NewTimeLimit(env environment.Environment, steps int) (*TimeLimit,
	error) {
	if steps <= 0 {
		return nil, fmt.Errorf("newTimeLimit: steps must be positive "+
			"\n\thave(%v)", steps)
	}

	return &TimeLimit{
		Environment:     env,
		limit:           environment.NewStepLimit(steps),
		currentTimeStep: env.CurrentTimeStep(),
	}, nil
}

// Reset resets the environment to some starting state
func (t *TimeLimit) Reset() (ts.TimeStep, error) {
	step, err := t.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, err
	}

	t.currentTimeStep = step
	return step, nil
}

// Step takes one environmental step given some action
func (t *TimeLimit) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	step, done, err := t.Environment.Step(action)
	if err != nil {
		return ts.TimeStep{}, true, err
	}

	if !done {
		done = t.limit.End(&step)
	}
	t.currentTimeStep = step
	return step, done, nil
}

// CurrentTimeStep returns the current time step in the environment
func (t *TimeLimit) CurrentTimeStep() ts.TimeStep {
	return t.currentTimeStep
}

// MaxEpisodeSteps returns the step limit of episodes
func (t *TimeLimit) MaxEpisodeSteps() int {
	return t.limit.EpisodeSteps()
}

// SetTask assigns a task to the wrapped environment
func (t *TimeLimit) SetTask(task environment.Task) error {
	return setTask(t.Environment, task)
}

// Unwrap returns the wrapped environment
func (t *TimeLimit) Unwrap() environment.Environment {
	return t.Environment
}

func (t *TimeLimit) String() string {
	return fmt.Sprintf("TimeLimit(%v): %v", t.limit.EpisodeSteps(),
		t.Environment)
}
