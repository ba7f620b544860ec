// Package wrappers implements environment wrappers which change what
// an agent observes, limit episode lengths, or replay recorded data
// through the Environment interface.
package wrappers

import (
	"fmt"

	"github.com/samuelfneumann/goalenv/environment"
	ts "github.com/samuelfneumann/goalenv/timestep"
	"gonum.org/v1/gonum/mat"
)

// StateObservation exposes the native state of an environment as its
// observation. Both the Observation and the State of every TimeStep are
// the wrapped environment's observation.
type StateObservation struct {
	environment.Environment

	currentTimeStep ts.TimeStep
}

// NewStateObservation returns a new StateObservation wrapping env, along
// with the first step of an episode
func NewStateObservation(env environment.Environment) (*StateObservation,
	ts.TimeStep, error) {
	s := &StateObservation{Environment: env}

	step, err := s.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newStateObservation: %w", err)
	}
	return s, step, nil
}

// Reset resets the environment to some starting state
func (s *StateObservation) Reset() (ts.TimeStep, error) {
	step, err := s.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, err
	}

	step.State = step.Observation
	s.currentTimeStep = step
	return step, nil
}

// Step takes one environmental step given some action
func (s *StateObservation) Step(action *mat.VecDense) (ts.TimeStep, bool,
	error) {
	step, done, err := s.Environment.Step(action)
	if err != nil {
		return ts.TimeStep{}, true, err
	}

	step.State = step.Observation
	s.currentTimeStep = step
	return step, done, nil
}

// CurrentTimeStep returns the current time step in the environment
func (s *StateObservation) CurrentTimeStep() ts.TimeStep {
	return s.currentTimeStep
}

// StateSpec returns the specification of the raw states, which is the
// observation specification of the wrapped environment
func (s *StateObservation) StateSpec() environment.Spec {
	spec := s.Environment.ObservationSpec()
	spec.Type = environment.State
	return spec
}

// SetTask assigns a task to the wrapped environment
func (s *StateObservation) SetTask(t environment.Task) error {
	return setTask(s.Environment, t)
}

// Unwrap returns the wrapped environment
func (s *StateObservation) Unwrap() environment.Environment {
	return s.Environment
}

func (s *StateObservation) String() string {
	return fmt.Sprintf("StateObservation: %v", s.Environment)
}

// setTask forwards a task to env if env accepts tasks
func setTask(env environment.Environment, t environment.Task) error {
	setter, ok := env.(environment.TaskSetter)
	if !ok {
		return fmt.Errorf("setTask: environment %T does not accept tasks", env)
	}
	return setter.SetTask(t)
}
