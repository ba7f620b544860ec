// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be, either  first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// EndType describes why an episode ended
type EndType int

const (
	// Unended means the episode has not ended yet
	Unended EndType = iota

	// TerminalStateReached means the environment itself ended the episode
	TerminalStateReached

	// Timeout means an external step limit ended the episode
	Timeout

	// DatasetExhausted means a recorded dataset ran out of transitions
	DatasetExhausted
)

func (e EndType) String() string {
	switch e {
	case TerminalStateReached:
		return "TerminalStateReached"
	case Timeout:
		return "Timeout"
	case DatasetExhausted:
		return "DatasetExhausted"
	default:
		return "Unended"
	}
}

// Info keys used by environments in this module
const (
	InfoDistance = "distance"
	InfoSuccess  = "success"
)

// TimeStep packages together a single timestep in an environment.
//
// Observation is what an agent sees. State is the raw simulator state
// that produced the observation. For state-based environments the two
// are the same vector; for pixel-based environments State still holds
// the native state vector so that privileged algorithms can use it.
type TimeStep struct {
	StepType    StepType
	Reward      float64
	Discount    float64
	Observation mat.Vector
	State       mat.Vector
	Number      int
	Info        map[string]float64

	endType EndType
}

// New returns a new TimeStep whose raw state is its observation
func New(t StepType, r, d float64, o mat.Vector, n int) TimeStep {
	return TimeStep{StepType: t, Reward: r, Discount: d, Observation: o,
		State: o, Number: n}
}

// NewWithState returns a new TimeStep whose observation and raw state
// differ
func NewWithState(t StepType, r, d float64, o, s mat.Vector,
	n int) TimeStep {
	return TimeStep{StepType: t, Reward: r, Discount: d, Observation: o,
		State: s, Number: n}
}

// First returns whether a TimeStep is the first in an environment
func (t *TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t *TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t *TimeStep) Last() bool {
	return t.StepType == Last
}

// SetEnd sets the reason the episode ended
func (t *TimeStep) SetEnd(e EndType) {
	t.endType = e
}

// EndType returns the reason the episode ended, or Unended
func (t *TimeStep) EndType() EndType {
	return t.endType
}

// SetInfo records a diagnostic value on the TimeStep
func (t *TimeStep) SetInfo(key string, value float64) {
	if t.Info == nil {
		t.Info = make(map[string]float64)
	}
	t.Info[key] = value
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Discount: %.2f  |  " +
		"Step Number:  %v"

	return fmt.Sprintf(str, t.StepType, t.Reward, t.Discount, t.Number)
}

// Transition packages together a (S, A, R, γ, S') tuple. Terminal marks
// a transition into a terminal state of the recorded episode.
type Transition struct {
	State     *mat.VecDense
	Action    *mat.VecDense
	Reward    float64
	Discount  float64
	NextState *mat.VecDense
	Terminal  bool
}

// NewTransition returns the transition between two consecutive
// TimeSteps under action
func NewTransition(step TimeStep, action *mat.VecDense,
	next TimeStep) Transition {
	return Transition{
		State:     mat.VecDenseCopyOf(step.Observation),
		Action:    mat.VecDenseCopyOf(action),
		Reward:    next.Reward,
		Discount:  next.Discount,
		NextState: mat.VecDenseCopyOf(next.Observation),
		Terminal:  next.Last() && next.EndType() == TerminalStateReached,
	}
}
