package wrappers

import (
	"fmt"

	"github.com/samuelfneumann/goalenv/environment"
	"github.com/samuelfneumann/goalenv/expreplay"
	ts "github.com/samuelfneumann/goalenv/timestep"
	"gonum.org/v1/gonum/mat"
)

// ReplayDataset replays the episodes of a recorded dataset through the
// Environment interface. The wrapped live environment only provides the
// observation, action and discount specifications; it is never reset or
// stepped.
//
// Each Reset starts the next recorded episode and each Step returns the
// next recorded transition, whatever action is given. Once all episodes
// have been replayed, Reset and Step return errors for which
// expreplay.IsExhausted is true.
type ReplayDataset struct {
	environment.Environment
	data *expreplay.Dataset

	discount float64

	// Index of the next episode to replay
	episode int

	// Current record, or -1 when no episode is being replayed
	record int

	lastAction      *mat.VecDense
	currentTimeStep ts.TimeStep
}

// NewReplayDataset returns a new ReplayDataset which replays data with
// the specifications of env
func NewReplayDataset(env environment.Environment,
	data *expreplay.Dataset) (*ReplayDataset, error) {
	if width := env.ObservationSpec().Len(); data.ObservationWidth() != width {
		return nil, fmt.Errorf("newReplayDataset: invalid observation size "+
			"\n\thave(%v) \n\twant(%v)", data.ObservationWidth(), width)
	}
	if dims := env.ActionSpec().Len(); data.ActionDim() != dims {
		return nil, fmt.Errorf("newReplayDataset: invalid action dimensions "+
			"\n\thave(%v) \n\twant(%v)", data.ActionDim(), dims)
	}

	discount := 1.0
	if spec := env.DiscountSpec(); spec.Len() > 0 {
		discount = spec.LowerBound.AtVec(0)
	}

	return &ReplayDataset{
		Environment: env,
		data:        data,
		discount:    discount,
		record:      -1,
	}, nil
}

// Reset starts replaying the next recorded episode
func (r *ReplayDataset) Reset() (ts.TimeStep, error) {
	if r.episode >= r.data.Episodes() {
		r.record = -1
		return ts.TimeStep{}, expreplay.Exhausted("reset")
	}

	start, _ := r.data.Episode(r.episode)
	r.episode++
	r.record = start
	r.lastAction = nil

	step := ts.New(ts.First, 0, r.discount, r.data.Observation(start), 0)
	r.currentTimeStep = step
	return step, nil
}

// Step returns the next recorded transition of the current episode. The
// action is only checked for its dimensions.
func (r *ReplayDataset) Step(action *mat.VecDense) (ts.TimeStep, bool,
	error) {
	if action.Len() != r.data.ActionDim() {
		return ts.TimeStep{}, true, fmt.Errorf("step: invalid action "+
			"dimensions \n\thave(%v) \n\twant(%v)", action.Len(),
			r.data.ActionDim())
	}
	if r.record < 0 {
		if r.episode >= r.data.Episodes() {
			return ts.TimeStep{}, true, expreplay.Exhausted("step")
		}
		return ts.TimeStep{}, true, fmt.Errorf("step: no episode is being " +
			"replayed, call Reset")
	}

	i := r.record
	number := r.currentTimeStep.Number + 1
	reward := r.data.Reward(i)
	r.lastAction = r.data.Action(i)

	var step ts.TimeStep
	if r.data.Terminal(i) {
		// The state after a terminal transition is not recorded
		step = ts.New(ts.Last, reward, 0, r.data.Observation(i), number)
		step.SetEnd(ts.TerminalStateReached)
		r.record = -1
	} else {
		next := i + 1
		step = ts.New(ts.Mid, reward, r.discount, r.data.Observation(next),
			number)
		r.record = next

		if r.data.EpisodeEnd(next) && !r.data.Terminal(next) {
			step.StepType = ts.Last
			if next == r.data.Records()-1 && r.episode >= r.data.Episodes() {
				step.SetEnd(ts.DatasetExhausted)
			} else {
				step.SetEnd(ts.Timeout)
			}
			r.record = -1
		}
	}

	r.currentTimeStep = step
	return step, step.Last(), nil
}

// CurrentTimeStep returns the current time step in the dataset
func (r *ReplayDataset) CurrentTimeStep() ts.TimeStep {
	return r.currentTimeStep
}

// RecordedAction returns the action recorded for the most recent Step,
// or nil before the first Step of an episode
func (r *ReplayDataset) RecordedAction() *mat.VecDense {
	return r.lastAction
}

// Rewind restarts replay from the first recorded episode
func (r *ReplayDataset) Rewind() {
	r.episode = 0
	r.record = -1
	r.lastAction = nil
	r.currentTimeStep = ts.TimeStep{}
}

// Dataset returns the replayed dataset
func (r *ReplayDataset) Dataset() *expreplay.Dataset {
	return r.data
}

// Unwrap returns the wrapped live environment
func (r *ReplayDataset) Unwrap() environment.Environment {
	return r.Environment
}

func (r *ReplayDataset) String() string {
	return fmt.Sprintf("ReplayDataset(%v episodes): %v", r.data.Episodes(),
		r.Environment)
}
