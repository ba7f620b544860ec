package trackers

import (
	"github.com/samuelfneumann/goalenv/experiment/tracker"
	ts "github.com/samuelfneumann/goalenv/timestep"
)

// Success tracks whether each episode reached its goal. An episode
// succeeds if any of its TimeSteps reports a positive success info
// value. It also tracks the goal distance at the end of each episode.
type Success struct {
	succeeded bool

	successes []float64
	distances []float64
	filename  string
}

// NewSuccess returns a new Success tracker which will save its data at
// the specified location filename
func NewSuccess(filename string) *Success {
	return &Success{filename: filename}
}

// Track tracks the success info of a TimeStep
func (s *Success) Track(step ts.TimeStep) {
	if step.First() {
		s.succeeded = false
	}
	if step.Info[ts.InfoSuccess] > 0 {
		s.succeeded = true
	}

	if step.Last() {
		success := 0.0
		if s.succeeded {
			success = 1.0
		}
		s.successes = append(s.successes, success)
		s.distances = append(s.distances, step.Info[ts.InfoDistance])
		s.succeeded = false
	}
}

// Data returns 1 for each finished episode which succeeded and 0 for
// each which did not
func (s *Success) Data() []float64 {
	return append([]float64(nil), s.successes...)
}

// FinalDistances returns the goal distance at the end of each finished
// episode
func (s *Success) FinalDistances() []float64 {
	return append([]float64(nil), s.distances...)
}

// Rate returns the fraction of finished episodes which succeeded
func (s *Success) Rate() float64 {
	if len(s.successes) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range s.successes {
		total += v
	}
	return total / float64(len(s.successes))
}

// Save saves the per-episode successes to disk
func (s *Success) Save() error {
	return tracker.SaveData(s.filename, s.successes)
}
