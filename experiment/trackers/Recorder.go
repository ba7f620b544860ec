package trackers

import (
	"fmt"

	"github.com/samuelfneumann/goalenv/environment"
	"github.com/samuelfneumann/goalenv/expreplay"
	ts "github.com/samuelfneumann/goalenv/timestep"
)

// Recorder records the transitions of an experiment as a replay
// dataset which can be replayed with wrappers.ReplayDataset. Each call
// to Save writes a new checkpoint.
type Recorder struct {
	writer *expreplay.Writer
}

// NewRecorder returns a new Recorder writing to dir the transitions of
// the environment named env
func NewRecorder(dir, env string, obs, action environment.Spec) (*Recorder,
	error) {
	w, err := expreplay.NewWriter(dir, env, obs, action)
	if err != nil {
		return nil, fmt.Errorf("newRecorder: %w", err)
	}
	return &Recorder{writer: w}, nil
}

// Track does nothing, all data is given to TrackTransition
func (r *Recorder) Track(ts.TimeStep) {}

// TrackTransition records a transition
func (r *Recorder) TrackTransition(t ts.Transition, episodeEnd bool) error {
	return r.writer.Add(t, episodeEnd)
}

// RunID returns the identifier stored in the metadata of the dataset
func (r *Recorder) RunID() string {
	return r.writer.RunID()
}

// Save writes the recorded transitions as a new checkpoint
func (r *Recorder) Save() error {
	if _, err := r.writer.Write(); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
