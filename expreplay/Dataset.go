// Package expreplay implements offline datasets of recorded transitions
// stored in the checkpoint layout of the Dopamine replay buffer: one
// gzipped .npy file per stored field, named
//
//	$store$_<field>_ckpt.<n>.gz
//
// Record i holds the observation seen at a step, the action taken, the
// reward received and whether the action led to a terminal state. The
// next observation of record i is the observation of record i+1 unless
// record i ends its episode.
package expreplay

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samuelfneumann/goalenv/timestep"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Metadata describes the run that produced a dataset
type Metadata struct {
	RunID       string `yaml:"run_id" json:"run_id"`
	Environment string `yaml:"environment" json:"environment"`
	Records     int    `yaml:"records" json:"records"`
	Episodes    int    `yaml:"episodes" json:"episodes"`
}

// Dataset is a read-only collection of recorded transitions
type Dataset struct {
	observations []float64
	obsDims      []int
	obsWidth     int

	actions   []float64
	actionDim int

	rewards    []float64
	terminals  []bool
	episodeEnd []bool

	// Indices of records which are the start of a transition
	valid []int

	// Inclusive record ranges of each episode holding at least one
	// transition
	episodes [][2]int

	meta Metadata
}

// Load reads the dataset stored at a checkpoint in dir. Passing Latest
// as checkpoint loads the checkpoint with the largest suffix.
func Load(dir string, checkpoint int) (*Dataset, error) {
	if checkpoint == Latest {
		var err error
		checkpoint, err = LatestCheckpoint(dir)
		if err != nil {
			return nil, err
		}
	}

	obsTensor, err := readField(dir, ObservationField, checkpoint)
	if err != nil {
		return nil, &DatasetError{Op: "load", Err: err}
	}
	actionTensor, err := readField(dir, ActionField, checkpoint)
	if err != nil {
		return nil, &DatasetError{Op: "load", Err: err}
	}
	rewardTensor, err := readField(dir, RewardField, checkpoint)
	if err != nil {
		return nil, &DatasetError{Op: "load", Err: err}
	}
	terminalTensor, err := readField(dir, TerminalField, checkpoint)
	if err != nil {
		return nil, &DatasetError{Op: "load", Err: err}
	}

	shape := obsTensor.Shape()
	records := shape[0]
	if records == 0 {
		return nil, &DatasetError{Op: "load", Err: errEmptyDataset}
	}

	d := &Dataset{obsDims: []int{1}, obsWidth: 1, actionDim: 1}
	if len(shape) > 1 {
		d.obsDims = append([]int(nil), shape[1:]...)
		d.obsWidth = shape[1:].TotalSize()
	}
	if actionShape := actionTensor.Shape(); len(actionShape) > 1 {
		d.actionDim = actionShape[1:].TotalSize()
	}

	if d.observations, err = floats(obsTensor); err != nil {
		return nil, &DatasetError{Op: "load", Err: err}
	}
	if d.actions, err = floats(actionTensor); err != nil {
		return nil, &DatasetError{Op: "load", Err: err}
	}
	if d.rewards, err = floats(rewardTensor); err != nil {
		return nil, &DatasetError{Op: "load", Err: err}
	}
	terminals, err := floats(terminalTensor)
	if err != nil {
		return nil, &DatasetError{Op: "load", Err: err}
	}

	if len(d.actions) != records*d.actionDim || len(d.rewards) != records ||
		len(terminals) != records {
		err := fmt.Errorf("field lengths differ: %v observations, %v "+
			"actions, %v rewards, %v terminals", records,
			len(d.actions)/d.actionDim, len(d.rewards), len(terminals))
		return nil, &DatasetError{Op: "load", Err: err}
	}

	d.terminals = make([]bool, records)
	for i := range terminals {
		d.terminals[i] = terminals[i] != 0
	}

	// Episode ends default to the terminal flags
	d.episodeEnd = make([]bool, records)
	copy(d.episodeEnd, d.terminals)
	endTensor, err := readField(dir, EpisodeEndField, checkpoint)
	if err == nil {
		ends, err := floats(endTensor)
		if err != nil {
			return nil, &DatasetError{Op: "load", Err: err}
		}
		if len(ends) != records {
			err := fmt.Errorf("%v episode ends for %v records", len(ends),
				records)
			return nil, &DatasetError{Op: "load", Err: err}
		}
		for i := range ends {
			d.episodeEnd[i] = d.episodeEnd[i] || ends[i] != 0
		}
	} else if !errors.Is(err, ErrMissingField) {
		return nil, &DatasetError{Op: "load", Err: err}
	}

	if err := d.readMetadata(dir, checkpoint); err != nil {
		return nil, &DatasetError{Op: "load", Err: err}
	}
	d.index()

	if len(d.valid) == 0 {
		return nil, &DatasetError{Op: "load", Err: errEmptyDataset}
	}
	return d, nil
}

// readMetadata reads the optional metadata file of a checkpoint
func (d *Dataset) readMetadata(dir string, checkpoint int) error {
	data, err := os.ReadFile(filepath.Join(dir, metadataFile(checkpoint)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	return yaml.Unmarshal(data, &d.meta)
}

// index computes the valid transitions and the episode boundaries
func (d *Dataset) index() {
	records := len(d.rewards)
	d.episodeEnd[records-1] = true

	d.valid = d.valid[:0]
	d.episodes = d.episodes[:0]
	start := 0
	for i := 0; i < records; i++ {
		if d.terminals[i] || !d.episodeEnd[i] {
			d.valid = append(d.valid, i)
		}

		if d.episodeEnd[i] {
			// An episode of a single non-terminal record has no
			// transitions
			if i > start || d.terminals[i] {
				d.episodes = append(d.episodes, [2]int{start, i})
			}
			start = i + 1
		}
	}

	d.meta.Records = records
	d.meta.Episodes = len(d.episodes)
}

// Metadata returns the description of the run that produced the dataset
func (d *Dataset) Metadata() Metadata {
	return d.meta
}

// Len returns the number of transitions in the dataset
func (d *Dataset) Len() int {
	return len(d.valid)
}

// Records returns the number of stored records
func (d *Dataset) Records() int {
	return len(d.rewards)
}

// ObservationDims returns the unflattened shape of a single observation
func (d *Dataset) ObservationDims() []int {
	return append([]int(nil), d.obsDims...)
}

// ObservationWidth returns the number of elements in a flattened
// observation
func (d *Dataset) ObservationWidth() int {
	return d.obsWidth
}

// ActionDim returns the number of elements in an action
func (d *Dataset) ActionDim() int {
	return d.actionDim
}

// Episodes returns the number of recorded episodes holding at least one
// transition
func (d *Dataset) Episodes() int {
	return len(d.episodes)
}

// Episode returns the first and last record of episode k
func (d *Dataset) Episode(k int) (start, end int) {
	return d.episodes[k][0], d.episodes[k][1]
}

// Observation returns the flattened observation of record i
func (d *Dataset) Observation(i int) *mat.VecDense {
	data := make([]float64, d.obsWidth)
	copy(data, d.observations[i*d.obsWidth:(i+1)*d.obsWidth])
	return mat.NewVecDense(d.obsWidth, data)
}

// Action returns the action taken at record i
func (d *Dataset) Action(i int) *mat.VecDense {
	data := make([]float64, d.actionDim)
	copy(data, d.actions[i*d.actionDim:(i+1)*d.actionDim])
	return mat.NewVecDense(d.actionDim, data)
}

// Reward returns the reward received after record i
func (d *Dataset) Reward(i int) float64 {
	return d.rewards[i]
}

// Terminal returns whether the action of record i led to a terminal
// state
func (d *Dataset) Terminal(i int) bool {
	return d.terminals[i]
}

// EpisodeEnd returns whether record i is the last of its episode
func (d *Dataset) EpisodeEnd(i int) bool {
	return d.episodeEnd[i]
}

// Transition returns the i-th transition of the dataset. The next state
// of a terminal transition is not recorded and repeats the state.
func (d *Dataset) Transition(i int) (timestep.Transition, error) {
	if i < 0 || i >= d.Len() {
		err := fmt.Errorf("index %v out of range [0, %v)", i, d.Len())
		return timestep.Transition{}, &DatasetError{Op: "transition", Err: err}
	}
	return d.transition(d.valid[i]), nil
}

// transition returns the transition starting at a record
func (d *Dataset) transition(record int) timestep.Transition {
	next := record + 1
	discount := 1.0
	if d.terminals[record] {
		next = record
		discount = 0.0
	}

	return timestep.Transition{
		State:     d.Observation(record),
		Action:    d.Action(record),
		Reward:    d.rewards[record],
		Discount:  discount,
		NextState: d.Observation(next),
		Terminal:  d.terminals[record],
	}
}

// Sample samples a batch of transitions using the Selector s and
// returns the batch of (S, A, R, γ, S') tuples as flattened []float64
func (d *Dataset) Sample(s Selector) ([]float64, []float64, []float64,
	[]float64, []float64, error) {
	if d.Len() == 0 {
		err := &DatasetError{Op: "sample", Err: errEmptyDataset}
		return nil, nil, nil, nil, nil, err
	}

	indices := s.choose(d.Len())
	batch := len(indices)

	stateBatch := make([]float64, 0, batch*d.obsWidth)
	nextStateBatch := make([]float64, 0, batch*d.obsWidth)
	actionBatch := make([]float64, 0, batch*d.actionDim)
	rewardBatch := make([]float64, batch)
	discountBatch := make([]float64, batch)

	for i, index := range indices {
		t := d.transition(d.valid[index])
		stateBatch = append(stateBatch, t.State.RawVector().Data...)
		nextStateBatch = append(nextStateBatch, t.NextState.RawVector().Data...)
		actionBatch = append(actionBatch, t.Action.RawVector().Data...)
		rewardBatch[i] = t.Reward
		discountBatch[i] = t.Discount
	}

	return stateBatch, actionBatch, rewardBatch, discountBatch,
		nextStateBatch, nil
}
