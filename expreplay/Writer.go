package expreplay

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/samuelfneumann/goalenv/environment"
	"github.com/samuelfneumann/goalenv/timestep"
	"gopkg.in/yaml.v3"
	"gorgonia.org/tensor"
)

// Writer records transitions and writes them as a Dataset checkpoint.
//
// Observations described by an image Spec are stored as uint8 with
// shape (records, height, width, channels); all other observations are
// stored as float32 with shape (records, width).
type Writer struct {
	dir        string
	checkpoint int
	meta       Metadata

	obsDims   []int
	obsWidth  int
	pixels    bool
	actionDim int

	observations []float64
	actions      []float64
	rewards      []float64
	terminals    []bool
	episodeEnd   []bool
}

// NewWriter returns a new Writer which writes checkpoints of an
// environment's transitions to dir, creating dir if needed
func NewWriter(dir, env string, obs, action environment.Spec) (*Writer,
	error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("newWriter: %w", err)
	}

	pixels := len(obs.Dims) == 3 && obs.Cardinality == environment.Discrete
	dims := []int{obs.Len()}
	if pixels {
		dims = append([]int(nil), obs.Dims...)
	}

	return &Writer{
		dir:       dir,
		meta:      Metadata{RunID: uuid.New().String(), Environment: env},
		obsDims:   dims,
		obsWidth:  obs.Len(),
		pixels:    pixels,
		actionDim: action.Len(),
	}, nil
}

// RunID returns the unique identifier of the recorded run
func (w *Writer) RunID() string {
	return w.meta.RunID
}

// Records returns the number of records added since the last write
func (w *Writer) Records() int {
	return len(w.rewards)
}

// Add records a transition. If the transition ended its episode without
// reaching a terminal state, the next state is recorded as the final
// record of the episode.
func (w *Writer) Add(t timestep.Transition, episodeEnd bool) error {
	if t.State.Len() != w.obsWidth || t.NextState.Len() != w.obsWidth {
		return fmt.Errorf("add: invalid state size \n\thave(%v)\n\twant(%v)",
			t.State.Len(), w.obsWidth)
	}
	if t.Action.Len() != w.actionDim {
		return fmt.Errorf("add: invalid action size \n\thave(%v)\n\twant(%v)",
			t.Action.Len(), w.actionDim)
	}

	w.add(t.State.RawVector().Data, t.Action.RawVector().Data, t.Reward,
		t.Terminal, t.Terminal)

	if episodeEnd && !t.Terminal {
		w.add(t.NextState.RawVector().Data, make([]float64, w.actionDim), 0,
			false, true)
	}
	return nil
}

func (w *Writer) add(obs, action []float64, reward float64, terminal,
	end bool) {
	w.observations = append(w.observations, obs...)
	w.actions = append(w.actions, action...)
	w.rewards = append(w.rewards, reward)
	w.terminals = append(w.terminals, terminal)
	w.episodeEnd = append(w.episodeEnd, end)
	if end {
		w.meta.Episodes++
	}
}

// Write writes all records added since the last write as the next
// checkpoint and returns its suffix
func (w *Writer) Write() (int, error) {
	records := len(w.rewards)
	if records == 0 {
		return 0, &DatasetError{Op: "write", Err: errEmptyDataset}
	}

	obsShape := append([]int{records}, w.obsDims...)
	var obs *tensor.Dense
	if w.pixels {
		data := make([]uint8, len(w.observations))
		for i, v := range w.observations {
			data[i] = uint8(v)
		}
		obs = tensor.New(tensor.WithShape(obsShape...), tensor.WithBacking(data))
	} else {
		obs = tensor.New(tensor.WithShape(obsShape...),
			tensor.WithBacking(float32s(w.observations)))
	}

	fields := []struct {
		name string
		t    *tensor.Dense
	}{
		{ObservationField, obs},
		{ActionField, tensor.New(tensor.WithShape(records, w.actionDim),
			tensor.WithBacking(float32s(w.actions)))},
		{RewardField, tensor.New(tensor.WithShape(records),
			tensor.WithBacking(float32s(w.rewards)))},
		{TerminalField, tensor.New(tensor.WithShape(records),
			tensor.WithBacking(uint8s(w.terminals)))},
		{EpisodeEndField, tensor.New(tensor.WithShape(records),
			tensor.WithBacking(uint8s(w.episodeEnd)))},
	}

	for _, field := range fields {
		path := filepath.Join(w.dir, FieldFile(field.name, w.checkpoint))
		if err := writeNpy(path, field.t); err != nil {
			return 0, &DatasetError{Op: "write", Err: err}
		}
	}

	count := tensor.New(tensor.WithShape(1),
		tensor.WithBacking([]int64{int64(records)}))
	path := filepath.Join(w.dir, addCountFile(w.checkpoint))
	if err := writeNpy(path, count); err != nil {
		return 0, &DatasetError{Op: "write", Err: err}
	}

	w.meta.Records = records
	data, err := yaml.Marshal(w.meta)
	if err != nil {
		return 0, &DatasetError{Op: "write", Err: err}
	}
	path = filepath.Join(w.dir, metadataFile(w.checkpoint))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, &DatasetError{Op: "write", Err: err}
	}

	checkpoint := w.checkpoint
	w.checkpoint++
	w.reset()
	return checkpoint, nil
}

func (w *Writer) reset() {
	w.observations = w.observations[:0]
	w.actions = w.actions[:0]
	w.rewards = w.rewards[:0]
	w.terminals = w.terminals[:0]
	w.episodeEnd = w.episodeEnd[:0]
	w.meta.Episodes = 0
	w.meta.Records = 0
}

func float32s(data []float64) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v)
	}
	return out
}

func uint8s(data []bool) []uint8 {
	out := make([]uint8, len(data))
	for i, v := range data {
		if v {
			out[i] = 1
		}
	}
	return out
}
