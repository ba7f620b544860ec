package expreplay

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"gorgonia.org/tensor"
)

// Fields stored by every checkpoint. Each field is a separate gzipped
// .npy file whose leading axis indexes records.
const (
	ObservationField = "observation"
	ActionField      = "action"
	RewardField      = "reward"
	TerminalField    = "terminal"

	// EpisodeEndField marks records which end an episode without
	// reaching a terminal state. It is optional when loading.
	EpisodeEndField = "episode_end"
)

// Latest selects the checkpoint with the largest suffix in a directory
const Latest = -1

const (
	storePrefix  = "$store$_"
	ckptInfix    = "_ckpt."
	gzSuffix     = ".gz"
	addCountName = "add_count"
	metadataName = "metadata"
)

// FieldFile returns the name of the file storing field at a checkpoint
func FieldFile(field string, checkpoint int) string {
	return fmt.Sprintf("%v%v%v%v%v", storePrefix, field, ckptInfix,
		checkpoint, gzSuffix)
}

func addCountFile(checkpoint int) string {
	return fmt.Sprintf("%v%v%v%v", addCountName, ckptInfix, checkpoint,
		gzSuffix)
}

func metadataFile(checkpoint int) string {
	return fmt.Sprintf("%v%v%v.yaml", metadataName, ckptInfix, checkpoint)
}

// LatestCheckpoint returns the largest checkpoint suffix for which an
// observation file exists in dir
func LatestCheckpoint(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, &DatasetError{Op: "latestCheckpoint", Err: err}
	}

	prefix := storePrefix + ObservationField + ckptInfix
	latest := -1
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) ||
			!strings.HasSuffix(name, gzSuffix) {
			continue
		}

		suffix := strings.TrimSuffix(strings.TrimPrefix(name, prefix), gzSuffix)
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 0 {
			continue
		}
		if n > latest {
			latest = n
		}
	}

	if latest < 0 {
		err := fmt.Errorf("%w: no %v checkpoint in %v", ErrMissingField,
			ObservationField, dir)
		return 0, &DatasetError{Op: "latestCheckpoint", Err: err}
	}
	return latest, nil
}

// readField reads the gzipped .npy file storing field at a checkpoint
func readField(dir, field string, checkpoint int) (*tensor.Dense, error) {
	return readNpy(filepath.Join(dir, FieldFile(field, checkpoint)), field)
}

func readNpy(path, field string) (*tensor.Dense, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("readField: %w: %v", ErrMissingField, field)
	} else if err != nil {
		return nil, fmt.Errorf("readField: %v: %w", field, err)
	}
	defer f.Close()

	r, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("readField: %v: %w", field, err)
	}
	defer r.Close()

	t := new(tensor.Dense)
	if err := t.ReadNpy(r); err != nil {
		return nil, fmt.Errorf("readField: %v: %w", field, err)
	}
	return t, nil
}

// writeNpy writes t as a gzipped .npy file
func writeNpy(path string, t *tensor.Dense) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	w, err := gzip.NewWriterLevel(f, gzip.BestSpeed)
	if err != nil {
		return err
	}
	if err := t.WriteNpy(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// floats returns the data of t converted to float64
func floats(t *tensor.Dense) ([]float64, error) {
	switch data := t.Data().(type) {
	case []float64:
		out := make([]float64, len(data))
		copy(out, data)
		return out, nil

	case []float32:
		out := make([]float64, len(data))
		for i := range data {
			out[i] = float64(data[i])
		}
		return out, nil

	case []uint8:
		out := make([]float64, len(data))
		for i := range data {
			out[i] = float64(data[i])
		}
		return out, nil

	case []int32:
		out := make([]float64, len(data))
		for i := range data {
			out[i] = float64(data[i])
		}
		return out, nil

	case []int64:
		out := make([]float64, len(data))
		for i := range data {
			out[i] = float64(data[i])
		}
		return out, nil

	case []int:
		out := make([]float64, len(data))
		for i := range data {
			out[i] = float64(data[i])
		}
		return out, nil

	case []bool:
		out := make([]float64, len(data))
		for i := range data {
			if data[i] {
				out[i] = 1
			}
		}
		return out, nil

	// Single element tensors report their data as a scalar
	case float64:
		return []float64{data}, nil
	case float32:
		return []float64{float64(data)}, nil
	case uint8:
		return []float64{float64(data)}, nil
	case int32:
		return []float64{float64(data)}, nil
	case int64:
		return []float64{float64(data)}, nil
	case int:
		return []float64{float64(data)}, nil
	case bool:
		if data {
			return []float64{1}, nil
		}
		return []float64{0}, nil
	}

	return nil, fmt.Errorf("floats: unsupported dtype %v", t.Dtype())
}
