package envconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/goalenv/environment"
	"github.com/samuelfneumann/goalenv/environment/pointmaze"
	"github.com/samuelfneumann/goalenv/environment/sawyer"
	"github.com/samuelfneumann/goalenv/environment/wrappers"
	"github.com/samuelfneumann/goalenv/expreplay"
	ts "github.com/samuelfneumann/goalenv/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// fixed is an environment with a 6-dimensional observation which never
// changes
type fixed struct {
	name    string
	seed    uint64
	current ts.TimeStep
}

func (f *fixed) Reset() (ts.TimeStep, error) {
	f.current = ts.New(ts.First, 0, 1, mat.NewVecDense(6, nil), 0)
	return f.current, nil
}

func (f *fixed) Step(*mat.VecDense) (ts.TimeStep, bool, error) {
	f.current = ts.New(ts.Mid, 0, 1, mat.NewVecDense(6, nil),
		f.current.Number+1)
	return f.current, false, nil
}

func (f *fixed) CurrentTimeStep() ts.TimeStep { return f.current }

func (f *fixed) ObservationSpec() environment.Spec {
	return environment.NewUnboundedSpec(6, environment.Observation)
}

func (f *fixed) ActionSpec() environment.Spec {
	return environment.NewUnboundedSpec(2, environment.Action)
}

func (f *fixed) DiscountSpec() environment.Spec {
	return environment.NewConstantSpec(1, environment.Discount)
}

func (f *fixed) Seed(seed uint64) { f.seed = seed }

func (f *fixed) Close() error { return nil }

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		arg  string
	}{
		{"sawyer_push", SawyerPush, "sawyer_push"},
		{"sawyer_bin_image", SawyerBinImage, "sawyer_bin_image"},
		{"maze2d-umaze-dense-v1", PointMaze, "maze2d-umaze-dense-v1"},
		{"offline_metaworld_drawer-open", OfflineMetaworld, "drawer-open"},
		{"offline_metaworld_assembly", OfflineMetaworld, "assembly"},
		{"offline_hopper-medium-v2", OfflineGym, "hopper-medium-v2"},
		{"FetchReach", External, "FetchReach"},
		{"walker-walk", External, "walker-walk"},
		{"antmaze-umaze-v2", External, "antmaze-umaze-v2"},
		{"hammer-human-v1", External, "hammer-human-v1"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			kind, arg, err := resolve(test.name)
			require.NoError(t, err)
			assert.Equal(t, test.kind, kind)
			assert.Equal(t, test.arg, arg)
		})
	}
}

func TestUnsupported(t *testing.T) {
	for _, name := range []string{"", "sawyer_reach", "offline_push",
		"offline_metaworld_unknown", "metaworld_push", "hopper-medium-v2"} {
		_, err := Make(name, nil)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrUnsupported), name)

		var unsupported *UnsupportedError
		require.True(t, errors.As(err, &unsupported))
		assert.Equal(t, name, unsupported.Name)
	}
}

func TestNoBackend(t *testing.T) {
	_, err := Make("cheetah-run", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoBackend))
	assert.False(t, errors.Is(err, ErrUnsupported))
	assert.False(t, HasBackend(DMC))
}

func TestMakeSawyer(t *testing.T) {
	made, err := Make("sawyer_push", Kwargs{"seed": 3, "goal_min_x": -0.05})
	require.NoError(t, err)
	defer made.Env.Close()

	assert.Equal(t, SawyerPush, made.Kind)
	assert.True(t, made.GoalConditioned)
	assert.Equal(t, 7, made.ObsDim)
	assert.Equal(t, sawyer.MaxEpisodeSteps, made.MaxEpisodeSteps)
	assert.Equal(t, 4, made.Env.ActionSpec().Len())

	made, err = Make("sawyer_drawer_image", Kwargs{"task": sawyer.TaskOpen})
	require.NoError(t, err)
	defer made.Env.Close()
	assert.Equal(t, sawyer.ImageSize*sawyer.ImageSize*3, made.ObsDim)

	_, err = Make("sawyer_drawer", Kwargs{"camera": "corner"})
	assert.Error(t, err)

	_, err = Make("sawyer_push", Kwargs{"seed": "three"})
	assert.Error(t, err)
}

func TestMakePointMaze(t *testing.T) {
	made, err := Make("maze2d-medium-dense-v1", Kwargs{"discount": 0.99})
	require.NoError(t, err)
	defer made.Env.Close()

	assert.Equal(t, PointMaze, made.Kind)
	assert.Equal(t, pointmaze.StateDim, made.ObsDim)
	assert.Equal(t, 600, made.MaxEpisodeSteps)
	assert.Equal(t, 0.99, made.Env.DiscountSpec().LowerBound.AtVec(0))
}

func TestOfflineGymBackend(t *testing.T) {
	var got string
	RegisterBackend(D4RLGym, func(name string,
		kw Kwargs) (environment.Environment, int, error) {
		got = name
		seed, err := kw.Uint("seed", 0)
		if err != nil {
			return nil, 0, err
		}
		return &fixed{name: name, seed: seed}, 1000, nil
	})
	defer func() {
		backendsMu.Lock()
		delete(backends, D4RLGym.Name)
		backendsMu.Unlock()
	}()
	assert.True(t, HasBackend(D4RLGym))

	made, err := Make("offline_halfcheetah-medium-v2", Kwargs{"seed": 7})
	require.NoError(t, err)
	assert.Equal(t, "halfcheetah-medium-v2", got)
	assert.Equal(t, OfflineGym, made.Kind)
	assert.False(t, made.GoalConditioned)
	assert.Equal(t, 3, made.ObsDim)
	assert.Equal(t, 1000, made.MaxEpisodeSteps)
	assert.Equal(t, uint64(7), made.Env.(*fixed).seed)
}

// writePushDataset records a single timed out episode of two
// transitions with the specifications of env
func writePushDataset(t *testing.T, dir string, obs,
	action environment.Spec) {
	t.Helper()
	w, err := expreplay.NewWriter(dir, "push", obs, action)
	require.NoError(t, err)

	n := obs.Len()
	for i := 0; i < 2; i++ {
		state := make([]float64, n)
		next := make([]float64, n)
		for j := range state {
			state[j] = float64(i)
			next[j] = float64(i + 1)
		}
		require.NoError(t, w.Add(ts.Transition{
			State:     mat.NewVecDense(n, state),
			Action:    mat.NewVecDense(action.Len(), nil),
			Reward:    -1,
			NextState: mat.NewVecDense(n, next),
		}, i == 1))
	}
	_, err = w.Write()
	require.NoError(t, err)
}

func TestOfflineMetaworldState(t *testing.T) {
	live, _, err := sawyer.New(sawyer.Push, sawyer.DefaultParams(sawyer.Push))
	require.NoError(t, err)
	dir := t.TempDir()
	writePushDataset(t, dir, live.ObservationSpec(), live.ActionSpec())

	made, err := Make("offline_metaworld_push", Kwargs{"dataset_path": dir})
	require.NoError(t, err)
	defer made.Env.Close()
	assert.Equal(t, OfflineMetaworld, made.Kind)
	assert.True(t, made.GoalConditioned)
	assert.Equal(t, 7, made.ObsDim)

	replay, ok := made.Env.(*wrappers.ReplayDataset)
	require.True(t, ok)
	_, ok = replay.Unwrap().(*wrappers.StateObservation)
	assert.True(t, ok)

	step, err := replay.Reset()
	require.NoError(t, err)
	assert.Equal(t, 0.0, step.Observation.AtVec(0))

	step, done, err := replay.Step(mat.NewVecDense(4, nil))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1.0, step.Observation.AtVec(0))

	step, done, err = replay.Step(mat.NewVecDense(4, nil))
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, ts.DatasetExhausted, step.EndType())

	_, err = replay.Reset()
	assert.True(t, expreplay.IsExhausted(err))
}

func TestOfflineMetaworldPixels(t *testing.T) {
	dir := t.TempDir()
	obs := environment.NewImageSpec(8, 8, 1, environment.Observation)
	live, _, err := sawyer.New(sawyer.Push, sawyer.DefaultParams(sawyer.Push))
	require.NoError(t, err)
	writePushDataset(t, dir, obs, live.ActionSpec())

	made, err := Make("offline_metaworld_push", Kwargs{
		"dataset_path": dir,
		"obs_type":     ObsPixels,
		"height":       8,
		"width":        8,
		"n_channels":   1,
	})
	require.NoError(t, err)
	defer made.Env.Close()
	assert.Equal(t, 32, made.ObsDim)

	replay := made.Env.(*wrappers.ReplayDataset)
	pixels, ok := replay.Unwrap().(*wrappers.PixelObservation)
	require.True(t, ok)
	assert.Equal(t, "corner3", pixels.Config().Camera)
}

func TestOfflineMetaworldErrors(t *testing.T) {
	_, err := Make("offline_metaworld_push", nil)
	assert.Error(t, err)

	_, err = Make("offline_metaworld_push", Kwargs{"dataset_path": "x",
		"camera_position": []any{0.0, 1.0, 2.0}})
	assert.Error(t, err)

	_, err = Make("offline_metaworld_push", Kwargs{
		"dataset_path": t.TempDir(),
		"obs_type":     "depth",
	})
	assert.Error(t, err)

	_, err = Make("offline_metaworld_push", Kwargs{
		"dataset_path": t.TempDir(),
	})
	assert.True(t, errors.Is(err, expreplay.ErrMissingField))

	_, err = Make("offline_metaworld_assembly", Kwargs{
		"dataset_path": t.TempDir(),
	})
	assert.True(t, errors.Is(err, ErrNoBackend))
}

func TestOfflineMetaworldBackendKwargs(t *testing.T) {
	var got Kwargs
	RegisterBackend(Metaworld50, func(name string,
		kw Kwargs) (environment.Environment, int, error) {
		got = kw
		return &fixed{name: name}, 500, nil
	})
	defer func() {
		backendsMu.Lock()
		delete(backends, Metaworld50.Name)
		backendsMu.Unlock()
	}()

	// The dataset is missing, but the live environment is made first
	_, err := Make("offline_metaworld_assembly", Kwargs{
		"dataset_path": t.TempDir(),
		"obs_type":     ObsState,
		"checkpoint":   0,
		"seed":         3,
		"discount":     0.9,
	})
	assert.True(t, errors.Is(err, expreplay.ErrMissingField))
	assert.Equal(t, Kwargs{"seed": 3, "discount": 0.9}, got)
}

func TestKwargs(t *testing.T) {
	kw := Kwargs{
		"f":      1,
		"i":      2.0,
		"frac":   2.5,
		"neg":    -1,
		"b":      true,
		"s":      "corner",
		"floats": []any{1, 2.5},
	}

	f, err := kw.Float("f", 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	i, err := kw.Int("i", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	_, err = kw.Int("frac", 0)
	assert.Error(t, err)

	_, err = kw.Uint("neg", 0)
	assert.Error(t, err)

	u, err := kw.Uint("missing", 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), u)

	b, err := kw.Bool("b", false)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = kw.String("b", "")
	assert.Error(t, err)

	floats, err := kw.Floats("floats")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5}, floats)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: sawyer_window_image
seed: 11
discount: 0.95
episode_cutoff: 20
kwargs:
  task: close
  start_at_obj: false
`), 0o644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sawyer_window_image", c.Name)
	assert.Equal(t, uint64(11), c.Seed)
	assert.Equal(t, 20, c.EpisodeCutoff)
	assert.Equal(t, "close", c.Kwargs["task"])

	kw := c.kwargs()
	assert.Equal(t, uint64(11), kw["seed"])
	assert.Equal(t, 0.95, kw["discount"])
	assert.NotContains(t, c.Kwargs, "seed")

	made, err := c.Create()
	require.NoError(t, err)
	defer made.Env.Close()
	assert.Equal(t, 20, made.MaxEpisodeSteps)
	_, ok := made.Env.(*wrappers.TimeLimit)
	assert.True(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("seed: 1\n"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "sawyer_push_image")
	assert.Contains(t, names, "offline_metaworld_window-close")
	assert.Contains(t, names, "offline_walker2d-medium-v2")
	assert.Contains(t, names, "FetchPush")
	for _, name := range names {
		_, _, err := resolve(name)
		assert.NoError(t, err, name)
	}
}
