package experiment

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/goalenv/environment/envconfig"
	"github.com/samuelfneumann/goalenv/environment/wrappers"
	"github.com/samuelfneumann/goalenv/experiment/tracker"
	"github.com/samuelfneumann/goalenv/experiment/trackers"
	"github.com/samuelfneumann/goalenv/expreplay"
	"github.com/samuelfneumann/goalenv/utils/progressbar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnlineRecordReplay(t *testing.T) {
	dir := t.TempDir()
	lengths := trackers.NewEpisodeLength(filepath.Join(dir, "lengths.bin"))
	returns := trackers.NewReturn(filepath.Join(dir, "returns.bin"))
	success := trackers.NewSuccess(filepath.Join(dir, "success.bin"))

	c := Config{
		Type:     OnlineExp,
		MaxSteps: 40,
		Policy:   RandomPolicy,
		EnvConf: envconfig.Config{
			Name:          "sawyer_push",
			Seed:          1,
			EpisodeCutoff: 10,
		},
	}
	exp, made, err := c.CreateExp(lengths, returns, success)
	require.NoError(t, err)
	defer made.Env.Close()

	data := filepath.Join(dir, "dataset")
	recorder, err := trackers.NewRecorder(data, made.Name,
		made.Env.ObservationSpec(), made.Env.ActionSpec())
	require.NoError(t, err)
	exp.Register(recorder)

	var out bytes.Buffer
	online := exp.(*Online)
	online.SetProgressBar(progressbar.NewManualProgressBar(&out, 20, 40))

	require.NoError(t, exp.Run())
	assert.Equal(t, 40, online.Steps())
	assert.Equal(t, 4, online.Episodes())
	assert.Contains(t, out.String(), "100.00%")

	assert.Equal(t, []float64{10, 10, 10, 10}, lengths.Data())
	assert.Len(t, returns.Data(), 4)
	assert.Len(t, success.Data(), 4)
	assert.Len(t, success.FinalDistances(), 4)
	assert.True(t, success.Rate() >= 0 && success.Rate() <= 1)

	require.NoError(t, exp.Save())
	saved, err := tracker.LoadData(filepath.Join(dir, "lengths.bin"))
	require.NoError(t, err)
	assert.Equal(t, lengths.Data(), saved)
	saved, err = tracker.LoadData(filepath.Join(dir, "returns.bin"))
	require.NoError(t, err)
	assert.Equal(t, returns.Data(), saved)

	dataset, err := expreplay.Load(data, expreplay.Latest)
	require.NoError(t, err)
	assert.Equal(t, 40, dataset.Len())
	assert.Equal(t, 44, dataset.Records())
	assert.Equal(t, 4, dataset.Episodes())
	assert.Equal(t, recorder.RunID(), dataset.Metadata().RunID)

	// Replaying the recorded dataset reproduces its episodes and stops
	// once they are exhausted
	replayLengths := trackers.NewEpisodeLength(filepath.Join(dir, "r.bin"))
	replayReturns := trackers.NewReturn(filepath.Join(dir, "rr.bin"))
	replay := Config{
		MaxSteps: 1000,
		EnvConf: envconfig.Config{
			Name:   "offline_metaworld_push",
			Kwargs: envconfig.Kwargs{"dataset_path": data},
		},
	}
	exp, made, err = replay.CreateExp(replayLengths, replayReturns)
	require.NoError(t, err)
	defer made.Env.Close()
	_, ok := made.Env.(*wrappers.ReplayDataset)
	require.True(t, ok)

	require.NoError(t, exp.Run())
	assert.Equal(t, 40, exp.(*Online).Steps())
	assert.Equal(t, []float64{10, 10, 10, 10}, replayLengths.Data())
	for i, r := range returns.Data() {
		assert.InDelta(t, r, replayReturns.Data()[i], 1e-4)
	}
}

func TestCreateExpErrors(t *testing.T) {
	c := Config{EnvConf: envconfig.Config{Name: "sawyer_push"}}
	_, _, err := c.CreateExp()
	assert.Error(t, err)

	c.MaxSteps = 10
	c.Policy = "greedy"
	_, _, err = c.CreateExp()
	assert.Error(t, err)

	c.Policy = RandomPolicy
	c.Type = "offline"
	_, _, err = c.CreateExp()
	assert.Error(t, err)

	c.Type = OnlineExp
	c.EnvConf.Name = "sawyer_reach"
	_, _, err = c.CreateExp()
	assert.ErrorIs(t, err, envconfig.ErrUnsupported)
}

func TestRegisteredTracker(t *testing.T) {
	c := Config{
		MaxSteps: 5,
		EnvConf:  envconfig.Config{Name: "maze2d-umaze-dense-v1"},
	}
	lengths := trackers.NewEpisodeLength(filepath.Join(t.TempDir(), "l.bin"))
	exp, made, err := c.CreateExp()
	require.NoError(t, err)
	defer made.Env.Close()

	// The registered tracker sees the limited environment's time steps
	exp.Register(tracker.Register(lengths, made.Env))
	require.NoError(t, exp.Run())
	assert.Empty(t, lengths.Data())

	_, err = tracker.LoadData(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}
