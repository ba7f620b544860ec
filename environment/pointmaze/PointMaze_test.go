package pointmaze

import (
	"errors"
	"math"
	"testing"

	"github.com/samuelfneumann/goalenv/environment"
	ts "github.com/samuelfneumann/goalenv/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestParseLayouts(t *testing.T) {
	tests := []struct {
		name     string
		rows     int
		cols     int
		maxSteps int
	}{
		{"open", 5, 7, 150},
		{"umaze", 5, 5, 300},
		{"medium", 8, 8, 600},
		{"large", 9, 12, 800},
	}

	for _, test := range tests {
		l, err := ParseLayout(test.name)
		require.NoError(t, err)
		assert.Equal(t, test.name, l.String())
		assert.Equal(t, test.maxSteps, l.MaxEpisodeSteps())

		g, err := parse(layouts[l].plan)
		require.NoError(t, err)
		assert.Equal(t, test.rows, g.rows, test.name)
		assert.Equal(t, test.cols, g.cols, test.name)
		assert.Equal(t, g.rows*g.cols, len(g.walls)+len(g.empty))
	}

	_, err := ParseLayout("spiral")
	assert.Error(t, err)

	_, err = parse(`##\#`)
	assert.Error(t, err)
	_, err = parse(`##\#X`)
	assert.Error(t, err)
}

func TestResetInEmptyCells(t *testing.T) {
	env, _, err := New(Params{Layout: Medium, Seed: 1})
	require.NoError(t, err)

	empty := make(map[cell]bool)
	for _, c := range env.grid.empty {
		empty[c] = true
	}
	inEmpty := func(x, y float64) bool {
		return empty[cell{int(math.Round(x)), int(math.Round(y))}]
	}

	for i := 0; i < 200; i++ {
		step, err := env.Reset()
		require.NoError(t, err)
		obs := step.Observation

		require.True(t, inEmpty(obs.AtVec(0), obs.AtVec(1)))
		require.True(t, inEmpty(obs.AtVec(4), obs.AtVec(5)))
		require.Equal(t, 0.0, obs.AtVec(6))
		require.Equal(t, 0.0, obs.AtVec(7))
		require.True(t, env.ObservationSpec().Matches(obs))
	}
}

func TestStep(t *testing.T) {
	env, _, err := New(Params{Layout: Open})
	require.NoError(t, err)

	require.NoError(t, env.SetTask(environment.Task{
		Params: []float64{1, 1, 3, 3},
	}))
	_, err = env.Reset()
	require.NoError(t, err)

	push := mat.NewVecDense(ActionDim, []float64{1, 1})
	var step ts.TimeStep
	for i := 1; i <= 50; i++ {
		var done bool
		step, done, err = env.Step(push)
		require.NoError(t, err)
		assert.False(t, done)
		assert.Equal(t, i, step.Number)
	}

	// The force moved the mass towards the goal
	assert.Greater(t, env.Position().X, 1.0)
	assert.Greater(t, env.Position().Y, 1.0)
	assert.Greater(t, step.Observation.AtVec(2), 0.0)
	assert.Less(t, step.Info[ts.InfoDistance], math.Sqrt(8))
}

func TestWallsBlock(t *testing.T) {
	env, _, err := New(Params{Layout: UMaze})
	require.NoError(t, err)

	// Cell (1, 1) is bounded by a wall at row 0
	require.NoError(t, env.SetTask(environment.Task{
		Params: []float64{1, 1, 1, 3},
	}))
	_, err = env.Reset()
	require.NoError(t, err)

	up := mat.NewVecDense(ActionDim, []float64{-1, 0})
	for i := 0; i < 300; i++ {
		_, _, err := env.Step(up)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, env.Position().X, 0.5+ballRadius-0.02)
}

func TestReward(t *testing.T) {
	for _, dense := range []bool{false, true} {
		env, _, err := New(Params{Layout: Open, Dense: dense})
		require.NoError(t, err)

		require.NoError(t, env.SetTask(environment.Task{
			Params: []float64{2, 2, 2, 2.3},
		}))
		_, err = env.Reset()
		require.NoError(t, err)

		step, _, err := env.Step(mat.NewVecDense(ActionDim, nil))
		require.NoError(t, err)
		if dense {
			assert.InDelta(t, -0.3, step.Reward, 1e-6)
		} else {
			assert.Equal(t, 1.0, step.Reward)
		}
		assert.Equal(t, 1.0, step.Info[ts.InfoSuccess])
	}
}

func TestSetTaskInvalid(t *testing.T) {
	env, _, err := New(Params{Layout: Open})
	require.NoError(t, err)
	assert.Error(t, env.SetTask(environment.Task{Params: []float64{1}}))
}

func TestSeedReproducible(t *testing.T) {
	a, _, err := New(Params{Layout: Large})
	require.NoError(t, err)
	b, _, err := New(Params{Layout: Large})
	require.NoError(t, err)
	a.Seed(11)
	b.Seed(11)

	for i := 0; i < 5; i++ {
		sa, err := a.Reset()
		require.NoError(t, err)
		sb, err := b.Reset()
		require.NoError(t, err)
		assert.True(t, mat.Equal(sa.Observation, sb.Observation))
	}
}

func TestRender(t *testing.T) {
	env, _, err := New(Params{Layout: UMaze})
	require.NoError(t, err)

	img, err := env.Render(Camera, 40, 40)
	require.NoError(t, err)
	assert.Equal(t, []int{40, 40, 3}, []int(img.Shape()))

	// The top-left pixel is a wall
	data := img.Data().([]uint8)
	assert.Equal(t, []uint8{wallColour.R, wallColour.G, wallColour.B},
		data[:3])

	_, err = env.Render("corner3", 40, 40)
	assert.True(t, errors.Is(err, ErrUnknownCamera))
	_, err = env.Render(Camera, 0, 40)
	assert.Error(t, err)
}
