package sawyer

import (
	"math"
	"testing"

	ts "github.com/samuelfneumann/goalenv/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gorgonia.org/tensor"
)

func newTestImage(height, width int, data []uint8) *tensor.Dense {
	return tensor.New(tensor.WithShape(height, width, 3),
		tensor.WithBacking(data))
}

func TestDrawerImageRewardBoundary(t *testing.T) {
	tests := []struct {
		offset float64
		reward float64
	}{
		{0.039, 1.0},
		{0.041, 0.0},
	}

	for _, test := range tests {
		p := DefaultParams(Drawer)
		p.Image = true
		env, _, err := New(Drawer, p)
		require.NoError(t, err)
		defer env.Close()

		// Lift the hand clear of the drawer
		env.sim.SetMocapPos(r3.Vec{X: 0, Y: 0.5, Z: 0.5})
		env.sim.DoSimulation(holdGripper, 200)

		require.NoError(t, env.sim.SetJointQPos(drawerJoint, -0.1))
		env.goalCoord = env.sim.ObjPos().Y - test.offset

		step, _, err := env.Step(mat.NewVecDense(ActionDim, nil))
		require.NoError(t, err)
		assert.InDelta(t, test.offset, step.Info[ts.InfoDistance], 1e-9)
		assert.Equal(t, test.reward, step.Reward, "offset %v", test.offset)
	}
}

func TestPushRewardThreshold(t *testing.T) {
	env, _, err := New(Push, DefaultParams(Push))
	require.NoError(t, err)
	defer env.Close()

	obj := env.sim.ObjPos()
	env.target = r3.Vec{X: obj.X + 0.03, Y: obj.Y + 0.03, Z: obj.Z}
	step, _, err := env.Step(mat.NewVecDense(ActionDim, nil))
	require.NoError(t, err)
	assert.Equal(t, 1.0, step.Reward)

	env.target = r3.Vec{X: obj.X + 0.04, Y: obj.Y + 0.04, Z: obj.Z}
	step, _, err = env.Step(mat.NewVecDense(ActionDim, nil))
	require.NoError(t, err)
	assert.Equal(t, 0.0, step.Reward)
}

func TestFlipVertical(t *testing.T) {
	img := newTestImage(3, 2, []uint8{
		1, 1, 1, 2, 2, 2,
		3, 3, 3, 4, 4, 4,
		5, 5, 5, 6, 6, 6,
	})
	out, err := flipVertical(img)
	require.NoError(t, err)
	assert.Equal(t, []uint8{
		5, 5, 5, 6, 6, 6,
		3, 3, 3, 4, 4, 4,
		1, 1, 1, 2, 2, 2,
	}, out.Data())

	// The input is untouched
	assert.Equal(t, uint8(1), img.Data().([]uint8)[0])
}

func TestConcatChannels(t *testing.T) {
	a := newTestImage(1, 2, []uint8{1, 2, 3, 4, 5, 6})
	b := newTestImage(1, 2, []uint8{7, 8, 9, 10, 11, 12})

	out, err := concatChannels(a, b)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 6}, []int(out.Shape()))
	assert.Equal(t, []uint8{1, 2, 3, 7, 8, 9, 4, 5, 6, 10, 11, 12},
		out.Data())

	v := flatten(out)
	assert.Equal(t, 9, int(v.AtVec(5)))
	assert.Equal(t, 6, int(v.AtVec(8)))
	assert.Equal(t, 12, int(v.AtVec(11)))

	_, err = concatChannels(a, nil)
	assert.Error(t, err)
}

func TestPushCornerCameraOrientation(t *testing.T) {
	s := cameraSettings(Push, false)["corner2"]
	require.NotNil(t, s.quat)

	p := DefaultParams(Push)
	p.Image = true
	env, _, err := New(Push, p)
	require.NoError(t, err)
	defer env.Close()

	c, err := env.sim.Camera("corner2")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, c.Quat.Real, 1e-9)
	assert.InDelta(t, -0.5, c.Quat.Imag, 1e-9)
	assert.InDelta(t, 0.5, c.Quat.Jmag, 1e-9)
	assert.InDelta(t, -0.5, c.Quat.Kmag, 1e-9)
	assert.Equal(t, 45.0, c.Fovy)
}

func TestDrawerImageGoalsAndStarts(t *testing.T) {
	for _, task := range []string{TaskOpen, TaskClose} {
		t.Run(task, func(t *testing.T) {
			p := DefaultParams(Drawer)
			p.Image = true
			p.Task = task
			p.Seed = 11
			env, _, err := New(Drawer, p)
			require.NoError(t, err)
			defer env.Close()

			start := 0.74
			if task == TaskClose {
				start = 0.59
			}

			low, high := math.Inf(1), math.Inf(-1)
			for i := 0; i < 100; i++ {
				step, err := env.Reset()
				require.NoError(t, err)
				require.InDelta(t, start, step.State.AtVec(3), 1e-3)
				require.InDelta(t, start, env.sim.ObjPos().Y, 1e-3)

				low = math.Min(low, env.goalCoord)
				high = math.Max(high, env.goalCoord)
			}

			// Goals cover the drawer's travel
			assert.GreaterOrEqual(t, low, 0.59-1e-3)
			assert.LessOrEqual(t, high, 0.74+1e-3)
			assert.Less(t, low, 0.62)
			assert.Greater(t, high, 0.71)
		})
	}
}

func TestBinImageGoalsInBin(t *testing.T) {
	p := DefaultParams(Bin)
	p.Image = true
	p.Seed = 5
	env, _, err := New(Bin, p)
	require.NoError(t, err)
	defer env.Close()

	bin, err := env.sim.BodyPos(binGoal)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		_, err := env.Reset()
		require.NoError(t, err)

		require.InDelta(t, bin.X, env.goal.X, 0.05+1e-3)
		require.InDelta(t, bin.Y, env.goal.Y, 0.05+1e-3)

		// The goal image shows the block lifted off the bin floor
		require.Greater(t, env.goal.Z, 0.04)
	}
}
